package models

import (
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
)

// PurchaseStatus — статус записи о покупке.
type PurchaseStatus string

// Переходы статусов однонаправленные, кроме completed → refunded.
const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// PurchaseRecord представляет покупку пользователя. TransactionID уникален —
// повторная вставка той же транзакции (например, при ретрае миграции)
// является no-op.
type PurchaseRecord struct {
	TransactionID    string                `json:"transaction_id"`
	UserUID          string                `json:"user_uid"`
	SubscriptionType tier.SubscriptionType `json:"subscription_type"`
	Amount           float64               `json:"amount"`
	Currency         string                `json:"currency"`
	PurchaseDate     time.Time             `json:"purchase_date"`
	Status           PurchaseStatus        `json:"status"`
}
