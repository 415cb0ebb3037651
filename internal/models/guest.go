package models

import (
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
)

// GuestProfile хранит состояние, накопленное до аутентификации.
// Профиль существует только в гостевом хранилище и уничтожается целиком
// после успешной миграции в аккаунт.
type GuestProfile struct {
	GuestID          string                `json:"guest_id"`
	CreatedAt        time.Time             `json:"created_at"`
	PendingPurchases []PurchaseIntent      `json:"pending_purchases"`
	PendingData      map[Collection][]Item `json:"pending_data"`
}

// PurchaseIntent — покупка, совершённая гостем до создания аккаунта.
// Реплеится на сервере при миграции; дедуплицируется по TransactionID.
type PurchaseIntent struct {
	SubscriptionType tier.SubscriptionType `json:"subscription_type"`
	TransactionID    string                `json:"transaction_id"`
	Amount           float64               `json:"amount"`
	PurchaseDate     time.Time             `json:"purchase_date"`
}
