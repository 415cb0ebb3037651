// Package models содержит доменные структуры пользователя, сессии, коллекций
// и биллинга, а также типизированные ошибки слоя. Структуры используются
// в бизнес‑логике и при работе с хранилищем.
package models

import (
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
)

// User представляет зарегистрированного пользователя системы.
// Поля tier/subscription_type/subscription_end_date из пути вебхуков пишет
// только реконсилиатор биллинга.
type User struct {
	UID                 string                // Уникальный идентификатор пользователя
	Email               string                // Электронная почта
	Username            string                // Имя пользователя (уникальное)
	PasswordHash        string                // Хэш пароля пользователя
	Tier                tier.Tier             // Текущий уровень подписки
	SubscriptionType    tier.SubscriptionType // Периодичность оплаты
	SubscriptionEndDate *time.Time            // Дата истечения оплаченной подписки, nil — нет подписки
	BillingCustomerID   string                // Идентификатор покупателя у биллингового провайдера
	UnlockedCountries   []string              // Страны, разблокированные за просмотр рекламы
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Session представляет выданную пользователю сессию.
// Сессия валидна, пока now <= ExpiresAt; она не продлевается на месте,
// при повторном входе выдаётся новая.
type Session struct {
	Token     string
	UserUID   string
	ExpiresAt time.Time
}

// UsageCounter хранит счётчик тарифицируемой функции с якорем периода.
// Сброс вычисляется лениво при чтении, фоновых таймеров нет.
type UsageCounter struct {
	UserUID      string
	Meter        tier.Meter
	Count        int
	PeriodAnchor time.Time
}

// LimitCheck — результат проверки лимита тарифицируемой функции.
type LimitCheck struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
}

// UsageStatus — сводка по тарифу и счётчикам пользователя.
type UsageStatus struct {
	Tier              tier.Tier `json:"tier"`
	DailyAiCount      int       `json:"daily_ai_count"`
	AiLimit           int       `json:"ai_limit"`
	RemainingAi       int       `json:"remaining_ai"`
	CanUseAi          bool      `json:"can_use_ai"`
	DailyTravelCount  int       `json:"daily_travel_count"`
	TravelLimit       int       `json:"travel_limit"`
	RemainingTravel   int       `json:"remaining_travel"`
	CanUseTravel      bool      `json:"can_use_travel"`
	UnlockedCountries []string  `json:"unlocked_countries"`
}
