package models

// Типы биллинговых событий, которые обрабатывает реконсилиатор.
const (
	WebhookInitialPurchase = "INITIAL_PURCHASE"
	WebhookRenewal         = "RENEWAL"
	WebhookUncancellation  = "UNCANCELLATION"
	WebhookCancellation    = "CANCELLATION"
	WebhookExpiration      = "EXPIRATION"
)

// WebhookEvent — биллинговое событие после валидации на границе.
// Доставка at-least-once и возможно не по порядку; событие само по себе
// не источник истины — авторитетно только сравнение выведенной даты
// окончания подписки с текущей.
type WebhookEvent struct {
	ID                string // Уникальный идентификатор события у провайдера
	Type              string // Один из Webhook* типов
	AppUserID         string // Долговечный идентификатор пользователя
	ProductID         string // Идентификатор продукта, из него выводятся тариф и периодичность
	ExpirationAtMs    *int64 // Момент истечения подписки в миллисекундах, может отсутствовать
	OriginalAppUserID string // Идентификатор покупателя у провайдера
}
