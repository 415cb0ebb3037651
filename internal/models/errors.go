package models

import "errors"

// Типизированные ошибки слоя. Локальные проверки (квота, доступ) падают
// быстро без похода в сеть; удалённые сбои пробрасываются вызывающему,
// который сам решает — ретраить или показывать пользователю. Слой не
// ретраит мутации с побочными эффектами.
var (
	// ErrUnauthenticated — удалённая операция без сессии.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrStaleSession — токен предъявлен, но сессия истекла.
	ErrStaleSession = errors.New("stale session")
	// ErrQuotaExceeded — тарифицируемая функция исчерпала лимит периода.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUpgradeRequired — тариф не даёт доступа к функции.
	ErrUpgradeRequired = errors.New("upgrade required")
	// ErrMigrationInProgress — миграция этого гостя уже выполняется.
	ErrMigrationInProgress = errors.New("migration in progress")
	// ErrMigrationFailed — миграция прервалась посреди копирования; профиль
	// гостя сохранён, операцию можно безопасно повторить.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrInvalidWebhookEvent — событие без обязательных полей или с
	// неизвестным пользователем; событие отбрасывается, редоставку
	// обеспечивает провайдер.
	ErrInvalidWebhookEvent = errors.New("invalid webhook event")
	// ErrNotFound — запрошенная сущность отсутствует.
	ErrNotFound = errors.New("not found")
)
