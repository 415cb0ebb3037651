// Package billing реализует реконсилиатор биллинговых событий.
//
// Провайдер доставляет события at-least-once и без гарантии порядка.
// Реконсилиатор сходится к корректному состоянию за счёт трёх правил:
// событие с уже виденным ID — no-op; дата окончания подписки двигается
// только вперёд; даунгрейд выполняется лишь когда подписка действительно
// истекла. Любой порядок доставки одного набора событий даёт одно и то же
// конечное состояние пользователя.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/metrics"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// UserStore описывает операции над пользователями, нужные реконсилиатору.
type UserStore interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	SetBillingCustomerID(ctx context.Context, userUID, customerID string) error
	ApplySubscription(ctx context.Context, userUID string, subType tier.SubscriptionType, t tier.Tier, endDate time.Time) (bool, error)
	DowngradeToFree(ctx context.Context, userUID string) error
}

// AuditStore описывает журнал обработанных событий.
type AuditStore interface {
	WebhookEventSeen(ctx context.Context, eventID string) (bool, error)
	LogWebhookEvent(ctx context.Context, event models.WebhookEvent) error
}

// Publisher публикует уведомления о смене тарифа.
type Publisher interface {
	Publish(message any) error
}

// TierChangeMessage — уведомление о смене тарифа для внешних сервисов.
type TierChangeMessage struct {
	UserUID    string    `json:"user_uid"`
	FromTier   tier.Tier `json:"from_tier"`
	ToTier     tier.Tier `json:"to_tier"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Service — реконсилиатор биллинговых событий.
type Service struct {
	log            *slog.Logger
	users          UserStore
	audit          AuditStore
	publisher      Publisher
	fallbackWindow time.Duration
	now            func() time.Time
}

// New создает новый экземпляр Service. fallbackWindow используется как срок
// подписки, когда событие пришло без момента истечения.
func New(log *slog.Logger, users UserStore, audit AuditStore, publisher Publisher, fallbackWindow time.Duration) *Service {
	return &Service{
		log:            log,
		users:          users,
		audit:          audit,
		publisher:      publisher,
		fallbackWindow: fallbackWindow,
		now:            time.Now,
	}
}

// ProcessEvent обрабатывает одно биллинговое событие. Повторная доставка
// любого события безопасна: и дедупликация по ID, и сами применяемые
// мутации идемпотентны, поэтому сбой между применением и записью в журнал
// не ломает сходимость.
func (s *Service) ProcessEvent(ctx context.Context, event models.WebhookEvent) error {
	const op = "billing.ProcessEvent"
	log := s.log.With(
		slog.String("op", op),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
	)

	if event.ID == "" || event.Type == "" || event.AppUserID == "" {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "invalid").Inc()
		return fmt.Errorf("%s: %w", op, models.ErrInvalidWebhookEvent)
	}

	seen, err := s.audit.WebhookEventSeen(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if seen {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "duplicate").Inc()
		log.Info("duplicate webhook event, skipping")
		return nil
	}

	user, err := s.users.GetUser(ctx, event.AppUserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "unknown_user").Inc()
			log.Warn("webhook event for unknown user", slog.String("app_user_id", event.AppUserID))
			return fmt.Errorf("%s: %w", op, models.ErrInvalidWebhookEvent)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if event.OriginalAppUserID != "" {
		if err := s.users.SetBillingCustomerID(ctx, user.UID, event.OriginalAppUserID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var outcome string
	switch event.Type {
	case models.WebhookInitialPurchase, models.WebhookRenewal, models.WebhookUncancellation:
		outcome, err = s.applyPurchase(ctx, log, user, event)
	case models.WebhookExpiration:
		outcome, err = s.applyDowngrade(ctx, log, user, event)
	case models.WebhookCancellation:
		outcome, err = s.applyCancellation(ctx, log, user, event)
	default:
		log.Warn("unknown webhook event type, ignoring")
		outcome = "ignored"
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.audit.LogWebhookEvent(ctx, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, outcome).Inc()
	return nil
}

// applyPurchase применяет событие семейства покупки: выводит тариф и
// периодичность из product_id и продлевает подписку. Хранилище отклоняет
// попытку сдвинуть дату окончания назад — так запоздавший RENEWAL
// за прошлый период не затирает более свежий.
func (s *Service) applyPurchase(ctx context.Context, log *slog.Logger, user *models.User, event models.WebhookEvent) (string, error) {
	subType := subscriptionTypeFromProduct(event.ProductID)
	newTier := tierFromProduct(event.ProductID)
	endDate := s.expirationTime(event)

	applied, err := s.users.ApplySubscription(ctx, user.UID, subType, newTier, endDate)
	if err != nil {
		return "", err
	}
	if !applied {
		log.Info("subscription event superseded by newer state")
		return "superseded", nil
	}

	log.Info("subscription applied",
		slog.String("user_uid", user.UID),
		slog.String("tier", string(newTier)),
		slog.Time("end_date", endDate))
	s.notifyTierChange(log, user, newTier, event.Type)
	return "applied", nil
}

// applyDowngrade переводит пользователя на free. Авторитетно текущее
// состояние, а не событие: если подписка к этому моменту продлена и ещё
// действует, запоздавший EXPIRATION — no-op. Это и даёт сходимость при
// доставке событий не по порядку.
func (s *Service) applyDowngrade(ctx context.Context, log *slog.Logger, user *models.User, event models.WebhookEvent) (string, error) {
	if user.SubscriptionEndDate != nil && user.SubscriptionEndDate.After(s.now()) {
		log.Info("expiration superseded by active subscription",
			slog.Time("end_date", *user.SubscriptionEndDate))
		return "superseded", nil
	}
	if err := s.users.DowngradeToFree(ctx, user.UID); err != nil {
		return "", err
	}
	log.Info("subscription expired, downgraded to free", slog.String("user_uid", user.UID))
	s.notifyTierChange(log, user, tier.Free, event.Type)
	return "applied", nil
}

// applyCancellation обрабатывает CANCELLATION. Отмена автопродления не
// отнимает оплаченный период: до даты истечения тариф сохраняется,
// и только отмена уже истёкшей подписки ведёт к даунгрейду.
func (s *Service) applyCancellation(ctx context.Context, log *slog.Logger, user *models.User, event models.WebhookEvent) (string, error) {
	expiresAt := user.SubscriptionEndDate
	if event.ExpirationAtMs != nil {
		t := time.UnixMilli(*event.ExpirationAtMs)
		expiresAt = &t
	}
	if expiresAt != nil && expiresAt.After(s.now()) {
		log.Info("cancellation within paid period, keeping tier",
			slog.Time("expires_at", *expiresAt))
		return "deferred", nil
	}
	return s.applyDowngrade(ctx, log, user, event)
}

// expirationTime возвращает момент истечения из события либо дату
// now+fallbackWindow, если провайдер его не прислал.
func (s *Service) expirationTime(event models.WebhookEvent) time.Time {
	if event.ExpirationAtMs != nil {
		return time.UnixMilli(*event.ExpirationAtMs)
	}
	return s.now().Add(s.fallbackWindow)
}

// notifyTierChange публикует уведомление о смене тарифа. Сбой публикации
// не откатывает уже применённое состояние.
func (s *Service) notifyTierChange(log *slog.Logger, user *models.User, to tier.Tier, eventType string) {
	if user.Tier != to {
		metrics.TierChangesTotal.WithLabelValues(string(to)).Inc()
	}
	msg := TierChangeMessage{
		UserUID:    user.UID,
		FromTier:   user.Tier,
		ToTier:     to,
		EventType:  eventType,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(msg); err != nil {
		log.Error("failed to publish tier change", sl.Err(err))
	}
}

// subscriptionTypeFromProduct выводит периодичность оплаты из product_id.
func subscriptionTypeFromProduct(productID string) tier.SubscriptionType {
	p := strings.ToLower(productID)
	switch {
	case strings.Contains(p, "yearly") || strings.Contains(p, "annual"):
		return tier.SubYearly
	case strings.Contains(p, "weekly"):
		return tier.SubWeekly
	default:
		return tier.SubMonthly
	}
}

// tierFromProduct выводит тариф из product_id.
func tierFromProduct(productID string) tier.Tier {
	if strings.Contains(strings.ToLower(productID), "pro") {
		return tier.Pro
	}
	return tier.Personal
}
