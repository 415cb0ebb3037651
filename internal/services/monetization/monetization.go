// Package monetization реализует дневные лимиты тарифицируемых функций
// и реестр разблокированных стран.
package monetization

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// usagePeriod — длительность окна счётчика. Якорь периода ставится при
// первом использовании после сброса, а не в полночь.
const usagePeriod = 24 * time.Hour

// UserStore описывает операции над пользователями, нужные сервису.
type UserStore interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UnlockCountry(ctx context.Context, userUID, countryCode string) error
}

// UsageStore описывает операции над счётчиками использования.
type UsageStore interface {
	GetUsageCounter(ctx context.Context, userUID string, meter tier.Meter) (*models.UsageCounter, error)
	IncrementUsage(ctx context.Context, userUID string, meter tier.Meter, limit int, now, anchorBefore time.Time) (int, bool, error)
}

// Service отвечает за лимиты использования и разблокировку стран.
type Service struct {
	log   *slog.Logger
	users UserStore
	usage UsageStore
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, users UserStore, usage UsageStore) *Service {
	return &Service{
		log:   log,
		users: users,
		usage: usage,
		now:   time.Now,
	}
}

// effectiveCount возвращает счётчик с учётом ленивого сброса: если якорь
// периода старше окна, счётчик считается нулевым.
func (s *Service) effectiveCount(counter *models.UsageCounter) int {
	if s.now().Sub(counter.PeriodAnchor) >= usagePeriod {
		return 0
	}
	return counter.Count
}

// Status возвращает сводку по тарифу, счётчикам и разблокированным странам.
func (s *Service) Status(ctx context.Context, userUID string) (*models.UsageStatus, error) {
	const op = "monetization.Status"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	aiCounter, err := s.usage.GetUsageCounter(ctx, userUID, tier.MeterAI)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	travelCounter, err := s.usage.GetUsageCounter(ctx, userUID, tier.MeterTravel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	aiCount := s.effectiveCount(aiCounter)
	travelCount := s.effectiveCount(travelCounter)
	aiLimit := tier.DailyLimit(user.Tier, tier.MeterAI)
	travelLimit := tier.DailyLimit(user.Tier, tier.MeterTravel)

	return &models.UsageStatus{
		Tier:              user.Tier,
		DailyAiCount:      aiCount,
		AiLimit:           aiLimit,
		RemainingAi:       max(aiLimit-aiCount, 0),
		CanUseAi:          aiCount < aiLimit,
		DailyTravelCount:  travelCount,
		TravelLimit:       travelLimit,
		RemainingTravel:   max(travelLimit-travelCount, 0),
		CanUseTravel:      travelCount < travelLimit,
		UnlockedCountries: user.UnlockedCountries,
	}, nil
}

// CheckLimit сообщает, остались ли у пользователя вызовы тарифицируемой
// функции, не расходуя лимит.
func (s *Service) CheckLimit(ctx context.Context, userUID string, meter tier.Meter) (*models.LimitCheck, error) {
	const op = "monetization.CheckLimit"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	counter, err := s.usage.GetUsageCounter(ctx, userUID, meter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	limit := tier.DailyLimit(user.Tier, meter)
	count := s.effectiveCount(counter)
	return &models.LimitCheck{
		Allowed:   count < limit,
		Remaining: max(limit-count, 0),
		Limit:     limit,
	}, nil
}

// Increment атомарно расходует один вызов тарифицируемой функции.
// Проверка и инкремент выполняются одним запросом к хранилищу: два
// конкурирующих вызова при одном оставшемся вызове не могут пройти оба.
// Тариф без доступа к функции (нулевой лимит) — ErrUpgradeRequired;
// исчерпанный лимит периода — ErrQuotaExceeded.
func (s *Service) Increment(ctx context.Context, userUID string, meter tier.Meter) (*models.LimitCheck, error) {
	const op = "monetization.Increment"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	limit := tier.DailyLimit(user.Tier, meter)
	if limit <= 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUpgradeRequired)
	}

	now := s.now()
	count, allowed, err := s.usage.IncrementUsage(ctx, userUID, meter, limit, now, now.Add(-usagePeriod))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !allowed {
		return nil, fmt.Errorf("%s: %w", op, models.ErrQuotaExceeded)
	}
	return &models.LimitCheck{
		Allowed:   true,
		Remaining: max(limit-count, 0),
		Limit:     limit,
	}, nil
}

// UnlockCountry добавляет страну в реестр разблокированных после просмотра
// рекламы. Повторная разблокировка и разблокировка бесплатной страны —
// no-op; подписчикам personal/pro разблокировка не нужна.
func (s *Service) UnlockCountry(ctx context.Context, userUID, country string) error {
	const op = "monetization.UnlockCountry"
	available, err := s.IsCountryAvailable(ctx, userUID, country)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if available {
		return nil
	}
	if err := s.users.UnlockCountry(ctx, userUID, country); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("country unlocked",
		slog.String("user_uid", userUID), slog.String("country", country))
	return nil
}

// IsCountryAvailable сообщает, доступна ли страна пользователю с учётом
// тарифа, бесплатного списка и реестра разблокировок.
func (s *Service) IsCountryAvailable(ctx context.Context, userUID, country string) (bool, error) {
	const op = "monetization.IsCountryAvailable"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tier.IsCountryUnlocked(user.Tier, country, user.UnlockedCountries), nil
}
