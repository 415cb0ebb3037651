package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// GetUsageCounter возвращает счётчик тарифицируемой функции.
// Отсутствие строки означает нулевое использование.
func (s *Storage) GetUsageCounter(ctx context.Context, userUID string, meter tier.Meter) (*models.UsageCounter, error) {
	const op = "storage.GetUsageCounter"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, meter, count, period_anchor
			  FROM usage_counters
			  WHERE user_uid = $1 AND meter = $2`
	var c models.UsageCounter
	var meterStr string
	row := s.DB.QueryRowContext(ctx, query, userUID, meter)
	if err := row.Scan(&c.UserUID, &meterStr, &c.Count, &c.PeriodAnchor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UsageCounter{UserUID: userUID, Meter: meter}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.Meter = tier.Meter(meterStr)
	return &c, nil
}

// IncrementUsage атомарно увеличивает счётчик тарифицируемой функции.
// Ленивый сброс периода, проверка лимита и инкремент выполняются одним
// выражением, поэтому два конкурентных запроса не могут оба пройти проверку
// и превысить лимит на единицу. anchorBefore = now − длина периода: якорь не
// новее этой границы означает, что период истёк и счётчик начинается заново.
// Возвращает итоговое значение счётчика и признак, что инкремент применился.
func (s *Storage) IncrementUsage(ctx context.Context, userUID string, meter tier.Meter, limit int, now, anchorBefore time.Time) (int, bool, error) {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO usage_counters (user_uid, meter, count, period_anchor)
			  VALUES ($1, $2, 1, $5)
			  ON CONFLICT (user_uid, meter) DO UPDATE SET
			      count = CASE WHEN usage_counters.period_anchor <= $4
			                   THEN 1
			                   ELSE usage_counters.count + 1 END,
			      period_anchor = CASE WHEN usage_counters.period_anchor <= $4
			                           THEN $5
			                           ELSE usage_counters.period_anchor END
			  WHERE (CASE WHEN usage_counters.period_anchor <= $4
			              THEN 0
			              ELSE usage_counters.count END) < $3
			  RETURNING count`
	var count int
	err := s.DB.QueryRowContext(ctx, query, userUID, meter, limit, anchorBefore, now).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		// Условие WHERE не пропустило инкремент: лимит исчерпан.
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return count, true, nil
}
