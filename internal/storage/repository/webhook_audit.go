package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// WebhookEventSeen сообщает, обрабатывалось ли событие с таким id.
// Биллинговый провайдер доставляет события at-least-once, поэтому журнал
// служит фильтром повторов.
func (s *Storage) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	const op = "storage.WebhookEventSeen"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE id = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// LogWebhookEvent записывает обработанное событие в журнал.
// Конкурентная повторная запись того же id — no-op.
func (s *Storage) LogWebhookEvent(ctx context.Context, event models.WebhookEvent) error {
	const op = "storage.LogWebhookEvent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO webhook_events (id, user_uid, event_type, product_id)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query,
		event.ID, event.AppUserID, event.Type, event.ProductID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
