package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// CreatePurchase сохраняет запись о покупке. Повторная вставка того же
// transaction_id — no-op; возвращает true, если строка действительно
// вставлена. На этом держится идемпотентность реплея гостевых покупок.
func (s *Storage) CreatePurchase(ctx context.Context, purchase models.PurchaseRecord) (bool, error) {
	const op = "storage.CreatePurchase"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO purchases
			      (transaction_id, user_uid, subscription_type, amount, currency,
			       purchase_date, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (transaction_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query,
		purchase.TransactionID, purchase.UserUID, purchase.SubscriptionType,
		purchase.Amount, purchase.Currency, purchase.PurchaseDate, purchase.Status)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ListPurchases возвращает покупки пользователя, новые первыми.
func (s *Storage) ListPurchases(ctx context.Context, userUID string) ([]models.PurchaseRecord, error) {
	const op = "storage.ListPurchases"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT transaction_id, user_uid, subscription_type, amount, currency,
			      purchase_date, status
			  FROM purchases
			  WHERE user_uid = $1
			  ORDER BY purchase_date DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PurchaseRecord
	for rows.Next() {
		var p models.PurchaseRecord
		if err := rows.Scan(&p.TransactionID, &p.UserUID, &p.SubscriptionType,
			&p.Amount, &p.Currency, &p.PurchaseDate, &p.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
