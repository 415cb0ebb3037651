package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// typeMap декодирует postgres-типы, которые драйвер database/sql отдаёт
// текстом, в частности text[] для unlocked_countries.
var typeMap = pgtype.NewMap()

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (email, username, password_hash, tier, subscription_type)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, user.Tier,
		user.SubscriptionType).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, password_hash, tier, subscription_type,
			      subscription_end_date, billing_customer_id, unlocked_countries,
			      created_at, updated_at
			  FROM users
			  WHERE username = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, username), op)
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, email, username, password_hash, tier, subscription_type,
			      subscription_end_date, billing_customer_id, unlocked_countries,
			      created_at, updated_at
			  FROM users
			  WHERE uid = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, userUID), op)
}

func (s *Storage) scanUser(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var (
		endDate   sql.NullTime
		tierStr   string
		subStr    string
		countries []string
	)
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.PasswordHash,
		&tierStr, &subStr, &endDate, &u.BillingCustomerID,
		typeMap.SQLScanner(&countries), &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Tier = tier.ParseTier(tierStr)
	u.SubscriptionType = tier.SubscriptionType(subStr)
	if endDate.Valid {
		u.SubscriptionEndDate = &endDate.Time
	}
	u.UnlockedCountries = countries
	return u, nil
}

// SetBillingCustomerID сохраняет идентификатор покупателя у провайдера,
// если он ещё не записан.
func (s *Storage) SetBillingCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetBillingCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET billing_customer_id = $2, updated_at = now()
			  WHERE uid = $1 AND billing_customer_id = ''`
	if _, err := s.DB.ExecContext(ctx, query, userUID, customerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ApplySubscription обновляет тариф и дату окончания подписки пользователя,
// только если новая дата не раньше текущей (правило монотонного продвижения).
// Возвращает true, если обновление применилось. Благодаря проверке в WHERE
// события, доставленные не по порядку, сходятся к тому же конечному состоянию.
func (s *Storage) ApplySubscription(ctx context.Context, userUID string, subType tier.SubscriptionType, t tier.Tier, endDate time.Time) (bool, error) {
	const op = "storage.ApplySubscription"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_type = $2, tier = $3, subscription_end_date = $4,
			      updated_at = now()
			  WHERE uid = $1
			    AND (subscription_end_date IS NULL OR subscription_end_date <= $4)`
	res, err := s.DB.ExecContext(ctx, query, userUID, subType, t, endDate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ApplyGuestPurchase переносит гостевую покупку на подписку пользователя.
// Тариф здесь не трогается — его пишет только реконсилиатор; обновляются
// тип подписки и дата окончания, и только вперёд.
func (s *Storage) ApplyGuestPurchase(ctx context.Context, userUID string, subType tier.SubscriptionType, endDate time.Time) (bool, error) {
	const op = "storage.ApplyGuestPurchase"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_type = $2, subscription_end_date = $3, updated_at = now()
			  WHERE uid = $1
			    AND (subscription_end_date IS NULL OR subscription_end_date < $3)`
	res, err := s.DB.ExecContext(ctx, query, userUID, subType, endDate)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// DowngradeToFree безусловно понижает пользователя до free/free.
// Повторный вызов идемпотентен.
func (s *Storage) DowngradeToFree(ctx context.Context, userUID string) error {
	const op = "storage.DowngradeToFree"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET tier = 'free', subscription_type = 'free', updated_at = now()
			  WHERE uid = $1`
	if _, err := s.DB.ExecContext(ctx, query, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UnlockCountry добавляет страну в множество разблокированных.
// Если страна уже там — no-op с успехом: колбэки рекламного SDK
// не гарантируют exactly-once.
func (s *Storage) UnlockCountry(ctx context.Context, userUID, countryCode string) error {
	const op = "storage.UnlockCountry"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET unlocked_countries = array_append(unlocked_countries, $2),
			      updated_at = now()
			  WHERE uid = $1 AND NOT ($2 = ANY(unlocked_countries))`
	if _, err := s.DB.ExecContext(ctx, query, userUID, countryCode); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
