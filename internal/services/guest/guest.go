// Package guest реализует гостевые профили и их миграцию в аккаунт.
//
// Миграция копирует данные гостя в удалённое хранилище и только после
// полного успеха удаляет профиль. Каждый шаг копирования идемпотентен,
// поэтому повторная миграция после сбоя не создаёт дубликатов.
package guest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/metrics"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// migrationCollections — порядок переноса коллекций при миграции.
var migrationCollections = []models.Collection{
	models.CollectionShoppingList,
	models.CollectionPantry,
	models.CollectionFavorites,
	models.CollectionHistory,
}

// LocalStore описывает гостевое хранилище.
type LocalStore interface {
	Get(ctx context.Context, guestID string) (*models.GuestProfile, error)
	Create(ctx context.Context) (*models.GuestProfile, error)
	Delete(ctx context.Context, guestID string) error
	RecordPendingPurchase(ctx context.Context, guestID string, purchase models.PurchaseIntent) error
	RecordPendingData(ctx context.Context, guestID string, collection models.Collection, items []models.Item) error
	ListItems(ctx context.Context, guestID string, collection models.Collection) ([]models.Item, error)
}

// RemoteStore описывает операции удалённого хранилища, нужные миграции.
type RemoteStore interface {
	AddItems(ctx context.Context, userUID string, collection models.Collection, items []models.Item) ([]string, error)
	CreatePurchase(ctx context.Context, purchase models.PurchaseRecord) (bool, error)
	ApplyGuestPurchase(ctx context.Context, userUID string, subType tier.SubscriptionType, endDate time.Time) (bool, error)
}

// Service управляет гостевыми профилями.
type Service struct {
	log    *slog.Logger
	local  LocalStore
	remote RemoteStore

	mu        sync.Mutex
	migrating map[string]struct{} // гостевые профили с активной миграцией
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, local LocalStore, remote RemoteStore) *Service {
	return &Service{
		log:       log,
		local:     local,
		remote:    remote,
		migrating: make(map[string]struct{}),
	}
}

// GetOrCreate возвращает существующий гостевой профиль либо создаёт новый,
// если guestID пуст или профиль не найден.
func (s *Service) GetOrCreate(ctx context.Context, guestID string) (*models.GuestProfile, error) {
	const op = "guest.GetOrCreate"
	if guestID != "" {
		profile, err := s.local.Get(ctx, guestID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	profile, err := s.local.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

// RecordPurchase сохраняет покупку гостя для реплея при миграции.
func (s *Service) RecordPurchase(ctx context.Context, guestID string, intent models.PurchaseIntent) error {
	return s.local.RecordPendingPurchase(ctx, guestID, intent)
}

// RecordData сохраняет снимок коллекции в гостевом профиле.
func (s *Service) RecordData(ctx context.Context, guestID string, collection models.Collection, items []models.Item) error {
	return s.local.RecordPendingData(ctx, guestID, collection, items)
}

// Migrate переносит гостевой профиль в аккаунт пользователя.
//
// Порядок жёсткий: сначала копирование коллекций, затем реплей покупок и
// только после полного успеха — удаление профиля. Одновременная миграция
// одного и того же профиля невозможна; повторный вызов при активной
// миграции возвращает ErrMigrationInProgress.
func (s *Service) Migrate(ctx context.Context, guestID, userUID string) error {
	const op = "guest.Migrate"

	s.mu.Lock()
	if _, ok := s.migrating[guestID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, models.ErrMigrationInProgress)
	}
	s.migrating[guestID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.migrating, guestID)
		s.mu.Unlock()
	}()

	log := s.log.With(slog.String("op", op), slog.String("guest_id", guestID))

	profile, err := s.local.Get(ctx, guestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Профиль уже мигрирован или не существовал.
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.copyCollections(ctx, guestID, userUID); err != nil {
		metrics.GuestMigrationsTotal.WithLabelValues("failed").Inc()
		log.Error("migration failed while copying collections", sl.Err(err))
		return fmt.Errorf("%s: %w", op, errors.Join(models.ErrMigrationFailed, err))
	}

	if err := s.replayPurchases(ctx, userUID, profile.PendingPurchases); err != nil {
		metrics.GuestMigrationsTotal.WithLabelValues("failed").Inc()
		log.Error("migration failed while replaying purchases", sl.Err(err))
		return fmt.Errorf("%s: %w", op, errors.Join(models.ErrMigrationFailed, err))
	}

	if err := s.local.Delete(ctx, guestID); err != nil {
		// Данные уже в аккаунте; осиротевший профиль безопасно мигрирует
		// повторно благодаря идемпотентности шагов копирования.
		metrics.GuestMigrationsTotal.WithLabelValues("orphaned").Inc()
		log.Error("failed to delete guest profile after migration", sl.Err(err))
		return fmt.Errorf("%s: %w", op, errors.Join(models.ErrMigrationFailed, err))
	}

	metrics.GuestMigrationsTotal.WithLabelValues("success").Inc()
	log.Info("guest profile migrated", slog.String("user_uid", userUID))
	return nil
}

// copyCollections переносит все коллекции профиля в удалённое хранилище.
// Элементы сохраняют свои идентификаторы, поэтому повторное копирование
// не создаёт дубликатов.
func (s *Service) copyCollections(ctx context.Context, guestID, userUID string) error {
	for _, collection := range migrationCollections {
		items, err := s.local.ListItems(ctx, guestID, collection)
		if err != nil {
			return fmt.Errorf("list %s: %w", collection, err)
		}
		if len(items) == 0 {
			continue
		}
		if _, err := s.remote.AddItems(ctx, userUID, collection, items); err != nil {
			return fmt.Errorf("copy %s: %w", collection, err)
		}
	}
	return nil
}

// replayPurchases воспроизводит покупки гостя на сервере. Дубликаты
// отсекаются по TransactionID; срок подписки продлевается только вперёд.
func (s *Service) replayPurchases(ctx context.Context, userUID string, intents []models.PurchaseIntent) error {
	for _, intent := range intents {
		record := models.PurchaseRecord{
			TransactionID:    intent.TransactionID,
			UserUID:          userUID,
			SubscriptionType: intent.SubscriptionType,
			Amount:           intent.Amount,
			PurchaseDate:     intent.PurchaseDate,
			Status:           models.PurchaseCompleted,
		}
		inserted, err := s.remote.CreatePurchase(ctx, record)
		if err != nil {
			return fmt.Errorf("create purchase %s: %w", intent.TransactionID, err)
		}
		if !inserted {
			continue
		}
		endDate := subscriptionEnd(intent)
		if _, err := s.remote.ApplyGuestPurchase(ctx, userUID, intent.SubscriptionType, endDate); err != nil {
			return fmt.Errorf("apply purchase %s: %w", intent.TransactionID, err)
		}
	}
	return nil
}

// subscriptionEnd вычисляет срок подписки от даты покупки.
func subscriptionEnd(intent models.PurchaseIntent) time.Time {
	switch intent.SubscriptionType {
	case tier.SubYearly:
		return intent.PurchaseDate.AddDate(0, 0, 365)
	case tier.SubWeekly:
		return intent.PurchaseDate.AddDate(0, 0, 7)
	default:
		return intent.PurchaseDate.AddDate(0, 0, 30)
	}
}
