// Package gueststore реализует гостевое (до-аутентификационное) хранилище
// на Redis. Профиль гостя хранится одним JSON-документом под ключом
// guest:<id>; коллекции гостя — это pendingData профиля, именно они
// переносятся при миграции в аккаунт. Мутации одного профиля выполняются
// последовательно под пер-гостевым мьютексом.
package gueststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/recipe-entitlements/internal/config"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// Store — гостевое хранилище поверх Redis.
type Store struct {
	Db *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// InitServer подключается к Redis и возвращает готовое хранилище.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "gueststore.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{Db: db, locks: make(map[string]*sync.Mutex)}, nil
}

func guestKey(guestID string) string {
	return "guest:" + guestID
}

// lockFor возвращает мьютекс конкретного гостя.
func (s *Store) lockFor(guestID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[guestID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[guestID] = l
	}
	return l
}

// Get возвращает профиль гостя или models.ErrNotFound.
func (s *Store) Get(ctx context.Context, guestID string) (*models.GuestProfile, error) {
	const op = "gueststore.Get"
	val, err := s.Db.Get(ctx, guestKey(guestID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var profile models.GuestProfile
	if err := json.Unmarshal([]byte(val), &profile); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &profile, nil
}

// Create создает новый профиль гостя и возвращает его.
func (s *Store) Create(ctx context.Context) (*models.GuestProfile, error) {
	const op = "gueststore.Create"
	profile := &models.GuestProfile{
		GuestID:     uuid.New().String(),
		CreatedAt:   time.Now().UTC(),
		PendingData: make(map[models.Collection][]models.Item),
	}
	if err := s.save(ctx, profile); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile, nil
}

func (s *Store) save(ctx context.Context, profile *models.GuestProfile) error {
	jsonData, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.Db.Set(ctx, guestKey(profile.GuestID), jsonData, 0).Err()
}

// Delete уничтожает профиль гостя целиком. Вызывается только после
// подтверждённого успеха миграции.
func (s *Store) Delete(ctx context.Context, guestID string) error {
	const op = "gueststore.Delete"
	if err := s.Db.Del(ctx, guestKey(guestID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// update выполняет read-modify-write профиля под пер-гостевым мьютексом.
// Отсутствующий профиль создаётся с переданным guestID: первая
// неаутентифицированная запись лениво порождает профиль. Любая другая
// ошибка чтения прерывает мутацию: перезапись профиля поверх сбойного
// чтения потеряла бы накопленные данные гостя.
func (s *Store) update(ctx context.Context, guestID string, fn func(*models.GuestProfile)) error {
	lock := s.lockFor(guestID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.Get(ctx, guestID)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		profile = &models.GuestProfile{
			GuestID:     guestID,
			CreatedAt:   time.Now().UTC(),
			PendingData: make(map[models.Collection][]models.Item),
		}
	}
	fn(profile)
	return s.save(ctx, profile)
}

// RecordPendingPurchase добавляет гостевую покупку, не трогая остальные поля.
func (s *Store) RecordPendingPurchase(ctx context.Context, guestID string, purchase models.PurchaseIntent) error {
	const op = "gueststore.RecordPendingPurchase"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		p.PendingPurchases = append(p.PendingPurchases, purchase)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RecordPendingData дозаписывает элементы в коллекцию профиля,
// не перетирая другие коллекции.
func (s *Store) RecordPendingData(ctx context.Context, guestID string, collection models.Collection, items []models.Item) error {
	const op = "gueststore.RecordPendingData"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		p.PendingData[collection] = append(p.PendingData[collection], items...)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListItems возвращает элементы коллекции гостя. Отсутствующий профиль —
// пустая коллекция, а не ошибка.
func (s *Store) ListItems(ctx context.Context, guestID string, collection models.Collection) ([]models.Item, error) {
	const op = "gueststore.ListItems"
	profile, err := s.Get(ctx, guestID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return profile.PendingData[collection], nil
}

// AddItem добавляет элемент в коллекцию гостя.
func (s *Store) AddItem(ctx context.Context, guestID string, collection models.Collection, item models.Item) (string, error) {
	const op = "gueststore.AddItem"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		p.PendingData[collection] = append(p.PendingData[collection], item)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return item.ID, nil
}

// AddItems добавляет партию элементов в коллекцию гостя.
func (s *Store) AddItems(ctx context.Context, guestID string, collection models.Collection, items []models.Item) ([]string, error) {
	const op = "gueststore.AddItems"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		p.PendingData[collection] = append(p.PendingData[collection], items...)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// RemoveItem удаляет элемент коллекции гостя по id.
func (s *Store) RemoveItem(ctx context.Context, guestID string, collection models.Collection, id string) error {
	const op = "gueststore.RemoveItem"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		items := p.PendingData[collection]
		filtered := items[:0]
		for _, item := range items {
			if item.ID != id {
				filtered = append(filtered, item)
			}
		}
		p.PendingData[collection] = filtered
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ToggleItemChecked переключает флаг checked элемента коллекции гостя.
func (s *Store) ToggleItemChecked(ctx context.Context, guestID string, collection models.Collection, id string) error {
	const op = "gueststore.ToggleItemChecked"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		items := p.PendingData[collection]
		for i := range items {
			if items[i].ID == id {
				items[i].Checked = !items[i].Checked
			}
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearChecked удаляет отмеченные элементы коллекции гостя.
func (s *Store) ClearChecked(ctx context.Context, guestID string, collection models.Collection) error {
	const op = "gueststore.ClearChecked"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		items := p.PendingData[collection]
		filtered := items[:0]
		for _, item := range items {
			if !item.Checked {
				filtered = append(filtered, item)
			}
		}
		p.PendingData[collection] = filtered
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearAll удаляет все элементы коллекции гостя.
func (s *Store) ClearAll(ctx context.Context, guestID string, collection models.Collection) error {
	const op = "gueststore.ClearAll"
	err := s.update(ctx, guestID, func(p *models.GuestProfile) {
		delete(p.PendingData, collection)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
