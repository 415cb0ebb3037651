// Package collection реализует единый фасад над коллекциями пользователя.
//
// Фасад скрывает от обработчиков, где живут данные: у гостя — в гостевом
// профиле, у авторизованного пользователя — в удалённом хранилище. Выбор
// ветки происходит на каждом вызове заново по состоянию сессии, поэтому
// сразу после входа тот же вызов уходит уже в удалённую ветку.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/sl"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// listCacheTTL — время жизни закешированного списка коллекции.
const listCacheTTL = 5 * time.Minute

// fetchTimeout ограничивает фоновую выборку удалённого списка.
const fetchTimeout = 10 * time.Second

// Caller описывает вызывающую сторону запроса: токен сессии (может быть
// пустым) и идентификатор гостевого профиля.
type Caller struct {
	Token   string
	GuestID string
}

// SessionValidator проверяет токен сессии и возвращает UID пользователя.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// RemoteStore описывает операции над коллекциями в удалённом хранилище.
type RemoteStore interface {
	ListItems(ctx context.Context, userUID string, collection models.Collection) ([]models.Item, error)
	AddItem(ctx context.Context, userUID string, collection models.Collection, item models.Item) (string, error)
	AddItems(ctx context.Context, userUID string, collection models.Collection, items []models.Item) ([]string, error)
	RemoveItem(ctx context.Context, userUID string, collection models.Collection, id string) (int, error)
	ToggleItemChecked(ctx context.Context, userUID string, collection models.Collection, id string) (int, error)
	ClearChecked(ctx context.Context, userUID string, collection models.Collection) (int, error)
	ClearAll(ctx context.Context, userUID string, collection models.Collection) (int, error)
}

// LocalStore описывает операции над коллекциями гостевого профиля.
type LocalStore interface {
	ListItems(ctx context.Context, guestID string, collection models.Collection) ([]models.Item, error)
	AddItem(ctx context.Context, guestID string, collection models.Collection, item models.Item) (string, error)
	AddItems(ctx context.Context, guestID string, collection models.Collection, items []models.Item) ([]string, error)
	RemoveItem(ctx context.Context, guestID string, collection models.Collection, id string) error
	ToggleItemChecked(ctx context.Context, guestID string, collection models.Collection, id string) error
	ClearChecked(ctx context.Context, guestID string, collection models.Collection) error
	ClearAll(ctx context.Context, guestID string, collection models.Collection) error
}

// ListCache кеширует списки удалённых коллекций.
type ListCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service — фасад коллекций.
type Service struct {
	log      *slog.Logger
	sessions SessionValidator
	remote   RemoteStore
	local    LocalStore
	cache    ListCache

	mu       sync.Mutex
	inflight map[string]struct{} // ключи кеша с активной фоновой выборкой
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, sessions SessionValidator, remote RemoteStore, local LocalStore, cache ListCache) *Service {
	return &Service{
		log:      log,
		sessions: sessions,
		remote:   remote,
		local:    local,
		cache:    cache,
		inflight: make(map[string]struct{}),
	}
}

// resolve определяет ветку выполнения для вызова. Пустой токен означает
// гостя; протухшая сессия возвращает ErrStaleSession, а не откат к гостю,
// чтобы клиент явно переавторизовался.
func (s *Service) resolve(ctx context.Context, caller Caller) (userUID string, remote bool, err error) {
	if caller.Token == "" {
		if caller.GuestID == "" {
			return "", false, models.ErrUnauthenticated
		}
		return caller.GuestID, false, nil
	}
	uid, err := s.sessions.ValidateSession(ctx, caller.Token)
	if err != nil {
		if errors.Is(err, models.ErrStaleSession) {
			return "", false, models.ErrStaleSession
		}
		return "", false, err
	}
	return uid, true, nil
}

func cacheKey(userUID string, collection models.Collection) string {
	return fmt.Sprintf("collection:%s:%s", userUID, collection)
}

// List возвращает содержимое коллекции. Для гостя чтение синхронное.
// Для удалённой ветки холодный кеш даёт ListResult с Loading=true и
// запускает фоновую выборку; повторный вызов после её завершения
// возвращает данные.
func (s *Service) List(ctx context.Context, caller Caller, collection models.Collection) (models.ListResult, error) {
	const op = "collection.List"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return models.ListResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !remote {
		items, err := s.local.ListItems(ctx, uid, collection)
		if err != nil {
			return models.ListResult{}, fmt.Errorf("%s: %w", op, err)
		}
		return models.ListResult{Items: items}, nil
	}

	key := cacheKey(uid, collection)
	var cached []models.Item
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		s.log.Error("failed to read list cache", sl.Err(err))
	}
	if found {
		return models.ListResult{Items: cached}, nil
	}

	s.spawnFetch(uid, collection, key)
	return models.ListResult{Loading: true}, nil
}

// spawnFetch запускает фоновую выборку списка, не более одной на ключ.
func (s *Service) spawnFetch(userUID string, collection models.Collection, key string) {
	s.mu.Lock()
	if _, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		return
	}
	s.inflight[key] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		items, err := s.remote.ListItems(ctx, userUID, collection)
		if err != nil {
			s.log.Error("background list fetch failed",
				slog.String("collection", string(collection)), sl.Err(err))
			return
		}
		if items == nil {
			items = []models.Item{}
		}
		if err := s.cache.Set(key, items, listCacheTTL); err != nil {
			s.log.Error("failed to fill list cache", sl.Err(err))
		}
	}()
}

// Add добавляет элемент в коллекцию и возвращает его идентификатор.
func (s *Service) Add(ctx context.Context, caller Caller, collection models.Collection, dummy models.DummyItem) (string, error) {
	const op = "collection.Add"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	item := newItem(dummy)
	if !remote {
		id, err := s.local.AddItem(ctx, uid, collection, item)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return id, nil
	}
	id, err := s.remote.AddItem(ctx, uid, collection, item)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return id, nil
}

// AddMany добавляет пачку элементов за одну операцию. В удалённой ветке
// пачка атомарна: либо записываются все элементы, либо ни одного.
func (s *Service) AddMany(ctx context.Context, caller Caller, collection models.Collection, dummies []models.DummyItem) ([]string, error) {
	const op = "collection.AddMany"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	items := make([]models.Item, 0, len(dummies))
	for _, d := range dummies {
		items = append(items, newItem(d))
	}
	if !remote {
		ids, err := s.local.AddItems(ctx, uid, collection, items)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return ids, nil
	}
	ids, err := s.remote.AddItems(ctx, uid, collection, items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return ids, nil
}

// Remove удаляет элемент по идентификатору. Удаление отсутствующего
// элемента не является ошибкой.
func (s *Service) Remove(ctx context.Context, caller Caller, collection models.Collection, id string) error {
	const op = "collection.Remove"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !remote {
		if err := s.local.RemoveItem(ctx, uid, collection, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if _, err := s.remote.RemoveItem(ctx, uid, collection, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return nil
}

// ToggleChecked переключает флаг checked у элемента.
func (s *Service) ToggleChecked(ctx context.Context, caller Caller, collection models.Collection, id string) error {
	const op = "collection.ToggleChecked"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !remote {
		if err := s.local.ToggleItemChecked(ctx, uid, collection, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if _, err := s.remote.ToggleItemChecked(ctx, uid, collection, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return nil
}

// ClearChecked удаляет все отмеченные элементы коллекции.
func (s *Service) ClearChecked(ctx context.Context, caller Caller, collection models.Collection) error {
	const op = "collection.ClearChecked"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !remote {
		if err := s.local.ClearChecked(ctx, uid, collection); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if _, err := s.remote.ClearChecked(ctx, uid, collection); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return nil
}

// ClearAll полностью очищает коллекцию.
func (s *Service) ClearAll(ctx context.Context, caller Caller, collection models.Collection) error {
	const op = "collection.ClearAll"
	uid, remote, err := s.resolve(ctx, caller)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !remote {
		if err := s.local.ClearAll(ctx, uid, collection); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if _, err := s.remote.ClearAll(ctx, uid, collection); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(uid, collection)
	return nil
}

func (s *Service) invalidate(userUID string, collection models.Collection) {
	if err := s.cache.Invalidate(cacheKey(userUID, collection)); err != nil {
		s.log.Error("failed to invalidate list cache", sl.Err(err))
	}
}

func newItem(d models.DummyItem) models.Item {
	return models.Item{
		ID:         uuid.NewString(),
		Name:       d.Name,
		Measure:    d.Measure,
		RecipeID:   d.RecipeID,
		RecipeName: d.RecipeName,
		AddedAt:    time.Now().UTC(),
	}
}
