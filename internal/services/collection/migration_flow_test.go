package collection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
	guestservice "github.com/magabrotheeeer/recipe-entitlements/internal/services/guest"
)

// memGuestStore — гостевое хранилище в памяти. Реализует контракты и фасада
// коллекций, и сервиса миграции, чтобы сценарий шел через оба сервиса над
// одними данными.
type memGuestStore struct {
	mu       sync.Mutex
	profiles map[string]*models.GuestProfile
}

func newMemGuestStore() *memGuestStore {
	return &memGuestStore{profiles: make(map[string]*models.GuestProfile)}
}

func (s *memGuestStore) profile(guestID string) *models.GuestProfile {
	p, ok := s.profiles[guestID]
	if !ok {
		p = &models.GuestProfile{
			GuestID:     guestID,
			PendingData: make(map[models.Collection][]models.Item),
		}
		s.profiles[guestID] = p
	}
	return p
}

func (s *memGuestStore) Get(_ context.Context, guestID string) (*models.GuestProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[guestID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (s *memGuestStore) Create(_ context.Context) (*models.GuestProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile(fmt.Sprintf("guest-%d", len(s.profiles)+1)), nil
}

func (s *memGuestStore) Delete(_ context.Context, guestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, guestID)
	return nil
}

func (s *memGuestStore) RecordPendingPurchase(_ context.Context, guestID string, purchase models.PurchaseIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	p.PendingPurchases = append(p.PendingPurchases, purchase)
	return nil
}

func (s *memGuestStore) RecordPendingData(_ context.Context, guestID string, collection models.Collection, items []models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	p.PendingData[collection] = append(p.PendingData[collection], items...)
	return nil
}

func (s *memGuestStore) ListItems(_ context.Context, guestID string, collection models.Collection) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[guestID]
	if !ok {
		return nil, nil
	}
	return append([]models.Item(nil), p.PendingData[collection]...), nil
}

func (s *memGuestStore) AddItem(_ context.Context, guestID string, collection models.Collection, item models.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	p.PendingData[collection] = append(p.PendingData[collection], item)
	return item.ID, nil
}

func (s *memGuestStore) AddItems(_ context.Context, guestID string, collection models.Collection, items []models.Item) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	p.PendingData[collection] = append(p.PendingData[collection], items...)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (s *memGuestStore) RemoveItem(_ context.Context, guestID string, collection models.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	items := p.PendingData[collection]
	filtered := items[:0]
	for _, item := range items {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	p.PendingData[collection] = filtered
	return nil
}

func (s *memGuestStore) ToggleItemChecked(_ context.Context, guestID string, collection models.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.profile(guestID).PendingData[collection]
	for i := range items {
		if items[i].ID == id {
			items[i].Checked = !items[i].Checked
		}
	}
	return nil
}

func (s *memGuestStore) ClearChecked(_ context.Context, guestID string, collection models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile(guestID)
	items := p.PendingData[collection]
	filtered := items[:0]
	for _, item := range items {
		if !item.Checked {
			filtered = append(filtered, item)
		}
	}
	p.PendingData[collection] = filtered
	return nil
}

func (s *memGuestStore) ClearAll(_ context.Context, guestID string, collection models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profile(guestID).PendingData, collection)
	return nil
}

// memRemoteStore — удалённое хранилище в памяти с идемпотентной по id
// вставкой, как у настоящего.
type memRemoteStore struct {
	mu        sync.Mutex
	items     map[string]map[models.Collection][]models.Item
	purchases map[string]struct{}
}

func newMemRemoteStore() *memRemoteStore {
	return &memRemoteStore{
		items:     make(map[string]map[models.Collection][]models.Item),
		purchases: make(map[string]struct{}),
	}
}

func (s *memRemoteStore) collection(userUID string, collection models.Collection) []models.Item {
	return s.items[userUID][collection]
}

func (s *memRemoteStore) put(userUID string, collection models.Collection, items []models.Item) {
	if s.items[userUID] == nil {
		s.items[userUID] = make(map[models.Collection][]models.Item)
	}
	s.items[userUID][collection] = items
}

func (s *memRemoteStore) ListItems(_ context.Context, userUID string, collection models.Collection) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Item(nil), s.collection(userUID, collection)...), nil
}

func (s *memRemoteStore) AddItem(_ context.Context, userUID string, collection models.Collection, item models.Item) (string, error) {
	_, err := s.AddItems(context.Background(), userUID, collection, []models.Item{item})
	return item.ID, err
}

func (s *memRemoteStore) AddItems(_ context.Context, userUID string, collection models.Collection, items []models.Item) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.collection(userUID, collection)
	known := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		known[item.ID] = struct{}{}
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := known[item.ID]; !ok {
			existing = append(existing, item)
		}
		ids = append(ids, item.ID)
	}
	s.put(userUID, collection, existing)
	return ids, nil
}

func (s *memRemoteStore) RemoveItem(_ context.Context, userUID string, collection models.Collection, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collection(userUID, collection)
	filtered := items[:0]
	for _, item := range items {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	removed := len(items) - len(filtered)
	s.put(userUID, collection, filtered)
	return removed, nil
}

func (s *memRemoteStore) ToggleItemChecked(_ context.Context, userUID string, collection models.Collection, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collection(userUID, collection)
	var toggled int
	for i := range items {
		if items[i].ID == id {
			items[i].Checked = !items[i].Checked
			toggled++
		}
	}
	return toggled, nil
}

func (s *memRemoteStore) ClearChecked(_ context.Context, userUID string, collection models.Collection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collection(userUID, collection)
	filtered := items[:0]
	for _, item := range items {
		if !item.Checked {
			filtered = append(filtered, item)
		}
	}
	cleared := len(items) - len(filtered)
	s.put(userUID, collection, filtered)
	return cleared, nil
}

func (s *memRemoteStore) ClearAll(_ context.Context, userUID string, collection models.Collection) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := len(s.collection(userUID, collection))
	s.put(userUID, collection, nil)
	return cleared, nil
}

func (s *memRemoteStore) CreatePurchase(_ context.Context, purchase models.PurchaseRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.purchases[purchase.TransactionID]; ok {
		return false, nil
	}
	s.purchases[purchase.TransactionID] = struct{}{}
	return true, nil
}

func (s *memRemoteStore) ApplyGuestPurchase(_ context.Context, _ string, _ tier.SubscriptionType, _ time.Time) (bool, error) {
	return true, nil
}

// staticSessions отдает один и тот же UID на любой непустой токен.
type staticSessions struct {
	uid string
}

func (s staticSessions) ValidateSession(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", models.ErrUnauthenticated
	}
	return s.uid, nil
}

// eventuallyList дожидается завершения фоновой выборки и возвращает список.
func eventuallyList(t *testing.T, facade *Service, caller Caller, collection models.Collection) []models.Item {
	t.Helper()
	var items []models.Item
	require.Eventually(t, func() bool {
		res, err := facade.List(context.Background(), caller, collection)
		if err != nil || res.Loading {
			return false
		}
		items = res.Items
		return true
	}, time.Second, 10*time.Millisecond)
	return items
}

// Сквозной сценарий: гость наполняет список покупок, входит в аккаунт,
// после миграции видит те же элементы в удалённой ветке и работает с ними
// дальше обычными операциями фасада.
func TestGuestSignInKeepsShoppingList(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(testWriter{}, nil))

	local := newMemGuestStore()
	remote := newMemRemoteStore()
	facade := New(log, staticSessions{uid: "uid-1"}, remote, local, newFakeCache())
	migrator := guestservice.New(log, local, remote)

	guestCaller := Caller{GuestID: "guest-1"}
	for _, name := range []string{"Milk", "Eggs", "Butter"} {
		_, err := facade.Add(ctx, guestCaller, models.CollectionShoppingList, models.DummyItem{Name: name})
		require.NoError(t, err)
	}

	res, err := facade.List(ctx, guestCaller, models.CollectionShoppingList)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)

	// Вход: гостевой профиль мигрирует в аккаунт и удаляется.
	require.NoError(t, migrator.Migrate(ctx, "guest-1", "uid-1"))
	_, err = local.Get(ctx, "guest-1")
	require.ErrorIs(t, err, models.ErrNotFound)

	// Тот же вызов с токеном уходит в удалённую ветку и видит перенесённое.
	authCaller := Caller{Token: "token-1"}
	items := eventuallyList(t, facade, authCaller, models.CollectionShoppingList)
	require.Len(t, items, 3)
	names := make([]string, 0, len(items))
	for _, item := range items {
		assert.False(t, item.Checked)
		names = append(names, item.Name)
	}
	assert.ElementsMatch(t, []string{"Milk", "Eggs", "Butter"}, names)

	require.NoError(t, facade.ToggleChecked(ctx, authCaller, models.CollectionShoppingList, items[0].ID))
	require.NoError(t, facade.ClearChecked(ctx, authCaller, models.CollectionShoppingList))

	remaining := eventuallyList(t, facade, authCaller, models.CollectionShoppingList)
	require.Len(t, remaining, 2)
	for _, item := range remaining {
		assert.NotEqual(t, items[0].ID, item.ID)
		assert.False(t, item.Checked)
	}
}
