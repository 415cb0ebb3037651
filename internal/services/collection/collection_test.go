package collection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) ValidateSession(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) ListItems(ctx context.Context, userUID string, collection models.Collection) ([]models.Item, error) {
	args := m.Called(ctx, userUID, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *mockRemote) AddItem(ctx context.Context, userUID string, collection models.Collection, item models.Item) (string, error) {
	args := m.Called(ctx, userUID, collection, item)
	return args.String(0), args.Error(1)
}

func (m *mockRemote) AddItems(ctx context.Context, userUID string, collection models.Collection, items []models.Item) ([]string, error) {
	args := m.Called(ctx, userUID, collection, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRemote) RemoveItem(ctx context.Context, userUID string, collection models.Collection, id string) (int, error) {
	args := m.Called(ctx, userUID, collection, id)
	return args.Int(0), args.Error(1)
}

func (m *mockRemote) ToggleItemChecked(ctx context.Context, userUID string, collection models.Collection, id string) (int, error) {
	args := m.Called(ctx, userUID, collection, id)
	return args.Int(0), args.Error(1)
}

func (m *mockRemote) ClearChecked(ctx context.Context, userUID string, collection models.Collection) (int, error) {
	args := m.Called(ctx, userUID, collection)
	return args.Int(0), args.Error(1)
}

func (m *mockRemote) ClearAll(ctx context.Context, userUID string, collection models.Collection) (int, error) {
	args := m.Called(ctx, userUID, collection)
	return args.Int(0), args.Error(1)
}

type mockLocal struct {
	mock.Mock
}

func (m *mockLocal) ListItems(ctx context.Context, guestID string, collection models.Collection) ([]models.Item, error) {
	args := m.Called(ctx, guestID, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Item), args.Error(1)
}

func (m *mockLocal) AddItem(ctx context.Context, guestID string, collection models.Collection, item models.Item) (string, error) {
	args := m.Called(ctx, guestID, collection, item)
	return args.String(0), args.Error(1)
}

func (m *mockLocal) AddItems(ctx context.Context, guestID string, collection models.Collection, items []models.Item) ([]string, error) {
	args := m.Called(ctx, guestID, collection, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockLocal) RemoveItem(ctx context.Context, guestID string, collection models.Collection, id string) error {
	args := m.Called(ctx, guestID, collection, id)
	return args.Error(0)
}

func (m *mockLocal) ToggleItemChecked(ctx context.Context, guestID string, collection models.Collection, id string) error {
	args := m.Called(ctx, guestID, collection, id)
	return args.Error(0)
}

func (m *mockLocal) ClearChecked(ctx context.Context, guestID string, collection models.Collection) error {
	args := m.Called(ctx, guestID, collection)
	return args.Error(0)
}

func (m *mockLocal) ClearAll(ctx context.Context, guestID string, collection models.Collection) error {
	args := m.Called(ctx, guestID, collection)
	return args.Error(0)
}

// fakeCache — потокобезопасный кеш в памяти для тестов фасада.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *fakeCache) Set(key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func newTestService(sessions *mockSessions, remote *mockRemote, local *mockLocal, cache ListCache) *Service {
	log := slog.New(slog.NewTextHandler(testWriter{}, nil))
	return New(log, sessions, remote, local, cache)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestListGuest(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	service := newTestService(sessions, remote, local, newFakeCache())

	items := []models.Item{{ID: "id-1", Name: "Milk"}}
	local.On("ListItems", mock.Anything, "guest-1", models.CollectionShoppingList).Return(items, nil)

	res, err := service.List(context.Background(), Caller{GuestID: "guest-1"}, models.CollectionShoppingList)
	require.NoError(t, err)
	assert.False(t, res.Loading)
	assert.Equal(t, items, res.Items)
	remote.AssertNotCalled(t, "ListItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestListRemoteLoadingSentinel(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	cache := newFakeCache()
	service := newTestService(sessions, remote, local, cache)

	items := []models.Item{{ID: "id-1", Name: "Milk"}, {ID: "id-2", Name: "Eggs"}}
	sessions.On("ValidateSession", mock.Anything, "token-1").Return("uid-1", nil)
	remote.On("ListItems", mock.Anything, "uid-1", models.CollectionShoppingList).Return(items, nil)

	caller := Caller{Token: "token-1"}

	// Холодный кеш: ответ приходит сразу с Loading=true, без данных.
	res, err := service.List(context.Background(), caller, models.CollectionShoppingList)
	require.NoError(t, err)
	assert.True(t, res.Loading)
	assert.Empty(t, res.Items)

	// После завершения фоновой выборки повторный вызов возвращает данные.
	assert.Eventually(t, func() bool {
		res, err := service.List(context.Background(), caller, models.CollectionShoppingList)
		return err == nil && !res.Loading && len(res.Items) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestListRemoteSingleFlight(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	cache := newFakeCache()
	service := newTestService(sessions, remote, local, cache)

	started := make(chan struct{})
	release := make(chan struct{})
	sessions.On("ValidateSession", mock.Anything, "token-1").Return("uid-1", nil)
	remote.On("ListItems", mock.Anything, "uid-1", models.CollectionPantry).
		Run(func(_ mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Item{}, nil).Once()

	caller := Caller{Token: "token-1"}

	res, err := service.List(context.Background(), caller, models.CollectionPantry)
	require.NoError(t, err)
	require.True(t, res.Loading)
	<-started

	// Пока первая выборка висит, повторные вызовы не плодят новые.
	for range 5 {
		res, err := service.List(context.Background(), caller, models.CollectionPantry)
		require.NoError(t, err)
		assert.True(t, res.Loading)
	}
	close(release)

	assert.Eventually(t, func() bool {
		res, err := service.List(context.Background(), caller, models.CollectionPantry)
		return err == nil && !res.Loading
	}, time.Second, 10*time.Millisecond)
	remote.AssertNumberOfCalls(t, "ListItems", 1)
}

func TestMutationInvalidatesCache(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	cache := newFakeCache()
	service := newTestService(sessions, remote, local, cache)

	key := cacheKey("uid-1", models.CollectionShoppingList)
	require.NoError(t, cache.Set(key, []models.Item{{ID: "id-1"}}, time.Minute))

	sessions.On("ValidateSession", mock.Anything, "token-1").Return("uid-1", nil)
	remote.On("AddItem", mock.Anything, "uid-1", models.CollectionShoppingList, mock.Anything).Return("id-2", nil)

	_, err := service.Add(context.Background(), Caller{Token: "token-1"}, models.CollectionShoppingList,
		models.DummyItem{Name: "Eggs"})
	require.NoError(t, err)

	var cached []models.Item
	found, err := cache.Get(key, &cached)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStaleSessionDoesNotFallBackToGuest(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	service := newTestService(sessions, remote, local, newFakeCache())

	sessions.On("ValidateSession", mock.Anything, "stale-token").Return("", models.ErrStaleSession)

	_, err := service.List(context.Background(), Caller{Token: "stale-token", GuestID: "guest-1"},
		models.CollectionShoppingList)
	require.ErrorIs(t, err, models.ErrStaleSession)
	local.AssertNotCalled(t, "ListItems", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddManyRemote(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	service := newTestService(sessions, remote, local, newFakeCache())

	sessions.On("ValidateSession", mock.Anything, "token-1").Return("uid-1", nil)
	remote.On("AddItems", mock.Anything, "uid-1", models.CollectionPantry,
		mock.MatchedBy(func(items []models.Item) bool {
			return len(items) == 2 && items[0].ID != "" && items[1].ID != ""
		})).Return([]string{"a", "b"}, nil)

	ids, err := service.AddMany(context.Background(), Caller{Token: "token-1"}, models.CollectionPantry,
		[]models.DummyItem{{Name: "Salt"}, {Name: "Pepper"}})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestGuestWithoutIdentity(t *testing.T) {
	sessions := new(mockSessions)
	remote := new(mockRemote)
	local := new(mockLocal)
	service := newTestService(sessions, remote, local, newFakeCache())

	_, err := service.List(context.Background(), Caller{}, models.CollectionShoppingList)
	require.ErrorIs(t, err, models.ErrUnauthenticated)
}
