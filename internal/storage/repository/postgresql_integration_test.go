package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/recipe-entitlements/internal/lib/tier"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

func TestStorage_AddItemsIdempotent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)

	items := []models.Item{
		{ID: uuid.New().String(), Name: "Milk", AddedAt: time.Now()},
		{ID: uuid.New().String(), Name: "Eggs", AddedAt: time.Now()},
	}

	_, err := storage.AddItems(context.Background(), userUID, models.CollectionShoppingList, items)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.CountItems(t, userUID, models.CollectionShoppingList))

	// Повторное копирование тех же элементов с теми же ID не создаёт дубликатов.
	_, err = storage.AddItems(context.Background(), userUID, models.CollectionShoppingList, items)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.CountItems(t, userUID, models.CollectionShoppingList))
}

func TestStorage_PantryNaturalKey(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)

	first := models.Item{ID: uuid.New().String(), Name: "Olive Oil", AddedAt: time.Now()}
	second := models.Item{ID: uuid.New().String(), Name: "  olive oil ", AddedAt: time.Now()}

	firstID, err := storage.AddItem(context.Background(), userUID, models.CollectionPantry, first)
	require.NoError(t, err)
	secondID, err := storage.AddItem(context.Background(), userUID, models.CollectionPantry, second)
	require.NoError(t, err)

	// Один и тот же ингредиент в разном написании схлопывается по
	// нормализованному имени; при конфликте возвращается ID выжившей строки.
	assert.Equal(t, 1, factory.CountItems(t, userUID, models.CollectionPantry))
	assert.Equal(t, first.ID, firstID)
	assert.Equal(t, first.ID, secondID)
}

func TestStorage_ToggleAndClearChecked(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	milkID := factory.CreateItem(t, userUID, models.CollectionShoppingList, "Milk")
	factory.CreateItem(t, userUID, models.CollectionShoppingList, "Eggs")

	n, err := storage.ToggleItemChecked(context.Background(), userUID, models.CollectionShoppingList, milkID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = storage.ClearChecked(context.Background(), userUID, models.CollectionShoppingList)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, factory.CountItems(t, userUID, models.CollectionShoppingList))
}

func TestStorage_IncrementUsage(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	ctx := context.Background()

	limit := 3
	now := time.Now()
	anchorBefore := now.Add(-24 * time.Hour)

	// Лимит расходуется ровно limit раз, дальше — отказ.
	for i := 1; i <= limit; i++ {
		count, allowed, err := storage.IncrementUsage(ctx, userUID, tier.MeterAI, limit, now, anchorBefore)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, count)
	}

	_, allowed, err := storage.IncrementUsage(ctx, userUID, tier.MeterAI, limit, now, anchorBefore)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Спустя период якорь сдвигается и счётчик начинается заново.
	later := now.Add(25 * time.Hour)
	count, allowed, err := storage.IncrementUsage(ctx, userUID, tier.MeterAI, limit, later, later.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestStorage_ApplySubscriptionMonotonic(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	newEnd := time.Now().Add(30 * 24 * time.Hour)
	oldEnd := time.Now().Add(-24 * time.Hour)
	userUID := factory.CreateUserWithSubscription(t, "testuser", tier.Personal, tier.SubMonthly, newEnd)

	// Запоздавшее событие за прошлый период не двигает дату назад.
	applied, err := storage.ApplySubscription(ctx, userUID, tier.SubMonthly, tier.Personal, oldEnd)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = storage.ApplySubscription(ctx, userUID, tier.SubYearly, tier.Pro, newEnd.Add(365*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, applied)

	user, err := storage.GetUser(ctx, userUID)
	require.NoError(t, err)
	assert.Equal(t, tier.Pro, user.Tier)
	assert.Equal(t, tier.SubYearly, user.SubscriptionType)
}

func TestStorage_UnlockCountrySetSemantics(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	ctx := context.Background()

	require.NoError(t, storage.UnlockCountry(ctx, userUID, "Japan"))
	require.NoError(t, storage.UnlockCountry(ctx, userUID, "Japan"))
	require.NoError(t, storage.UnlockCountry(ctx, userUID, "Italy"))
	// Страна с пробелом: в литерале массива её элемент приходит в кавычках.
	require.NoError(t, storage.UnlockCountry(ctx, userUID, "South Korea"))

	user, err := storage.GetUser(ctx, userUID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Japan", "Italy", "South Korea"}, user.UnlockedCountries)
}

func TestStorage_CreatePurchaseDeduplicates(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	ctx := context.Background()

	record := models.PurchaseRecord{
		TransactionID:    "tx-1",
		UserUID:          userUID,
		SubscriptionType: tier.SubMonthly,
		Amount:           4.99,
		Currency:         "USD",
		PurchaseDate:     time.Now(),
		Status:           models.PurchaseCompleted,
	}

	inserted, err := storage.CreatePurchase(ctx, record)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = storage.CreatePurchase(ctx, record)
	require.NoError(t, err)
	assert.False(t, inserted)

	purchases, err := storage.ListPurchases(ctx, userUID)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
}

func TestStorage_Sessions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	ctx := context.Background()

	session := models.Session{
		Token:     "token-1",
		UserUID:   userUID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, storage.CreateSession(ctx, session))

	got, err := storage.GetSession(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, userUID, got.UserUID)

	require.NoError(t, storage.DeleteSession(ctx, "token-1"))
	_, err = storage.GetSession(ctx, "token-1")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestStorage_WebhookAudit(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userUID := factory.CreateUser(t, "testuser", tier.Free)
	ctx := context.Background()

	seen, err := storage.WebhookEventSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	event := models.WebhookEvent{
		ID:        "evt-1",
		Type:      models.WebhookRenewal,
		AppUserID: userUID,
		ProductID: "recipes_personal_monthly",
	}
	require.NoError(t, storage.LogWebhookEvent(ctx, event))
	require.NoError(t, storage.LogWebhookEvent(ctx, event))

	seen, err = storage.WebhookEventSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
