package gueststore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/recipe-entitlements/internal/config"
	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: mr.Addr(),
	})
	require.NoError(t, err)
	return store, mr
}

func TestMutationsMerge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	profile, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.RecordPendingPurchase(ctx, profile.GuestID,
		models.PurchaseIntent{TransactionID: "tx-1"}))
	_, err = store.AddItem(ctx, profile.GuestID, models.CollectionShoppingList,
		models.Item{ID: "id-1", Name: "Milk"})
	require.NoError(t, err)
	_, err = store.AddItem(ctx, profile.GuestID, models.CollectionPantry,
		models.Item{ID: "id-2", Name: "Salt"})
	require.NoError(t, err)

	// Каждая мутация дописывает свое поле, не трогая остальные.
	got, err := store.Get(ctx, profile.GuestID)
	require.NoError(t, err)
	assert.Len(t, got.PendingPurchases, 1)
	assert.Len(t, got.PendingData[models.CollectionShoppingList], 1)
	assert.Len(t, got.PendingData[models.CollectionPantry], 1)
}

func TestMutationDoesNotOverwriteOnReadFailure(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Битый документ профиля: чтение падает на разборе JSON.
	corrupted := `{"guest_id": "guest-1", "pending_data":`
	require.NoError(t, mr.Set("guest:guest-1", corrupted))

	_, err := store.AddItem(ctx, "guest-1", models.CollectionShoppingList,
		models.Item{ID: "id-1", Name: "Milk"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)

	// Мутация не перетерла сохраненный документ пустым профилем.
	raw, err := mr.Get("guest:guest-1")
	require.NoError(t, err)
	assert.Equal(t, corrupted, raw)
}

func TestRemoveItemMissingProfile(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Отсутствующий профиль порождается лениво первой записью.
	require.NoError(t, store.RemoveItem(ctx, "guest-2", models.CollectionShoppingList, "id-1"))
	assert.True(t, mr.Exists("guest:guest-2"))
}
