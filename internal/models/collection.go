package models

import (
	"fmt"
	"strings"
	"time"
)

// Collection — имя пользовательской коллекции.
type Collection string

// Поддерживаемые коллекции.
const (
	CollectionShoppingList Collection = "shopping_list"
	CollectionPantry       Collection = "pantry"
	CollectionFavorites    Collection = "favorites"
	CollectionHistory      Collection = "history"
)

// ParseCollection проверяет имя коллекции из URL.
func ParseCollection(s string) (Collection, error) {
	switch Collection(s) {
	case CollectionShoppingList, CollectionPantry, CollectionFavorites, CollectionHistory:
		return Collection(s), nil
	default:
		return "", fmt.Errorf("unknown collection: %q", s)
	}
}

// Item представляет элемент коллекции. Элемент принадлежит ровно одному
// хранилищу: либо гостевому профилю, либо удалённому хранилищу пользователя.
// Миграция переносит владение, не дублируя элементы — поэтому ID выдаётся
// при первом добавлении и сохраняется при переносе.
type Item struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Measure    string    `json:"measure"`
	RecipeID   string    `json:"recipe_id"`
	RecipeName string    `json:"recipe_name"`
	Checked    bool      `json:"checked"`
	AddedAt    time.Time `json:"added_at"`
}

// DummyItem используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Item.
type DummyItem struct {
	Name       string `json:"name" validate:"required"` // Название элемента
	Measure    string `json:"measure"`                  // Количество/мера
	RecipeID   string `json:"recipe_id"`                // Рецепт-источник
	RecipeName string `json:"recipe_name"`              // Название рецепта
}

// ListResult — результат операции list. Loading=true означает, что удалённая
// выборка ещё не завершена: это не то же самое, что пустая коллекция.
type ListResult struct {
	Loading bool   `json:"loading"`
	Items   []Item `json:"items"`
}

// NormalizeName приводит название ингредиента к естественному ключу:
// нижний регистр без окружающих пробелов. По нему дедуплицируются
// элементы кладовой.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
