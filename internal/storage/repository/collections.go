package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/recipe-entitlements/internal/models"
)

// ListItems возвращает элементы коллекции пользователя, новые первыми.
func (s *Storage) ListItems(ctx context.Context, userUID string, collection models.Collection) ([]models.Item, error) {
	const op = "storage.ListItems"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, measure, recipe_id, recipe_name, checked, added_at
			  FROM collection_items
			  WHERE user_uid = $1 AND collection = $2
			  ORDER BY added_at DESC, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID, collection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Measure, &item.RecipeID,
			&item.RecipeName, &item.Checked, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddItem вставляет элемент коллекции и возвращает ID строки. Вставка
// идемпотентна по id и по естественному ключу коллекции (нормализованное имя
// для кладовой, рецепт для избранного и истории): при конфликте новая строка
// не создаётся, возвращается ID уже существующей.
func (s *Storage) AddItem(ctx context.Context, userUID string, collection models.Collection, item models.Item) (string, error) {
	const op = "storage.AddItem"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO collection_items
			      (id, user_uid, collection, name, normalized_name, measure,
			       recipe_id, recipe_name, checked, added_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT DO NOTHING
			  RETURNING id`
	var id string
	err := s.DB.QueryRowContext(ctx, query,
		item.ID, userUID, collection, item.Name, models.NormalizeName(item.Name),
		item.Measure, item.RecipeID, item.RecipeName, item.Checked, item.AddedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return s.survivingItemID(ctx, userUID, collection, item, op)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// survivingItemID находит строку, пережившую конфликт вставки, по
// естественному ключу коллекции.
func (s *Storage) survivingItemID(ctx context.Context, userUID string, collection models.Collection, item models.Item, op string) (string, error) {
	var query, key string
	switch collection {
	case models.CollectionPantry:
		query = `SELECT id FROM collection_items
				  WHERE user_uid = $1 AND collection = $2 AND normalized_name = $3`
		key = models.NormalizeName(item.Name)
	case models.CollectionFavorites, models.CollectionHistory:
		query = `SELECT id FROM collection_items
				  WHERE user_uid = $1 AND collection = $2 AND recipe_id = $3`
		key = item.RecipeID
	default:
		// У списка покупок естественного ключа нет: конфликт возможен
		// только по первичному ключу id.
		return item.ID, nil
	}

	var id string
	if err := s.DB.QueryRowContext(ctx, query, userUID, collection, key).Scan(&id); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// AddItems вставляет несколько элементов одной транзакцией: либо вся партия,
// либо ничего. Конфликты по id или естественному ключу пропускаются, что
// делает повтор миграции безопасным.
func (s *Storage) AddItems(ctx context.Context, userUID string, collection models.Collection, items []models.Item) ([]string, error) {
	const op = "storage.AddItems"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO collection_items
			      (id, user_uid, collection, name, normalized_name, measure,
			       recipe_id, recipe_name, checked, added_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT DO NOTHING`
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, query,
			item.ID, userUID, collection, item.Name, models.NormalizeName(item.Name),
			item.Measure, item.RecipeID, item.RecipeName, item.Checked, item.AddedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, item.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// RemoveItem удаляет элемент коллекции и возвращает количество удалённых строк.
func (s *Storage) RemoveItem(ctx context.Context, userUID string, collection models.Collection, id string) (int, error) {
	const op = "storage.RemoveItem"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM collection_items
			  WHERE user_uid = $1 AND collection = $2 AND id = $3`
	res, err := s.DB.ExecContext(ctx, query, userUID, collection, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ToggleItemChecked переключает флаг checked элемента.
func (s *Storage) ToggleItemChecked(ctx context.Context, userUID string, collection models.Collection, id string) (int, error) {
	const op = "storage.ToggleItemChecked"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE collection_items
			  SET checked = NOT checked
			  WHERE user_uid = $1 AND collection = $2 AND id = $3`
	res, err := s.DB.ExecContext(ctx, query, userUID, collection, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ClearChecked удаляет отмеченные элементы коллекции.
func (s *Storage) ClearChecked(ctx context.Context, userUID string, collection models.Collection) (int, error) {
	const op = "storage.ClearChecked"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM collection_items
			  WHERE user_uid = $1 AND collection = $2 AND checked = true`
	res, err := s.DB.ExecContext(ctx, query, userUID, collection)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ClearAll удаляет все элементы коллекции.
func (s *Storage) ClearAll(ctx context.Context, userUID string, collection models.Collection) (int, error) {
	const op = "storage.ClearAll"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM collection_items
			  WHERE user_uid = $1 AND collection = $2`
	res, err := s.DB.ExecContext(ctx, query, userUID, collection)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
