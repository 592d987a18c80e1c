package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kvarga/wheelbook/internal/storage"
	"github.com/kvarga/wheelbook/pkg/types"
)

// CreateCategory inserts a custom category. The builtin flag is never
// settable through this path.
func (s *Store) CreateCategory(ctx context.Context, c *types.Category) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("%w: category name is required", storage.ErrInvalidInput)
	}

	icon := c.Icon
	if icon == "" {
		icon = "📦"
	}
	color := c.Color
	if color == "" {
		color = "#64748b"
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (name, icon, color, builtin) VALUES (?, ?, ?, 0)",
		c.Name, icon, color)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}

	c.ID, err = res.LastInsertId()
	return err
}

// ListCategories returns all categories, built-ins first.
func (s *Store) ListCategories(ctx context.Context) ([]*types.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, icon, color, builtin FROM categories ORDER BY builtin DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []*types.Category
	for rows.Next() {
		var c types.Category
		var builtin int
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &builtin); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Builtin = builtin != 0
		cats = append(cats, &c)
	}
	return cats, rows.Err()
}

// DeleteCategory removes a custom category by name. Entries referencing it
// are reassigned to Other in the same transaction, preserving entry history.
// Built-in categories reject deletion with ErrBuiltinCategory.
func (s *Store) DeleteCategory(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var builtin int
		err := tx.QueryRowContext(ctx, "SELECT builtin FROM categories WHERE name = ?", name).Scan(&builtin)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if builtin != 0 {
			return storage.ErrBuiltinCategory
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE service_entries SET category = ? WHERE category = ?",
			types.CategoryOther, name); err != nil {
			return fmt.Errorf("failed to reassign entries: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE name = ?", name); err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
}
