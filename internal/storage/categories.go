package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/envelopezero/engine/internal/common"
	"github.com/envelopezero/engine/internal/model"
)

// CreateSupercategory creates a grouping for categories.
func (s *store) CreateSupercategory(ctx context.Context, budgetID, name string) (*model.Supercategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	if _, err := s.GetBudget(ctx, budgetID); err != nil {
		return nil, err
	}

	sc := &model.Supercategory{
		ID:        model.NewID(),
		BudgetID:  budgetID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO supercategories (id, budget_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		sc.ID, sc.BudgetID, sc.Name, sc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create supercategory: %w", err)
	}
	return sc, nil
}

// ListSupercategories returns a budget's live supercategories.
func (s *store) ListSupercategories(ctx context.Context, budgetID string) ([]model.Supercategory, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, budget_id, name, created_at
		FROM supercategories
		WHERE budget_id = ? AND deleted_at IS NULL
		ORDER BY created_at`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supercategories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var supercategories []model.Supercategory
	for rows.Next() {
		var sc model.Supercategory
		if err := rows.Scan(&sc.ID, &sc.BudgetID, &sc.Name, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supercategory: %w", err)
		}
		supercategories = append(supercategories, sc)
	}
	return supercategories, rows.Err()
}

// RenameSupercategory updates a supercategory's name.
func (s *store) RenameSupercategory(ctx context.Context, id, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE supercategories SET name = ? WHERE id = ? AND deleted_at IS NULL`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename supercategory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("supercategory %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteSupercategory soft-deletes a supercategory. Refused while live
// categories still belong to it.
func (s *store) DeleteSupercategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(q queryable) error {
		var refs int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM categories WHERE supercategory_id = ? AND deleted_at IS NULL`, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("failed to check supercategory references: %w", err)
		}
		if refs > 0 {
			return common.NewValidationError("supercategory has %d categories", refs)
		}

		res, err := q.ExecContext(ctx, `
			UPDATE supercategories SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to delete supercategory: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("supercategory %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

// CreateCategory creates an envelope under a budget and supercategory. The
// supercategory must belong to the same budget.
func (s *store) CreateCategory(ctx context.Context, budgetID, supercategoryID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}
	if err := validateString(supercategoryID, "supercategoryID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	var scBudget string
	err := s.q.QueryRowContext(ctx, `
		SELECT budget_id FROM supercategories WHERE id = ? AND deleted_at IS NULL`,
		supercategoryID).Scan(&scBudget)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("supercategory %s: %w", supercategoryID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check supercategory: %w", err)
	}
	if scBudget != budgetID {
		return nil, common.NewValidationError("supercategory %s belongs to a different budget", supercategoryID)
	}

	cat := &model.Category{
		ID:              model.NewID(),
		BudgetID:        budgetID,
		SupercategoryID: supercategoryID,
		Name:            name,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO categories (id, budget_id, supercategory_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cat.ID, cat.BudgetID, cat.SupercategoryID, cat.Name, cat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	slog.Debug("created category", "name", name, "id", cat.ID)
	return cat, nil
}

// GetCategory retrieves a category by ID.
func (s *store) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var c model.Category
	err := s.q.QueryRowContext(ctx, `
		SELECT id, budget_id, supercategory_id, name, created_at
		FROM categories WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&c.ID, &c.BudgetID, &c.SupercategoryID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// ListCategories returns a budget's live categories in creation order.
func (s *store) ListCategories(ctx context.Context, budgetID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, budget_id, supercategory_id, name, created_at
		FROM categories
		WHERE budget_id = ? AND deleted_at IS NULL
		ORDER BY created_at`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.BudgetID, &c.SupercategoryID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// RenameCategory updates a category's name.
func (s *store) RenameCategory(ctx context.Context, id, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE categories SET name = ? WHERE id = ? AND deleted_at IS NULL`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// DeleteCategory soft-deletes a category. Refused while any transaction
// split or assignment delta references it: ledger data is never orphaned.
func (s *store) DeleteCategory(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(q queryable) error {
		var splitRefs int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM transaction_splits WHERE category_id = ?`, id).Scan(&splitRefs)
		if err != nil {
			return fmt.Errorf("failed to check split references: %w", err)
		}
		if splitRefs > 0 {
			return common.NewValidationError("category is referenced by %d transaction splits", splitRefs)
		}

		var deltaRefs int
		err = q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM assignment_deltas WHERE category_id = ?`, id).Scan(&deltaRefs)
		if err != nil {
			return fmt.Errorf("failed to check delta references: %w", err)
		}
		if deltaRefs > 0 {
			return common.NewValidationError("category is referenced by %d assignment deltas", deltaRefs)
		}

		res, err := q.ExecContext(ctx, `
			UPDATE categories SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("category %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}
