package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

const entityCategory = "category"

func (s *SQLiteStore) GetCategoriesOrdered(ctx context.Context) ([]models.Category, error) {
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	return getCategoriesOrdered(ctx, q)
}

func getCategoriesOrdered(ctx context.Context, q querier) ([]models.Category, error) {
	categories, err := queryDocs[models.Category](ctx, q, "SELECT data FROM categories ORDER BY sort_order, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	return categories, nil
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id string) (models.Category, error) {
	q, err := s.reader()
	if err != nil {
		return models.Category{}, err
	}
	return getCategory(ctx, q, id)
}

func getCategory(ctx context.Context, q querier, id string) (models.Category, error) {
	c, ok, err := getDoc[models.Category](ctx, q, migration.TableCategories, id)
	if err != nil {
		return models.Category{}, fmt.Errorf("failed to get category: %w", err)
	}
	if !ok {
		return models.Category{}, apperrors.NotFound(entityCategory, id)
	}
	return c, nil
}

// CreateCategory stores a new user category at the end of the display order
func (s *SQLiteStore) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.Group == "" {
		c.Group = models.GroupPositive
	}
	c.IsFixed = false
	c.CreatedAt = s.now()

	if err := validation.ValidateCategory(c); err != nil {
		return models.Category{}, err
	}

	err := s.withTx(ctx, []string{migration.TableCategories}, func(tx *sql.Tx) error {
		if _, exists, err := getDoc[models.Category](ctx, tx, migration.TableCategories, c.ID); err != nil {
			return err
		} else if exists {
			return apperrors.Invalid("id", "category %q already exists", c.ID)
		}

		var next int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sort_order), -1) + 1 FROM categories").Scan(&next); err != nil {
			return fmt.Errorf("failed to compute category order: %w", err)
		}
		c.Order = next

		return putDoc(ctx, tx, migration.TableCategories, c.ID, c)
	})
	if err != nil {
		return models.Category{}, err
	}
	return c, nil
}

// UpdateCategory applies patch to a category. Fixed categories accept
// cosmetic changes but keep their group.
func (s *SQLiteStore) UpdateCategory(ctx context.Context, id string, patch models.CategoryPatch) (models.Category, error) {
	var updated models.Category
	err := s.withTx(ctx, []string{migration.TableCategories}, func(tx *sql.Tx) error {
		c, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.IsFixed && patch.Group != nil && *patch.Group != c.Group {
			return fmt.Errorf("%w: cannot change the group of %q", apperrors.ErrFixedCategoryProtected, id)
		}

		patch.Apply(&c)
		if err := validation.ValidateCategory(c); err != nil {
			return err
		}

		updated = c
		return putDoc(ctx, tx, migration.TableCategories, c.ID, c)
	})
	if err != nil {
		return models.Category{}, err
	}
	return updated, nil
}

// DeleteCategory removes a user category. Its habits move to the end of the
// positive fixed category in the same transaction.
func (s *SQLiteStore) DeleteCategory(ctx context.Context, id string) error {
	tables := []string{migration.TableCategories, migration.TableHabits}
	return s.withTx(ctx, tables, func(tx *sql.Tx) error {
		c, err := getCategory(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.IsFixed {
			return fmt.Errorf("%w: %q", apperrors.ErrFixedCategoryProtected, id)
		}

		habits, err := queryDocs[models.Habit](ctx, tx,
			"SELECT data FROM habits WHERE category_id = ? ORDER BY sort_order, id", id)
		if err != nil {
			return fmt.Errorf("failed to query habits of category: %w", err)
		}

		if len(habits) > 0 {
			next, err := nextHabitOrder(ctx, tx, constants.FixedPositiveCategoryID)
			if err != nil {
				return err
			}
			for _, h := range habits {
				h.CategoryID = constants.FixedPositiveCategoryID
				h.Order = next
				next++
				if err := putDoc(ctx, tx, migration.TableHabits, h.ID, h); err != nil {
					return err
				}
			}
		}

		if _, err := deleteDoc(ctx, tx, migration.TableCategories, id); err != nil {
			return err
		}
		return nil
	})
}

// ReorderCategories sets order = index for each listed id
func (s *SQLiteStore) ReorderCategories(ctx context.Context, orderedIDs []string) error {
	return s.withTx(ctx, []string{migration.TableCategories}, func(tx *sql.Tx) error {
		categories := make([]models.Category, 0, len(orderedIDs))
		seen := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if seen[id] {
				return apperrors.Invalid("orderedIds", "duplicate id %q", id)
			}
			seen[id] = true

			c, err := getCategory(ctx, tx, id)
			if err != nil {
				return err
			}
			categories = append(categories, c)
		}

		for i, c := range categories {
			c.Order = i
			if err := putDoc(ctx, tx, migration.TableCategories, c.ID, c); err != nil {
				return err
			}
		}
		return nil
	})
}
