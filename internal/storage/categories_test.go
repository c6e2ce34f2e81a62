package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

func TestCreateCategoryAppendsOrder(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.CreateCategory(ctx, models.Category{Name: "Health", Color: "blue", Icon: "heart"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	second, err := store.CreateCategory(ctx, models.Category{Name: "Vices", Group: models.GroupNegative, IsFixed: true})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	if first.Order != 2 || second.Order != 3 {
		t.Errorf("expected orders 2 and 3 after the fixed categories, got %d and %d", first.Order, second.Order)
	}
	if first.Group != models.GroupPositive {
		t.Errorf("expected default group positive, got %q", first.Group)
	}
	if second.IsFixed {
		t.Error("user categories can never be created fixed")
	}

	if _, err := store.CreateCategory(ctx, models.Category{Name: " "}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ErrValidation for blank name, got %v", err)
	}
}

func TestUpdateCategory(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	name := "Grow"
	updated, err := store.UpdateCategory(ctx, constants.FixedPositiveCategoryID, models.CategoryPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateCategory failed: %v", err)
	}
	if updated.Name != "Grow" || !updated.IsFixed {
		t.Errorf("expected renamed fixed category, got %+v", updated)
	}

	negative := models.GroupNegative
	_, err = store.UpdateCategory(ctx, constants.FixedPositiveCategoryID, models.CategoryPatch{Group: &negative})
	if !errors.Is(err, apperrors.ErrFixedCategoryProtected) {
		t.Errorf("expected ErrFixedCategoryProtected when regrouping a fixed category, got %v", err)
	}

	_, err = store.UpdateCategory(ctx, "nope", models.CategoryPatch{Name: &name})
	if !errors.Is(err, apperrors.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestDeleteFixedCategoryIsProtected(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{constants.FixedPositiveCategoryID, constants.FixedNegativeCategoryID} {
		if err := store.DeleteCategory(ctx, id); !errors.Is(err, apperrors.ErrFixedCategoryProtected) {
			t.Errorf("deleting %s: expected ErrFixedCategoryProtected, got %v", id, err)
		}
	}

	categories, err := store.GetCategoriesOrdered(ctx)
	if err != nil {
		t.Fatalf("GetCategoriesOrdered failed: %v", err)
	}
	if len(categories) != 2 {
		t.Errorf("fixed categories must survive, got %d categories", len(categories))
	}
}

func TestDeleteCategoryReassignsHabits(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	existing := mustCreateHabit(t, store, models.Habit{Name: "Stretch"})

	health, err := store.CreateCategory(ctx, models.Category{Name: "Health"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	walk := mustCreateHabit(t, store, models.Habit{Name: "Walk", CategoryID: health.ID})
	run := mustCreateHabit(t, store, models.Habit{Name: "Run", CategoryID: health.ID})

	if err := store.DeleteCategory(ctx, health.ID); err != nil {
		t.Fatalf("DeleteCategory failed: %v", err)
	}

	if _, err := store.GetCategory(ctx, health.ID); !errors.Is(err, apperrors.ErrEntityNotFound) {
		t.Errorf("expected deleted category to be gone, got %v", err)
	}

	orphans, err := store.GetHabits(ctx, models.HabitFilter{CategoryID: health.ID})
	if err != nil {
		t.Fatalf("GetHabits failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("expected no habits left in deleted category, got %d", len(orphans))
	}

	moved, err := store.GetHabits(ctx, models.HabitFilter{CategoryID: constants.FixedPositiveCategoryID})
	if err != nil {
		t.Fatalf("GetHabits failed: %v", err)
	}
	want := []string{existing.ID, walk.ID, run.ID}
	if len(moved) != len(want) {
		t.Fatalf("expected %d habits in the positive category, got %d", len(want), len(moved))
	}
	for i, h := range moved {
		if h.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], h.ID)
		}
		if h.Order != i {
			t.Errorf("habit %s: expected order %d, got %d", h.ID, i, h.Order)
		}
	}
}

func TestReorderCategories(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	health, err := store.CreateCategory(ctx, models.Category{Name: "Health"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	order := []string{health.ID, constants.FixedNegativeCategoryID, constants.FixedPositiveCategoryID}
	if err := store.ReorderCategories(ctx, order); err != nil {
		t.Fatalf("ReorderCategories failed: %v", err)
	}

	categories, err := store.GetCategoriesOrdered(ctx)
	if err != nil {
		t.Fatalf("GetCategoriesOrdered failed: %v", err)
	}
	for i, c := range categories {
		if c.ID != order[i] || c.Order != i {
			t.Errorf("position %d: expected %s with order %d, got %s with order %d", i, order[i], i, c.ID, c.Order)
		}
	}

	// an unknown id aborts the whole reorder
	err = store.ReorderCategories(ctx, []string{constants.FixedPositiveCategoryID, "missing"})
	if !errors.Is(err, apperrors.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	positive, err := store.GetCategory(ctx, constants.FixedPositiveCategoryID)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if positive.Order != 2 {
		t.Errorf("failed reorder must not renumber anything, got order %d", positive.Order)
	}

	if err := store.ReorderCategories(ctx, []string{health.ID, health.ID}); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ErrValidation for duplicate ids, got %v", err)
	}
}
