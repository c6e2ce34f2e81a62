package categories

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()

	store := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), storage.WithMigrationLog(func(string) {}))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	out := &bytes.Buffer{}
	ctx := cli.NewContext(context.Background(), store, nil, nil)
	ctx.Out = out
	return ctx, out
}

func TestCategoryAddAndList(t *testing.T) {
	ctx, out := setupTestContext(t)

	if err := (&CategoryAddCmd{Name: "Health", Color: "green", Icon: "heart", Group: "positive"}).Run(ctx); err != nil {
		t.Fatalf("category add failed: %v", err)
	}
	if err := (&CategoryAddCmd{Name: "Vices", Color: "red", Icon: "x", Group: "negative"}).Run(ctx); err != nil {
		t.Fatalf("category add failed: %v", err)
	}

	out.Reset()
	if err := (&CategoryListCmd{}).Run(ctx); err != nil {
		t.Fatalf("category list failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 categories, got %d:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "[fixed]") || !strings.Contains(lines[1], "[fixed]") {
		t.Errorf("fixed categories should come first:\n%s", out.String())
	}
	if !strings.Contains(lines[3], "Vices") {
		t.Errorf("new categories append to the end:\n%s", out.String())
	}
}

func TestCategoryEdit(t *testing.T) {
	ctx, _ := setupTestContext(t)
	if err := (&CategoryAddCmd{Name: "Health", Color: "green", Icon: "heart", Group: "positive"}).Run(ctx); err != nil {
		t.Fatalf("category add failed: %v", err)
	}

	name, color := "Body", "teal"
	if err := (&CategoryEditCmd{Category: "health", Name: &name, Color: &color}).Run(ctx); err != nil {
		t.Fatalf("category edit failed: %v", err)
	}
	cat, err := ctx.FindCategory("Body")
	if err != nil {
		t.Fatalf("renamed category not found: %v", err)
	}
	if cat.Color != "teal" || cat.Icon != "heart" {
		t.Errorf("unexpected category after edit: %+v", cat)
	}
}

func TestCategoryDeleteMovesHabits(t *testing.T) {
	ctx, _ := setupTestContext(t)
	if err := (&CategoryAddCmd{Name: "Health", Color: "green", Icon: "heart", Group: "positive"}).Run(ctx); err != nil {
		t.Fatalf("category add failed: %v", err)
	}
	cat, _ := ctx.FindCategory("Health")
	h, err := ctx.Store.CreateHabit(ctx.Ctx, models.Habit{Name: "Walk", CategoryID: cat.ID, Kind: models.KindYesNo})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}

	if err := (&CategoryDeleteCmd{Category: "Health", Yes: true}).Run(ctx); err != nil {
		t.Fatalf("category delete failed: %v", err)
	}
	moved, err := ctx.Store.GetHabit(ctx.Ctx, h.ID)
	if err != nil {
		t.Fatalf("habit lost with its category: %v", err)
	}
	if moved.CategoryID != constants.FixedPositiveCategoryID {
		t.Errorf("expected habit moved to %s, got %s", constants.FixedPositiveCategoryID, moved.CategoryID)
	}
}

func TestCategoryDeleteFixed(t *testing.T) {
	ctx, _ := setupTestContext(t)

	err := (&CategoryDeleteCmd{Category: constants.FixedNegativeCategoryID, Yes: true}).Run(ctx)
	if !errors.Is(err, apperrors.ErrFixedCategoryProtected) {
		t.Errorf("expected fixed category protection, got %v", err)
	}
}

func TestCategoryReorder(t *testing.T) {
	ctx, _ := setupTestContext(t)
	if err := (&CategoryAddCmd{Name: "Health", Color: "green", Icon: "heart", Group: "positive"}).Run(ctx); err != nil {
		t.Fatalf("category add failed: %v", err)
	}

	if err := (&CategoryReorderCmd{Categories: []string{"Health", "positive", "negative"}}).Run(ctx); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}
	categories, err := ctx.Store.GetCategoriesOrdered(ctx.Ctx)
	if err != nil {
		t.Fatalf("failed to list categories: %v", err)
	}
	if categories[0].Name != "Health" {
		t.Errorf("expected Health first, got %s", categories[0].Name)
	}
}
