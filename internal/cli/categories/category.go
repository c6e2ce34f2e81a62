package categories

import (
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/models"
)

type CategoryCmd struct {
	Add     CategoryAddCmd     `cmd:"" help:"Add a category."`
	List    CategoryListCmd    `cmd:"" help:"List categories in display order."`
	Edit    CategoryEditCmd    `cmd:"" help:"Edit a category."`
	Delete  CategoryDeleteCmd  `cmd:"" help:"Delete a category; its habits move to Build."`
	Reorder CategoryReorderCmd `cmd:"" help:"Set the display order of categories."`
}

type CategoryAddCmd struct {
	Name          string `arg:"" help:"Category name."`
	NameSecondary string `help:"Optional secondary-language name."`
	Color         string `help:"Color name." default:"blue"`
	Icon          string `help:"Icon name." default:"circle"`
	Group         string `help:"Habits to build (positive) or avoid (negative)." enum:"positive,negative" default:"positive"`
}

func (c *CategoryAddCmd) Run(ctx *cli.Context) error {
	created, err := ctx.Store.CreateCategory(ctx.Ctx, models.Category{
		Name:          c.Name,
		NameSecondary: c.NameSecondary,
		Color:         c.Color,
		Icon:          c.Icon,
		Group:         models.GroupTag(c.Group),
	})
	if err != nil {
		return err
	}
	ctx.Telemetry.CategoryCreated(ctx.Ctx, created)
	ctx.Printf("Added category %q (%s)\n", created.Name, created.ID)
	return nil
}

type CategoryListCmd struct{}

func (c *CategoryListCmd) Run(ctx *cli.Context) error {
	categories, err := ctx.Store.GetCategoriesOrdered(ctx.Ctx)
	if err != nil {
		return err
	}

	for _, cat := range categories {
		fixed := ""
		if cat.IsFixed {
			fixed = " [fixed]"
		}
		ctx.Printf("%2d. %-20s %-9s %-8s %s%s\n", cat.Order, cat.Name, cat.Group, cat.Color, cat.ID, fixed)
	}
	return nil
}

type CategoryEditCmd struct {
	Category      string  `arg:"" help:"Category id or name."`
	Name          *string `help:"New name."`
	NameSecondary *string `help:"New secondary-language name."`
	Color         *string `help:"New color."`
	Icon          *string `help:"New icon."`
	Group         *string `help:"New group (positive or negative)."`
}

func (c *CategoryEditCmd) Run(ctx *cli.Context) error {
	cat, err := ctx.FindCategory(c.Category)
	if err != nil {
		return err
	}

	patch := models.CategoryPatch{
		Name:          c.Name,
		NameSecondary: c.NameSecondary,
		Color:         c.Color,
		Icon:          c.Icon,
	}
	if c.Group != nil {
		g := models.GroupTag(*c.Group)
		patch.Group = &g
	}

	updated, err := ctx.Store.UpdateCategory(ctx.Ctx, cat.ID, patch)
	if err != nil {
		return err
	}
	ctx.Printf("Updated category %q\n", updated.Name)
	return nil
}

type CategoryDeleteCmd struct {
	Category string `arg:"" help:"Category id or name."`
	Yes      bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *CategoryDeleteCmd) Run(ctx *cli.Context) error {
	cat, err := ctx.FindCategory(c.Category)
	if err != nil {
		return err
	}

	ok, err := ctx.ConfirmOrSkip(c.Yes, fmt.Sprintf("Delete category %q?", cat.Name),
		"Its habits move to the end of the Build category.")
	if err != nil {
		return err
	}
	if !ok {
		ctx.Println("Delete cancelled.")
		return nil
	}

	if err := ctx.Store.DeleteCategory(ctx.Ctx, cat.ID); err != nil {
		return err
	}
	ctx.Printf("Deleted category %q\n", cat.Name)
	return nil
}

type CategoryReorderCmd struct {
	Categories []string `arg:"" help:"Category ids or names in the new order."`
}

func (c *CategoryReorderCmd) Run(ctx *cli.Context) error {
	ids := make([]string, 0, len(c.Categories))
	for _, ref := range c.Categories {
		cat, err := ctx.FindCategory(ref)
		if err != nil {
			return err
		}
		ids = append(ids, cat.ID)
	}

	if err := ctx.Store.ReorderCategories(ctx.Ctx, ids); err != nil {
		return err
	}
	ctx.Printf("Reordered %d categories\n", len(ids))
	return nil
}
