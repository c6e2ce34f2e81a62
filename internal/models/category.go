package models

import "time"

// GroupTag splits categories into habits to build and habits to avoid
type GroupTag string

const (
	GroupPositive GroupTag = "positive"
	GroupNegative GroupTag = "negative"
)

// Valid reports whether g is one of the two known group tags
func (g GroupTag) Valid() bool {
	return g == GroupPositive || g == GroupNegative
}

// Category groups habits. Fixed categories are seeded on open and can never be deleted.
type Category struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	NameSecondary string    `json:"nameSecondary,omitempty"` // optional secondary-language name
	Color         string    `json:"color"`
	Icon          string    `json:"icon"`
	Order         int       `json:"order"`
	IsFixed       bool      `json:"isFixed"`
	Group         GroupTag  `json:"group"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CategoryPatch holds the mutable fields of a category. Nil fields are left untouched.
type CategoryPatch struct {
	Name          *string
	NameSecondary *string
	Color         *string
	Icon          *string
	Group         *GroupTag
}

// Apply copies the set fields of p onto c
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.NameSecondary != nil {
		c.NameSecondary = *p.NameSecondary
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.Group != nil {
		c.Group = *p.Group
	}
}
