// Package catalog holds the fixed lookup rows (colleges and listing categories) that
// cmd/seed writes on environment bootstrap.
package catalog

import (
	"context"
	"fmt"

	"github.com/dip-aaa/web-project-sub002/internal/catalog/domain"
)

// SeedColleges are the institutions supported out of the box.
var SeedColleges = []domain.College{
	{ID: "khwopa", Name: "Khwopa College of Engineering", EmailDomain: "khwopa.edu.np"},
}

// SeedCategories are the marketplace categories supported out of the box.
var SeedCategories = []domain.Category{
	{ID: "1", Name: "Books", Slug: "books"},
	{ID: "2", Name: "Electronics", Slug: "electronics"},
	{ID: "3", Name: "Stationery", Slug: "stationery"},
	{ID: "4", Name: "Lab Equipment", Slug: "lab-equipment"},
	{ID: "5", Name: "Furniture", Slug: "furniture"},
	{ID: "6", Name: "Clothing", Slug: "clothing"},
	{ID: "7", Name: "Sports", Slug: "sports"},
	{ID: "8", Name: "Others", Slug: "others"},
}

// Upserter writes lookup rows keyed by id.
type Upserter interface {
	UpsertCollege(ctx context.Context, c domain.College) error
	UpsertCategory(ctx context.Context, c domain.Category) error
}

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Colleges   int
	Categories int
}

// Seed upserts every seed college and category. Running it twice leaves the same rows.
func Seed(ctx context.Context, u Upserter) (SeedResult, error) {
	var res SeedResult
	for _, c := range SeedColleges {
		if err := u.UpsertCollege(ctx, c); err != nil {
			return res, fmt.Errorf("college %s: %w", c.ID, err)
		}
		res.Colleges++
	}
	for _, c := range SeedCategories {
		if err := u.UpsertCategory(ctx, c); err != nil {
			return res, fmt.Errorf("category %s: %w", c.ID, err)
		}
		res.Categories++
	}
	return res, nil
}
