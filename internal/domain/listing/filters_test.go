package listing

import (
	"testing"
	"time"
)

func TestNormalizedRepairsInvalidInput(t *testing.T) {
	filters := Filters{
		Category:    "  Sports ",
		Subcategory: " Cycling",
		MinPrice:    -10,
		MaxPrice:    -5,
		Location:    "  Prague ",
		Conditions:  []Condition{" NEW ", "new", "", "good"},
		SearchTerm:  "  bike  ",
		SortBy:      SortOrder("bogus"),
	}

	normalized := filters.Normalized()
	if normalized.Category != "sports" || normalized.Subcategory != "cycling" {
		t.Fatalf("tokens not lowered: %+v", normalized)
	}
	if normalized.MinPrice != 0 || normalized.MaxPrice != 0 {
		t.Fatalf("negative prices survived: %+v", normalized)
	}
	if normalized.Location != "Prague" || normalized.SearchTerm != "bike" {
		t.Fatalf("free text not trimmed: %+v", normalized)
	}
	if len(normalized.Conditions) != 2 {
		t.Fatalf("conditions = %v, want deduplicated pair", normalized.Conditions)
	}
	if normalized.SortBy != SortRecent {
		t.Fatalf("sort = %q, want recent fallback", normalized.SortBy)
	}
}

func TestNormalizedDropsInvertedPriceRange(t *testing.T) {
	filters := Filters{MinPrice: 200, MaxPrice: 100}
	if normalized := filters.Normalized(); normalized.MaxPrice != 0 {
		t.Fatalf("max price = %v, want dropped when below min", normalized.MaxPrice)
	}
}

func TestMergeLeavesNilFieldsUntouched(t *testing.T) {
	base := Filters{Category: "sports", MinPrice: 50, SortBy: SortPriceLow}
	price := 120.0
	merged := base.Merge(Patch{MaxPrice: &price})

	if merged.Category != "sports" || merged.MinPrice != 50 || merged.SortBy != SortPriceLow {
		t.Fatalf("merge overwrote untouched fields: %+v", merged)
	}
	if merged.MaxPrice != 120 {
		t.Fatalf("max price = %v", merged.MaxPrice)
	}
}

func TestMergeCanClearWithEmptyValues(t *testing.T) {
	base := Filters{Category: "sports"}
	empty := ""
	merged := base.Merge(Patch{Category: &empty})
	if merged.Category != "" {
		t.Fatalf("category = %q, want cleared", merged.Category)
	}
}

func TestApplyLocalFiltersConditionsAndTerm(t *testing.T) {
	items := []Listing{
		{ID: "a", Title: "Road bike", Description: "carbon", Category: "sports", Condition: ConditionNew},
		{ID: "b", Title: "City bike", Description: "steel", Category: "sports", Condition: ConditionFair},
		{ID: "c", Title: "Desk lamp", Description: "bike themed", Category: "home", Condition: ConditionNew},
	}

	filters := Filters{Conditions: []Condition{ConditionNew}, SearchTerm: "bike"}
	out := filters.ApplyLocal(items)
	if len(out) != 2 {
		t.Fatalf("got %d items, want a and c", len(out))
	}
	for _, item := range out {
		if item.ID == "b" {
			t.Fatal("fair-condition item passed the condition filter")
		}
	}
}

func TestApplyLocalWithNoCriteriaKeepsEverything(t *testing.T) {
	items := []Listing{{ID: "a"}, {ID: "b"}}
	if out := (Filters{}).ApplyLocal(items); len(out) != 2 {
		t.Fatalf("got %d items, want all", len(out))
	}
}

func TestSortListings(t *testing.T) {
	now := time.Now()
	items := []Listing{
		{ID: "cheap", Price: 10, SellerRating: 2, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "mid", Price: 50, SellerRating: 5, CreatedAt: now.Add(-time.Hour)},
		{ID: "dear", Price: 90, SellerRating: 4, CreatedAt: now},
	}

	SortListings(items, SortPriceLow)
	if items[0].ID != "cheap" || items[2].ID != "dear" {
		t.Fatalf("price-low order: %v %v %v", items[0].ID, items[1].ID, items[2].ID)
	}

	SortListings(items, SortPriceHigh)
	if items[0].ID != "dear" {
		t.Fatalf("price-high first = %s", items[0].ID)
	}

	SortListings(items, SortPopularity)
	if items[0].ID != "mid" {
		t.Fatalf("popularity first = %s, want highest seller rating", items[0].ID)
	}

	SortListings(items, SortRecent)
	if items[0].ID != "dear" {
		t.Fatalf("recent first = %s, want newest", items[0].ID)
	}
}

func TestValidateListing(t *testing.T) {
	if err := (&Listing{Title: "", Price: 10}).Validate(); err != ErrTitleRequired {
		t.Fatalf("err = %v, want ErrTitleRequired", err)
	}
	if err := (&Listing{Title: "ok", Price: -1}).Validate(); err != ErrInvalidPrice {
		t.Fatalf("err = %v, want ErrInvalidPrice", err)
	}
	if err := (&Listing{Title: "ok", Price: 0}).Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
