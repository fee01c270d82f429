package listing

import (
	"sort"
	"strings"
)

// SortOrder defines a supported catalog ordering.
type SortOrder string

const (
	SortRecent     SortOrder = "recent"
	SortPriceLow   SortOrder = "price-low"
	SortPriceHigh  SortOrder = "price-high"
	SortPopularity SortOrder = "popularity"
)

// Filters is the active search criteria. It is a pure value object owned by
// the filter state; fetch operations consume it read-only.
//
// The backend query layer applies Category, Subcategory, MinPrice, MaxPrice,
// Location and the sort order. Conditions (set membership) and SearchTerm
// (substring match over title/description) cannot be expressed by the hosted
// query layer in combination with the rest and are applied client-side by
// ApplyLocal as a secondary pass over the fetched page. Keep that split in
// mind when touching either side: a dimension must narrow in exactly one
// layer.
type Filters struct {
	Category    string
	Subcategory string
	MinPrice    float64
	MaxPrice    float64
	Location    string
	Conditions  []Condition
	SearchTerm  string
	SortBy      SortOrder
}

// Patch carries partial filter updates; nil fields leave the current value
// untouched, mirroring a shallow merge.
type Patch struct {
	Category    *string
	Subcategory *string
	MinPrice    *float64
	MaxPrice    *float64
	Location    *string
	Conditions  *[]Condition
	SearchTerm  *string
	SortBy      *SortOrder
}

// Merge returns a copy of f with the patch applied.
func (f Filters) Merge(p Patch) Filters {
	merged := f
	if p.Category != nil {
		merged.Category = *p.Category
	}
	if p.Subcategory != nil {
		merged.Subcategory = *p.Subcategory
	}
	if p.MinPrice != nil {
		merged.MinPrice = *p.MinPrice
	}
	if p.MaxPrice != nil {
		merged.MaxPrice = *p.MaxPrice
	}
	if p.Location != nil {
		merged.Location = *p.Location
	}
	if p.Conditions != nil {
		merged.Conditions = append([]Condition(nil), (*p.Conditions)...)
	}
	if p.SearchTerm != nil {
		merged.SearchTerm = *p.SearchTerm
	}
	if p.SortBy != nil {
		merged.SortBy = *p.SortBy
	}
	return merged
}

// Normalized returns a sanitized copy: trimmed tokens, deduplicated
// conditions, non-negative prices, a consistent min/max pair and a valid sort.
func (f Filters) Normalized() Filters {
	normalized := f
	normalized.Category = strings.TrimSpace(strings.ToLower(normalized.Category))
	normalized.Subcategory = strings.TrimSpace(strings.ToLower(normalized.Subcategory))
	normalized.Location = strings.TrimSpace(normalized.Location)
	normalized.SearchTerm = strings.TrimSpace(normalized.SearchTerm)
	normalized.Conditions = normalizeConditions(normalized.Conditions)
	if normalized.MinPrice < 0 {
		normalized.MinPrice = 0
	}
	if normalized.MaxPrice < 0 {
		normalized.MaxPrice = 0
	}
	if normalized.MaxPrice > 0 && normalized.MaxPrice < normalized.MinPrice {
		normalized.MaxPrice = 0
	}
	switch normalized.SortBy {
	case SortRecent, SortPriceLow, SortPriceHigh, SortPopularity:
	default:
		normalized.SortBy = SortRecent
	}
	return normalized
}

// ApplyLocal runs the client-side filter dimensions (conditions, search term)
// over an already-fetched page. The server has narrowed everything else.
func (f Filters) ApplyLocal(items []Listing) []Listing {
	out := make([]Listing, 0, len(items))
	term := strings.ToLower(strings.TrimSpace(f.SearchTerm))
	for _, item := range items {
		if len(f.Conditions) > 0 && !conditionIncluded(item.Condition, f.Conditions) {
			continue
		}
		if term != "" && !matchesTerm(item, term) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortListings orders items in place according to the filter's sort order.
// Backed stores push sorting into the query; the memory backend and the
// local pass reuse this.
func SortListings(items []Listing, order SortOrder) {
	sort.SliceStable(items, func(i, j int) bool {
		switch order {
		case SortPriceLow:
			return items[i].Price < items[j].Price
		case SortPriceHigh:
			return items[i].Price > items[j].Price
		case SortPopularity:
			// Seller rating stands in for popularity.
			return items[i].SellerRating > items[j].SellerRating
		default:
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
	})
}

func matchesTerm(item Listing, term string) bool {
	return strings.Contains(strings.ToLower(item.Title), term) ||
		strings.Contains(strings.ToLower(item.Description), term) ||
		strings.Contains(strings.ToLower(item.Category), term)
}

func conditionIncluded(c Condition, set []Condition) bool {
	for _, candidate := range set {
		if candidate == c {
			return true
		}
	}
	return false
}

func normalizeConditions(values []Condition) []Condition {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[Condition]struct{}, len(values))
	out := make([]Condition, 0, len(values))
	for _, value := range values {
		normalized := Condition(strings.TrimSpace(strings.ToLower(string(value))))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
