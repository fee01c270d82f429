package dto

import (
	domainlisting "github.com/Bonshal/swapspot/internal/domain/listing"
)

// CatalogPage is a fetched listing page together with the filter state that
// produced it.
type CatalogPage struct {
	Listings []domainlisting.Listing `json:"listings"`
	Filters  FilterState             `json:"filters"`
	Loading  bool                    `json:"loading"`
	Error    string                  `json:"error,omitempty"`
}

// FilterState echoes the active criteria back to the caller.
type FilterState struct {
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	MinPrice    float64  `json:"min_price,omitempty"`
	MaxPrice    float64  `json:"max_price,omitempty"`
	Location    string   `json:"location,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
	SearchTerm  string   `json:"search_term,omitempty"`
	SortBy      string   `json:"sort_by"`
}

type UpsertListingRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Location    string   `json:"location"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
}

func MapFilterState(filters domainlisting.Filters) FilterState {
	conditions := make([]string, 0, len(filters.Conditions))
	for _, c := range filters.Conditions {
		conditions = append(conditions, string(c))
	}
	return FilterState{
		Category:    filters.Category,
		Subcategory: filters.Subcategory,
		MinPrice:    filters.MinPrice,
		MaxPrice:    filters.MaxPrice,
		Location:    filters.Location,
		Conditions:  conditions,
		SearchTerm:  filters.SearchTerm,
		SortBy:      string(filters.SortBy),
	}
}

func (r UpsertListingRequest) ToDomain() domainlisting.Listing {
	return domainlisting.Listing{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Location:    r.Location,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Condition:   domainlisting.Condition(r.Condition),
		Images:      r.Images,
	}
}
