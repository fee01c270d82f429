package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bonshal/swapspot/internal/domain/listing"
)

// ListingRepository keeps listings in memory. Dev fallback and test substrate.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[string]listing.Listing

	Now func() time.Time
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[string]listing.Listing)}
}

// Search applies the server-expressible filter dimensions: category,
// subcategory, price range, location substring and sort. Conditions and
// search term stay client-side, matching what the hosted query layer can do.
func (r *ListingRepository) Search(ctx context.Context, filters listing.Filters) ([]listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts := filters.Normalized()
	matches := make([]listing.Listing, 0, len(r.items))
	for _, item := range r.items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if opts.Category != "" && !strings.EqualFold(item.Category, opts.Category) {
			continue
		}
		if opts.Subcategory != "" && !strings.EqualFold(item.Subcategory, opts.Subcategory) {
			continue
		}
		if opts.MinPrice > 0 && item.Price < opts.MinPrice {
			continue
		}
		if opts.MaxPrice > 0 && item.Price > opts.MaxPrice {
			continue
		}
		if opts.Location != "" && !strings.Contains(strings.ToLower(item.Location), strings.ToLower(opts.Location)) {
			continue
		}
		matches = append(matches, item)
	}
	listing.SortListings(matches, opts.SortBy)
	return matches, nil
}

func (r *ListingRepository) ByID(ctx context.Context, id string) (listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	return item, nil
}

func (r *ListingRepository) BySeller(ctx context.Context, sellerID string) ([]listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []listing.Listing
	for _, item := range r.items {
		if item.SellerID == sellerID {
			out = append(out, item)
		}
	}
	listing.SortListings(out, listing.SortRecent)
	return out, nil
}

func (r *ListingRepository) Create(ctx context.Context, item listing.Listing) (listing.Listing, error) {
	if err := item.Validate(); err != nil {
		return listing.Listing{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := r.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	r.items[item.ID] = item
	return item, nil
}

func (r *ListingRepository) Update(ctx context.Context, sellerID string, item listing.Listing) (listing.Listing, error) {
	if err := item.Validate(); err != nil {
		return listing.Listing{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[item.ID]
	if !ok {
		return listing.Listing{}, listing.ErrNotFound
	}
	if existing.SellerID != sellerID {
		return listing.Listing{}, listing.ErrNotOwner
	}
	item.SellerID = existing.SellerID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = r.now()
	r.items[item.ID] = item
	return item, nil
}

func (r *ListingRepository) Delete(ctx context.Context, sellerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[id]
	if !ok {
		return listing.ErrNotFound
	}
	if existing.SellerID != sellerID {
		return listing.ErrNotOwner
	}
	delete(r.items, id)
	return nil
}

func (r *ListingRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

var _ listing.Gateway = (*ListingRepository)(nil)
