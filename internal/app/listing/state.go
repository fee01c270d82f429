package listing

import (
	"context"
	"log/slog"
	"sync"

	domain "github.com/Bonshal/swapspot/internal/domain/listing"
)

// State holds the active filter criteria and the listing page they produced.
// It shares the store shape of the messaging side: all mutation goes through
// it, getters hand out copies, and a failed fetch keeps the previous page
// while recording a displayable error.
type State struct {
	gateway domain.Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	filters  domain.Filters
	listings []domain.Listing
	loading  bool
	err      error
}

func NewState(gateway domain.Gateway, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		gateway: gateway,
		logger:  logger,
		filters: domain.Filters{SortBy: domain.SortRecent},
	}
}

// UpdateFilters shallow-merges the patch into the active criteria. It does
// not fetch; callers decide when to re-query.
func (s *State) UpdateFilters(patch domain.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = s.filters.Merge(patch)
}

// ClearFilters resets to the default recent-first view.
func (s *State) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = domain.Filters{SortBy: domain.SortRecent}
}

// FetchListings applies the current filters: server-expressible dimensions go
// into the gateway query, then the client-side pass narrows by condition set
// and search term. On success the held page is replaced wholesale.
func (s *State) FetchListings(ctx context.Context) error {
	s.mu.Lock()
	filters := s.filters.Normalized()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	page, err := s.gateway.Search(ctx, filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = err
		s.logger.Warn("listing fetch failed", "error", err)
		return err
	}
	s.listings = filters.ApplyLocal(page)
	return nil
}

// Filters returns the active criteria.
func (s *State) Filters() domain.Filters {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := s.filters
	filters.Conditions = append([]domain.Condition(nil), s.filters.Conditions...)
	return filters
}

// Listings returns a copy of the fetched page.
func (s *State) Listings() []domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Listing(nil), s.listings...)
}

// Loading reports whether a fetch is in flight.
func (s *State) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last displayable error, if any.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearError dismisses the stored error.
func (s *State) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}
