package listing

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the referenced listing does not exist.
	ErrNotFound = errors.New("listing: not found")
	// ErrNotOwner is returned when a seller edits a listing they do not own.
	ErrNotOwner = errors.New("listing: not owned by seller")
	// ErrTitleRequired rejects listings without a title.
	ErrTitleRequired = errors.New("listing: title is required")
	// ErrInvalidPrice rejects negative prices.
	ErrInvalidPrice = errors.New("listing: price must not be negative")
	// ErrUnavailable wraps connectivity failures against the backing store.
	ErrUnavailable = errors.New("listing: backend unavailable")
)

// Condition describes the wear state of a second-hand item.
type Condition string

const (
	ConditionNew     Condition = "new"
	ConditionLikeNew Condition = "like-new"
	ConditionGood    Condition = "good"
	ConditionFair    Condition = "fair"
	ConditionPoor    Condition = "poor"
)

// Listing is a marketplace item. Seller fields are denormalized display
// copies and may lag behind the seller's live profile.
type Listing struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Price          float64   `json:"price"`
	Location       string    `json:"location"`
	Category       string    `json:"category"`
	Subcategory    string    `json:"subcategory,omitempty"`
	Condition      Condition `json:"condition"`
	Images         []string  `json:"images"`
	SellerID       string    `json:"seller_id"`
	SellerName     string    `json:"seller_name"`
	SellerAvatar   string    `json:"seller_avatar,omitempty"`
	SellerRating   float64   `json:"seller_rating"`
	SellerVerified bool      `json:"seller_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the fields a seller controls on create/update.
func (l *Listing) Validate() error {
	if l.Title == "" {
		return ErrTitleRequired
	}
	if l.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Gateway executes listing queries and owner-scoped writes against the hosted
// backend. Search receives already-normalized filters and applies only the
// dimensions the backend query layer can express; see Filters for the split.
type Gateway interface {
	Search(ctx context.Context, filters Filters) ([]Listing, error)
	ByID(ctx context.Context, id string) (Listing, error)
	BySeller(ctx context.Context, sellerID string) ([]Listing, error)
	Create(ctx context.Context, item Listing) (Listing, error)
	Update(ctx context.Context, sellerID string, item Listing) (Listing, error)
	Delete(ctx context.Context, sellerID, id string) error
}
