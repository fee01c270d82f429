package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Bonshal/swapspot/internal/domain/listing"
	domainuser "github.com/Bonshal/swapspot/internal/domain/user"
)

func seedUser(t *testing.T, repo *UserRepository, email, name string) *domainuser.User {
	t.Helper()
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        email,
		Name:         name,
		PasswordHash: "x",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := repo.Save(context.Background(), user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return user
}

func listingFixture(sellerID, title string) listing.Listing {
	return listing.Listing{
		Title:       title,
		Description: "test item",
		Price:       100,
		Location:    "Prague",
		Category:    "sports",
		Condition:   listing.ConditionGood,
		SellerID:    sellerID,
	}
}

func TestListingSearchServerDimensions(t *testing.T) {
	repo := NewListingRepository()
	ctx := context.Background()

	fixtures := []listing.Listing{
		{Title: "Road bike", Category: "sports", Subcategory: "cycling", Price: 320, Location: "Prague", Condition: listing.ConditionLikeNew, SellerID: "s1"},
		{Title: "Tennis racket", Category: "sports", Subcategory: "tennis", Price: 60, Location: "Brno", Condition: listing.ConditionGood, SellerID: "s1"},
		{Title: "Oak bookshelf", Category: "furniture", Price: 85, Location: "Prague", Condition: listing.ConditionGood, SellerID: "s2"},
	}
	for _, item := range fixtures {
		if _, err := repo.Create(ctx, item); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := repo.Search(ctx, listing.Filters{Category: "sports", MinPrice: 100})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page) != 1 || page[0].Title != "Road bike" {
		t.Fatalf("page = %+v, want only the road bike", page)
	}

	// Conditions and search term are client-side dimensions; the repository
	// must ignore them entirely.
	page, err = repo.Search(ctx, listing.Filters{
		Conditions: []listing.Condition{listing.ConditionNew},
		SearchTerm: "bike",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page = %d items, want all 3 unfiltered", len(page))
	}

	page, err = repo.Search(ctx, listing.Filters{Location: "prague"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("location page = %d items, want 2", len(page))
	}
}

func TestListingSearchSorts(t *testing.T) {
	repo := NewListingRepository()
	ctx := context.Background()

	prices := []float64{300, 100, 200}
	for _, price := range prices {
		item := listingFixture("s1", "item")
		item.Price = price
		if _, err := repo.Create(ctx, item); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, err := repo.Search(ctx, listing.Filters{SortBy: listing.SortPriceLow})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page[0].Price != 100 || page[2].Price != 300 {
		t.Fatalf("price-low order: %v %v %v", page[0].Price, page[1].Price, page[2].Price)
	}
}

func TestListingCreateValidatesAndStamps(t *testing.T) {
	repo := NewListingRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, listingFixture("s1", "Road bike"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("no id assigned")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}

	if _, err := repo.Create(ctx, listingFixture("s1", "")); !errors.Is(err, listing.ErrTitleRequired) {
		t.Fatalf("err = %v, want ErrTitleRequired", err)
	}
}

func TestListingOwnerChecks(t *testing.T) {
	repo := NewListingRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, listingFixture("owner", "Road bike"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	update := created
	update.Title = "Renamed"
	if _, err := repo.Update(ctx, "intruder", update); !errors.Is(err, listing.ErrNotOwner) {
		t.Fatalf("update err = %v, want ErrNotOwner", err)
	}
	if err := repo.Delete(ctx, "intruder", created.ID); !errors.Is(err, listing.ErrNotOwner) {
		t.Fatalf("delete err = %v, want ErrNotOwner", err)
	}

	updated, err := repo.Update(ctx, "owner", update)
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("title = %q", updated.Title)
	}
	if err := repo.Delete(ctx, "owner", created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repo.ByID(ctx, created.ID); !errors.Is(err, listing.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}
}

func TestListingBySeller(t *testing.T) {
	repo := NewListingRepository()
	ctx := context.Background()

	for _, seller := range []string{"s1", "s1", "s2"} {
		if _, err := repo.Create(ctx, listingFixture(seller, "item")); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	mine, err := repo.BySeller(ctx, "s1")
	if err != nil {
		t.Fatalf("by seller: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("mine = %d, want 2", len(mine))
	}
}
