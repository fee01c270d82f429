package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Bonshal/swapspot/internal/domain/listing"
)

// ListingGateway runs catalog queries and owner-scoped writes against the
// hosted store. Category, subcategory, price range, location and sort are
// pushed into the query; condition sets and search terms are left for the
// caller's client-side pass, mirroring what the hosted query layer supports.
type ListingGateway struct {
	col *mongo.Collection
}

func NewListingGateway(db *mongo.Database) *ListingGateway {
	return &ListingGateway{col: db.Collection("listings")}
}

func (g *ListingGateway) Search(ctx context.Context, filters listing.Filters) ([]listing.Listing, error) {
	opts := filters.Normalized()
	query := bson.M{}
	if opts.Category != "" {
		query["category"] = opts.Category
	}
	if opts.Subcategory != "" {
		query["subcategory"] = opts.Subcategory
	}
	price := bson.M{}
	if opts.MinPrice > 0 {
		price["$gte"] = opts.MinPrice
	}
	if opts.MaxPrice > 0 {
		price["$lte"] = opts.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	if opts.Location != "" {
		query["location"] = primitive.Regex{Pattern: regexp.QuoteMeta(opts.Location), Options: "i"}
	}

	findOpts := options.Find().SetSort(sortSpec(opts.SortBy))
	cursor, err := g.col.Find(ctx, query, findOpts)
	if err != nil {
		return nil, mapListingErr(err)
	}
	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapListingErr(err)
	}
	out := make([]listing.Listing, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toListing())
	}
	return out, nil
}

func (g *ListingGateway) ByID(ctx context.Context, id string) (listing.Listing, error) {
	var doc listingDocument
	if err := g.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return listing.Listing{}, mapListingErr(err)
	}
	return doc.toListing(), nil
}

func (g *ListingGateway) BySeller(ctx context.Context, sellerID string) ([]listing.Listing, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := g.col.Find(ctx, bson.M{"seller_id": sellerID}, findOpts)
	if err != nil {
		return nil, mapListingErr(err)
	}
	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, mapListingErr(err)
	}
	out := make([]listing.Listing, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toListing())
	}
	return out, nil
}

func (g *ListingGateway) Create(ctx context.Context, item listing.Listing) (listing.Listing, error) {
	if err := item.Validate(); err != nil {
		return listing.Listing{}, err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if _, err := g.col.InsertOne(ctx, newListingDocument(item)); err != nil {
		return listing.Listing{}, mapListingErr(err)
	}
	return item, nil
}

func (g *ListingGateway) Update(ctx context.Context, sellerID string, item listing.Listing) (listing.Listing, error) {
	if err := item.Validate(); err != nil {
		return listing.Listing{}, err
	}
	existing, err := g.ByID(ctx, item.ID)
	if err != nil {
		return listing.Listing{}, err
	}
	if existing.SellerID != sellerID {
		return listing.Listing{}, listing.ErrNotOwner
	}
	item.SellerID = existing.SellerID
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	doc := newListingDocument(item)
	if _, err := g.col.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{"$set": doc}); err != nil {
		return listing.Listing{}, mapListingErr(err)
	}
	return item, nil
}

func (g *ListingGateway) Delete(ctx context.Context, sellerID, id string) error {
	existing, err := g.ByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.SellerID != sellerID {
		return listing.ErrNotOwner
	}
	if _, err := g.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return mapListingErr(err)
	}
	return nil
}

func sortSpec(order listing.SortOrder) bson.D {
	switch order {
	case listing.SortPriceLow:
		return bson.D{{Key: "price", Value: 1}}
	case listing.SortPriceHigh:
		return bson.D{{Key: "price", Value: -1}}
	case listing.SortPopularity:
		return bson.D{{Key: "seller_rating", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}

type listingDocument struct {
	ID             string   `bson:"_id"`
	Title          string   `bson:"title"`
	Description    string   `bson:"description"`
	Price          float64  `bson:"price"`
	Location       string   `bson:"location"`
	Category       string   `bson:"category"`
	Subcategory    string   `bson:"subcategory,omitempty"`
	Condition      string   `bson:"condition"`
	Images         []string `bson:"images"`
	SellerID       string   `bson:"seller_id"`
	SellerName     string   `bson:"seller_name"`
	SellerAvatar   string   `bson:"seller_avatar,omitempty"`
	SellerRating   float64  `bson:"seller_rating"`
	SellerVerified bool     `bson:"seller_verified"`
	CreatedAt      int64    `bson:"created_at"`
	UpdatedAt      int64    `bson:"updated_at"`
}

func newListingDocument(item listing.Listing) listingDocument {
	return listingDocument{
		ID:             item.ID,
		Title:          item.Title,
		Description:    item.Description,
		Price:          item.Price,
		Location:       item.Location,
		Category:       item.Category,
		Subcategory:    item.Subcategory,
		Condition:      string(item.Condition),
		Images:         item.Images,
		SellerID:       item.SellerID,
		SellerName:     item.SellerName,
		SellerAvatar:   item.SellerAvatar,
		SellerRating:   item.SellerRating,
		SellerVerified: item.SellerVerified,
		CreatedAt:      item.CreatedAt.UnixMilli(),
		UpdatedAt:      item.UpdatedAt.UnixMilli(),
	}
}

func (d listingDocument) toListing() listing.Listing {
	return listing.Listing{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Price:          d.Price,
		Location:       d.Location,
		Category:       d.Category,
		Subcategory:    d.Subcategory,
		Condition:      listing.Condition(d.Condition),
		Images:         d.Images,
		SellerID:       d.SellerID,
		SellerName:     d.SellerName,
		SellerAvatar:   d.SellerAvatar,
		SellerRating:   d.SellerRating,
		SellerVerified: d.SellerVerified,
		CreatedAt:      timestampToTime(d.CreatedAt),
		UpdatedAt:      timestampToTime(d.UpdatedAt),
	}
}

func mapListingErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return listing.ErrNotFound
	}
	return fmt.Errorf("%w: %v", listing.ErrUnavailable, err)
}

var _ listing.Gateway = (*ListingGateway)(nil)
