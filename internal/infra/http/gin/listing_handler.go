package ginserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Bonshal/swapspot/internal/app/dto"
	applisting "github.com/Bonshal/swapspot/internal/app/listing"
	domainlisting "github.com/Bonshal/swapspot/internal/domain/listing"
	"github.com/Bonshal/swapspot/internal/infra/storage/s3"
)

type ListingHTTP interface {
	Catalog(c *gin.Context)
	ClearFilters(c *gin.Context)
	Get(c *gin.Context)
	Mine(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	UploadPhoto(c *gin.Context)
}

// ListingHandler serves the catalog through per-viewer filter state. Signed-in
// viewers keep their criteria across requests; anonymous browsing gets a fresh
// state, so the query parameters fully describe the page.
type ListingHandler struct {
	Gateway  domainlisting.Gateway
	Uploader s3.Uploader
	Logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*applisting.State
}

const maxPhotoSize = 10 << 20

// Catalog merges query parameters into the viewer's filter state and fetches
// the matching page.
func (h *ListingHandler) Catalog(c *gin.Context) {
	state := h.stateFor(c)
	patch, touched, err := patchFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if touched {
		state.UpdateFilters(patch)
	}
	fetchErr := state.FetchListings(c.Request.Context())
	response := dto.CatalogPage{
		Listings: state.Listings(),
		Filters:  dto.MapFilterState(state.Filters()),
		Loading:  state.Loading(),
	}
	if fetchErr != nil {
		response.Error = "could not refresh listings"
	}
	c.JSON(http.StatusOK, response)
}

// ClearFilters resets the viewer's criteria to the default recent-first view.
func (h *ListingHandler) ClearFilters(c *gin.Context) {
	state := h.stateFor(c)
	state.ClearFilters()
	c.JSON(http.StatusOK, dto.MapFilterState(state.Filters()))
}

func (h *ListingHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	item, err := h.Gateway.ByID(c.Request.Context(), id)
	if err != nil {
		h.respondListingError(c, err, "load listing", "listing_id", id)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ListingHandler) Mine(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	items, err := h.Gateway.BySeller(c.Request.Context(), principal.ID)
	if err != nil {
		h.respondListingError(c, err, "load seller listings", "seller_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": items})
}

func (h *ListingHandler) Create(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	var req dto.UpsertListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	item := req.ToDomain()
	item.SellerID = principal.ID
	created, err := h.Gateway.Create(c.Request.Context(), item)
	if err != nil {
		h.respondListingError(c, err, "create listing", "seller_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ListingHandler) Update(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	var req dto.UpsertListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	item := req.ToDomain()
	item.ID = id
	updated, err := h.Gateway.Update(c.Request.Context(), principal.ID, item)
	if err != nil {
		h.respondListingError(c, err, "update listing", "listing_id", id)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ListingHandler) Delete(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	if err := h.Gateway.Delete(c.Request.Context(), principal.ID, id); err != nil {
		h.respondListingError(c, err, "delete listing", "listing_id", id)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadPhoto stores one image in the object bucket and returns its public URL.
func (h *ListingHandler) UploadPhoto(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage unavailable"})
		return
	}
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
		return
	}
	key := fmt.Sprintf("listings/%s/%s%s", principal.ID, uuid.NewString(), path.Ext(header.Filename))
	url, err := h.Uploader.Upload(c.Request.Context(), key, file, header.Header.Get("Content-Type"))
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("photo upload failed", "seller_id", principal.ID, "error", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *ListingHandler) stateFor(c *gin.Context) *applisting.State {
	principal, ok := currentPrincipal(c)
	if !ok {
		return applisting.NewState(h.Gateway, h.Logger)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.states == nil {
		h.states = make(map[string]*applisting.State)
	}
	state, exists := h.states[principal.ID]
	if !exists {
		state = applisting.NewState(h.Gateway, h.Logger)
		h.states[principal.ID] = state
	}
	return state
}

func (h *ListingHandler) respondListingError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, domainlisting.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
	case errors.Is(err, domainlisting.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not your listing"})
	case errors.Is(err, domainlisting.ErrTitleRequired), errors.Is(err, domainlisting.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domainlisting.ErrUnavailable):
		if h.Logger != nil {
			h.Logger.Error("listing backend unavailable", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "listings temporarily unavailable"})
	default:
		if h.Logger != nil {
			h.Logger.Error("listing call failed", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// patchFromQuery maps catalog query parameters onto a filter patch. Absent
// parameters leave the corresponding criteria untouched.
func patchFromQuery(c *gin.Context) (domainlisting.Patch, bool, error) {
	var patch domainlisting.Patch
	touched := false

	if value, ok := c.GetQuery("category"); ok {
		patch.Category = &value
		touched = true
	}
	if value, ok := c.GetQuery("subcategory"); ok {
		patch.Subcategory = &value
		touched = true
	}
	if raw, ok := c.GetQuery("min_price"); ok {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return patch, false, errors.New("min_price must be a number")
		}
		patch.MinPrice = &value
		touched = true
	}
	if raw, ok := c.GetQuery("max_price"); ok {
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return patch, false, errors.New("max_price must be a number")
		}
		patch.MaxPrice = &value
		touched = true
	}
	if value, ok := c.GetQuery("location"); ok {
		patch.Location = &value
		touched = true
	}
	if raw, ok := c.GetQuery("conditions"); ok {
		var conditions []domainlisting.Condition
		for _, token := range strings.Split(raw, ",") {
			if token = strings.TrimSpace(token); token != "" {
				conditions = append(conditions, domainlisting.Condition(token))
			}
		}
		patch.Conditions = &conditions
		touched = true
	}
	if value, ok := c.GetQuery("q"); ok {
		patch.SearchTerm = &value
		touched = true
	}
	if raw, ok := c.GetQuery("sort"); ok {
		order := domainlisting.SortOrder(strings.TrimSpace(raw))
		patch.SortBy = &order
		touched = true
	}
	return patch, touched, nil
}

var _ ListingHTTP = (*ListingHandler)(nil)
