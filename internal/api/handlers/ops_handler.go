package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/internal/services"
	"auction-lifecycle/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PassController is the part of the lifecycle driver exposed to operators.
type PassController interface {
	RunPass(ctx context.Context) (*services.PassStats, error)
	LastPass() *services.PassStats
}

// ListingOverrides is the part of the listing admin exposed to operators.
type ListingOverrides interface {
	Create(ctx context.Context, req services.NewListing) (*domain.Listing, error)
	Get(ctx context.Context, listingID int64) (*domain.Listing, error)
	Disable(ctx context.Context, listingID int64) (*domain.Listing, error)
	MarkPaid(ctx context.Context, listingID int64) (*domain.Listing, error)
}

// LeaseInspector reports which instance currently holds the pass lease.
type LeaseInspector interface {
	Holder(ctx context.Context) (string, error)
}

type OpsHandler struct {
	passes   PassController
	listings ListingOverrides
	lease    LeaseInspector
	service  string
	log      logger.Logger
}

type CreateListingRequest struct {
	Title     string     `json:"title"`
	SellerID  int64      `json:"seller_id"`
	InitialAt *time.Time `json:"initial_at"`
	EndAt     *time.Time `json:"end_at"`
}

type BidResponse struct {
	ID        int64     `json:"id"`
	BidderID  int64     `json:"bidder_id"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type ListingResponse struct {
	ID                   int64         `json:"id"`
	Title                string        `json:"title"`
	SellerID             int64         `json:"seller_id,omitempty"`
	Status               string        `json:"status"`
	InitialAt            *time.Time    `json:"initial_at,omitempty"`
	EndAt                *time.Time    `json:"end_at,omitempty"`
	AuctionedAt          *time.Time    `json:"auctioned_at,omitempty"`
	PaymentWarningSentAt *time.Time    `json:"payment_warning_sent_at,omitempty"`
	CurrentWinnerBidID   *int64        `json:"current_winner_bid_id,omitempty"`
	AuctionAttempt       int           `json:"auction_attempt"`
	Bids                 []BidResponse `json:"bids,omitempty"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

func NewOpsHandler(passes PassController, listings ListingOverrides, service string, log logger.Logger) *OpsHandler {
	return &OpsHandler{
		passes:   passes,
		listings: listings,
		service:  service,
		log:      log,
	}
}

// SetLeaseInspector adds the current lease holder to the health response.
func (h *OpsHandler) SetLeaseInspector(lease LeaseInspector) {
	h.lease = lease
}

// RegisterRoutes mounts the operator endpoints under /api/v1.
func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.GET("/health", h.Health)
	api.GET("/passes/last", h.LastPass)
	api.POST("/passes", h.TriggerPass)
	api.POST("/listings", h.CreateListing)
	api.GET("/listings/:id", h.GetListing)
	api.POST("/listings/:id/disable", h.DisableListing)
	api.POST("/listings/:id/paid", h.MarkPaid)
}

func (h *OpsHandler) Health(c echo.Context) error {
	body := map[string]interface{}{
		"status":    "ok",
		"service":   h.service,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.lease != nil {
		holder, err := h.lease.Holder(c.Request().Context())
		if err != nil {
			h.log.Warn("Failed to read lease holder", "error", err)
			body["lease_holder_error"] = err.Error()
		} else {
			body["lease_holder"] = holder
		}
	}
	return c.JSON(http.StatusOK, body)
}

func (h *OpsHandler) LastPass(c echo.Context) error {
	stats := h.passes.LastPass()
	if stats == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No pass has completed yet"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *OpsHandler) TriggerPass(c echo.Context) error {
	h.log.Info("Manual pass requested", "remote_addr", c.RealIP())

	stats, err := h.passes.RunPass(c.Request().Context())
	switch {
	case errors.Is(err, domain.ErrPassInFlight):
		return c.JSON(http.StatusConflict, map[string]string{"error": "A pass is already running"})
	case errors.Is(err, domain.ErrLeaseNotHeld):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Another instance holds the pass lease"})
	case err != nil:
		h.log.Error("Manual pass failed", "error", err)
		if stats != nil {
			return c.JSON(http.StatusInternalServerError, stats)
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Pass failed"})
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *OpsHandler) CreateListing(c echo.Context) error {
	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Title is required"})
	}
	if req.InitialAt != nil && req.EndAt != nil && !req.EndAt.After(*req.InitialAt) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "End time must be after start time"})
	}

	listing, err := h.listings.Create(c.Request().Context(), services.NewListing{
		Title:     req.Title,
		SellerID:  req.SellerID,
		InitialAt: req.InitialAt,
		EndAt:     req.EndAt,
	})
	if err != nil {
		h.log.Error("Failed to create listing", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create listing"})
	}
	return c.JSON(http.StatusCreated, toListingResponse(listing))
}

func (h *OpsHandler) GetListing(c echo.Context) error {
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid listing id"})
	}

	listing, err := h.listings.Get(c.Request().Context(), id)
	if err != nil {
		return h.overrideError(c, id, err)
	}
	return c.JSON(http.StatusOK, toListingResponse(listing))
}

func (h *OpsHandler) DisableListing(c echo.Context) error {
	return h.override(c, h.listings.Disable)
}

func (h *OpsHandler) MarkPaid(c echo.Context) error {
	return h.override(c, h.listings.MarkPaid)
}

func (h *OpsHandler) override(c echo.Context, apply func(context.Context, int64) (*domain.Listing, error)) error {
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid listing id"})
	}

	listing, err := apply(c.Request().Context(), id)
	if err != nil {
		return h.overrideError(c, id, err)
	}
	return c.JSON(http.StatusOK, toListingResponse(listing))
}

func (h *OpsHandler) overrideError(c echo.Context, id int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Listing not found"})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Listing changed concurrently, retry"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	h.log.Error("Listing request failed", "listing_id", id, "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal error"})
}

func listingID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func toListingResponse(l *domain.Listing) ListingResponse {
	resp := ListingResponse{
		ID:                   l.ID,
		Title:                l.Title,
		Status:               l.Status.String(),
		InitialAt:            l.InitialAt,
		EndAt:                l.EndAt,
		AuctionedAt:          l.AuctionedAt,
		PaymentWarningSentAt: l.PaymentWarningSentAt,
		CurrentWinnerBidID:   l.CurrentWinnerBidID,
		AuctionAttempt:       l.AuctionAttempt,
		UpdatedAt:            l.UpdatedAt,
	}
	if l.Seller != nil {
		resp.SellerID = l.Seller.ID
	}
	for _, b := range l.Bids {
		resp.Bids = append(resp.Bids, BidResponse{
			ID:        b.ID,
			BidderID:  b.BidderID,
			Amount:    b.Amount.StringFixed(2),
			CreatedAt: b.CreatedAt,
		})
	}
	return resp
}
