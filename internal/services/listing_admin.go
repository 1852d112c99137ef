package services

import (
	"context"
	"fmt"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"
)

type NewListing struct {
	Title     string
	SellerID  int64
	InitialAt *time.Time
	EndAt     *time.Time
}

// ListingAdmin applies the changes made outside the lifecycle driver:
// creation, manual disable and payment confirmation.
type ListingAdmin struct {
	store  domain.ListingStore
	states domain.ListingStateCache
	clock  domain.Clock
	log    logger.Logger
}

func NewListingAdmin(store domain.ListingStore, clock domain.Clock, log logger.Logger) *ListingAdmin {
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &ListingAdmin{store: store, clock: clock, log: log}
}

// SetStateCache mirrors committed overrides into cache.
func (a *ListingAdmin) SetStateCache(cache domain.ListingStateCache) {
	a.states = cache
}

func (a *ListingAdmin) Create(ctx context.Context, req NewListing) (*domain.Listing, error) {
	if req.InitialAt != nil && req.EndAt != nil && !req.EndAt.After(*req.InitialAt) {
		return nil, fmt.Errorf("end must be after start")
	}

	now := a.clock.Now()
	listing := &domain.Listing{
		Title:     req.Title,
		InitialAt: req.InitialAt,
		EndAt:     req.EndAt,
		Status:    InitialStatus(req.InitialAt, now),
		UpdatedAt: now,
	}
	if req.SellerID != 0 {
		listing.Seller = &domain.Party{ID: req.SellerID}
	}

	id, err := a.store.CreateListing(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	listing.ID = id

	a.cacheStatus(ctx, listing)
	a.log.Info("Listing created", "listing_id", id, "status", listing.Status.String())
	return listing, nil
}

func (a *ListingAdmin) Get(ctx context.Context, listingID int64) (*domain.Listing, error) {
	return a.store.GetListing(ctx, listingID)
}

// Disable takes a listing out of the lifecycle from any non-terminal status.
func (a *ListingAdmin) Disable(ctx context.Context, listingID int64) (*domain.Listing, error) {
	return a.transition(ctx, listingID, domain.ListingDisabled)
}

// MarkPaid records payment confirmation for the current winner.
func (a *ListingAdmin) MarkPaid(ctx context.Context, listingID int64) (*domain.Listing, error) {
	return a.transition(ctx, listingID, domain.ListingPaid)
}

func (a *ListingAdmin) transition(ctx context.Context, listingID int64, to domain.ListingStatus) (*domain.Listing, error) {
	listing, err := a.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(listing.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, listing.Status, to)
	}

	next := listing.Clone()
	next.Status = to
	next.UpdatedAt = a.clock.Now()
	if err := a.store.Save(ctx, next, listing.Version()); err != nil {
		return nil, fmt.Errorf("save listing %d: %w", listingID, err)
	}

	a.cacheStatus(ctx, next)
	a.log.Info("Listing status overridden", "listing_id", listingID,
		"from", listing.Status.String(), "to", to.String())
	return next, nil
}

func (a *ListingAdmin) cacheStatus(ctx context.Context, listing *domain.Listing) {
	if a.states == nil {
		return
	}
	if err := a.states.SetListingStatus(ctx, listing.ID, listing.Status); err != nil {
		a.log.Warn("Failed to cache listing status", "listing_id", listing.ID, "error", err)
	}
}
