package services

import (
	"time"

	"auction-lifecycle/internal/domain"
)

// ComputeStatus returns the status a listing should have at now according to
// its scheduled window. Post-auction statuses and disabled are never changed
// by the window, whatever now is.
func ComputeStatus(listing *domain.Listing, now time.Time) domain.ListingStatus {
	if listing.Status.IsPostAuction() || listing.Status == domain.ListingDisabled {
		return listing.Status
	}
	if listing.InitialAt == nil {
		return domain.ListingProgrammed
	}
	if now.Before(*listing.InitialAt) {
		return domain.ListingProgrammed
	}
	if listing.EndAt == nil {
		return domain.ListingActive
	}
	if now.After(*listing.EndAt) {
		return domain.ListingEnded
	}
	return domain.ListingActive
}

// InitialStatus decides, once at creation, whether a new listing starts
// programmed or active.
func InitialStatus(initialAt *time.Time, now time.Time) domain.ListingStatus {
	if initialAt == nil || now.Before(*initialAt) {
		return domain.ListingProgrammed
	}
	return domain.ListingActive
}
