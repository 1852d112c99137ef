package services

import (
	"sort"

	"auction-lifecycle/internal/domain"
)

// RankBids returns the eligible bids of a listing, highest amount first.
// Equal amounts are ordered by bid id, so the earlier bid ranks higher.
// Bids without a resolvable bidder, bids of other listings and bids from
// excluded bidders are left out. The listing is not modified.
func RankBids(listing *domain.Listing) []*domain.Bid {
	eligible := make([]*domain.Bid, 0, len(listing.Bids))
	for i := range listing.Bids {
		bid := &listing.Bids[i]
		if bid.Bidder == nil || bid.ListingID != listing.ID {
			continue
		}
		if listing.IsExcluded(bid.BidderID) {
			continue
		}
		eligible = append(eligible, bid)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if c := eligible[i].Amount.Cmp(eligible[j].Amount); c != 0 {
			return c > 0
		}
		return eligible[i].ID < eligible[j].ID
	})
	return eligible
}

// ResolveWinner returns the bid ranked at attempt, or nil when the ranking
// has no such position.
func ResolveWinner(listing *domain.Listing, attempt int) *domain.Bid {
	if attempt < 0 {
		return nil
	}
	ranked := RankBids(listing)
	if attempt >= len(ranked) {
		return nil
	}
	return ranked[attempt]
}
