package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party is a bidder or seller as seen by the lifecycle core.
type Party struct {
	ID    int64
	Name  string
	Email string
	Phone string
}

// Bid is immutable once placed. IDs are assigned in placement order.
type Bid struct {
	ID        int64
	ListingID int64
	BidderID  int64
	Bidder    *Party
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type Listing struct {
	ID     int64
	Title  string
	Seller *Party

	InitialAt *time.Time
	EndAt     *time.Time
	Status    ListingStatus

	AuctionedAt          *time.Time
	PaymentWarningSentAt *time.Time
	CurrentWinnerBidID   *int64
	AuctionAttempt       int
	ExcludedBidders      []int64

	Bids      []Bid
	UpdatedAt time.Time
}

// ListingVersion is the optimistic concurrency token checked by ListingStore.Save.
type ListingVersion struct {
	Status         ListingStatus
	AuctionAttempt int
}

func (l *Listing) Version() ListingVersion {
	return ListingVersion{Status: l.Status, AuctionAttempt: l.AuctionAttempt}
}

func (l *Listing) IsExcluded(bidderID int64) bool {
	for _, id := range l.ExcludedBidders {
		if id == bidderID {
			return true
		}
	}
	return false
}

// CurrentWinningBid returns the bid referenced by CurrentWinnerBidID, if loaded.
func (l *Listing) CurrentWinningBid() *Bid {
	if l.CurrentWinnerBidID == nil {
		return nil
	}
	for i := range l.Bids {
		if l.Bids[i].ID == *l.CurrentWinnerBidID {
			return &l.Bids[i]
		}
	}
	return nil
}

// Clone copies the mutable lifecycle fields. Bids and parties are shared
// since the core never mutates them.
func (l *Listing) Clone() *Listing {
	c := *l
	c.AuctionedAt = copyTime(l.AuctionedAt)
	c.PaymentWarningSentAt = copyTime(l.PaymentWarningSentAt)
	if l.CurrentWinnerBidID != nil {
		id := *l.CurrentWinnerBidID
		c.CurrentWinnerBidID = &id
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
