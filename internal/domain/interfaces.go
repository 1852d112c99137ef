package domain

import (
	"context"
	"time"
)

// ListingStore is the durable state consumed by the lifecycle core.
type ListingStore interface {
	// FindActionable returns every non-terminal listing that may change at
	// now, with bids, bidders and excluded bidders loaded. Rows that fail to
	// decode are left out and reported through a *SkippedListingsError
	// returned alongside the listings that did decode.
	FindActionable(ctx context.Context, now time.Time) ([]*Listing, error)
	// Save writes the lifecycle fields of listing if the stored row still
	// matches expected. Returns ErrConflict otherwise.
	Save(ctx context.Context, listing *Listing, expected ListingVersion) error
	GetListing(ctx context.Context, listingID int64) (*Listing, error)
	CreateListing(ctx context.Context, listing *Listing) (int64, error)
}

// Notifier is the outbound winner/seller notification gateway.
type Notifier interface {
	NotifyWinner(ctx context.Context, listing *Listing, bid *Bid) error
	NotifySecondChanceWinner(ctx context.Context, listing *Listing, bid *Bid, attemptNumber int) error
	NotifyPaymentWarning(ctx context.Context, listing *Listing, winningBid *Bid) error
}

// PassLease is a single-writer token held for the duration of a pass.
type PassLease interface {
	Acquire(ctx context.Context, holderID string) (bool, error)
	Release(ctx context.Context, holderID string) error
}

// Clock supplies the instant captured at the start of a pass.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type ListingBroadcaster interface {
	BroadcastToListing(ctx context.Context, listingID string, message interface{}) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ListingID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, listingID string, conn WebSocketConnection) error
	UnregisterConnection(userID, listingID string) error
	GetConnectionsForListing(listingID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToListing(listingID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(listingID string) error
}

// ListingStateCache mirrors committed listing statuses for fast reads.
type ListingStateCache interface {
	SetListingStatus(ctx context.Context, listingID int64, status ListingStatus) error
	GetListingStatus(ctx context.Context, listingID int64) (ListingStatus, error)
}
