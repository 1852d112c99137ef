package redis

import (
	"context"
	"errors"
	"time"

	"auction-lifecycle/internal/domain"
)

// EventNotifier implements domain.Notifier by publishing lifecycle events
// for the delivery channels to pick up.
type EventNotifier struct {
	publisher domain.EventPublisher
	now       func() time.Time
}

func NewEventNotifier(publisher domain.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher, now: time.Now}
}

func (n *EventNotifier) NotifyWinner(ctx context.Context, listing *domain.Listing, bid *domain.Bid) error {
	event := n.winnerEvent(domain.EventWinnerSelected, listing, bid)
	event.AttemptNumber = listing.AuctionAttempt + 1
	return n.publisher.PublishLifecycleEvent(ctx, event)
}

func (n *EventNotifier) NotifySecondChanceWinner(ctx context.Context, listing *domain.Listing, bid *domain.Bid, attemptNumber int) error {
	event := n.winnerEvent(domain.EventSecondChance, listing, bid)
	event.AttemptNumber = attemptNumber
	return n.publisher.PublishLifecycleEvent(ctx, event)
}

func (n *EventNotifier) NotifyPaymentWarning(ctx context.Context, listing *domain.Listing, winningBid *domain.Bid) error {
	if listing.Seller == nil {
		return errors.New("listing has no seller to warn")
	}
	event := n.winnerEvent(domain.EventPaymentWarning, listing, winningBid)
	event.RecipientID = listing.Seller.ID
	event.AttemptNumber = listing.AuctionAttempt + 1
	return n.publisher.PublishLifecycleEvent(ctx, event)
}

func (n *EventNotifier) winnerEvent(kind domain.LifecycleEventType, listing *domain.Listing, bid *domain.Bid) *domain.LifecycleEvent {
	event := &domain.LifecycleEvent{
		Type:         kind,
		ListingID:    listing.ID,
		ListingTitle: listing.Title,
		RecipientID:  bid.BidderID,
		WinnerID:     bid.BidderID,
		BidID:        bid.ID,
		Amount:       bid.Amount.StringFixed(2),
		Timestamp:    n.now().UTC(),
	}
	if bid.Bidder != nil {
		event.WinnerName = bid.Bidder.Name
	}
	return event
}
