package services

import (
	"context"
	"fmt"
	"strconv"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"
)

// EventListener delivers published lifecycle events to connected users.
type EventListener struct {
	userNotifier domain.UserNotifier
	broadcaster  domain.ListingBroadcaster
	log          logger.Logger
}

func NewEventListener(userNotifier domain.UserNotifier, broadcaster domain.ListingBroadcaster,
	log logger.Logger) *EventListener {
	return &EventListener{
		userNotifier: userNotifier,
		broadcaster:  broadcaster,
		log:          log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting lifecycle event listener")
	return subscriber.SubscribeToLifecycleEvents(ctx, el.HandleEvent)
}

func (el *EventListener) HandleEvent(event *domain.LifecycleEvent) error {
	el.log.Info("Handling lifecycle event", "type", event.Type, "listing_id", event.ListingID)

	switch event.Type {
	case domain.EventWinnerSelected:
		return el.handleWinnerSelected(event)
	case domain.EventSecondChance:
		return el.handleSecondChance(event)
	case domain.EventPaymentWarning:
		return el.handlePaymentWarning(event)
	}

	return fmt.Errorf("unknown lifecycle event type %q", event.Type)
}

func (el *EventListener) handleWinnerSelected(event *domain.LifecycleEvent) error {
	ctx := context.Background()
	if err := el.userNotifier.NotifyUser(ctx, userKey(event.RecipientID), map[string]interface{}{
		"type":       "auction_won",
		"listing_id": event.ListingID,
		"title":      event.ListingTitle,
		"bid_id":     event.BidID,
		"amount":     event.Amount,
		"timestamp":  event.Timestamp,
	}); err != nil {
		return err
	}

	return el.broadcaster.BroadcastToListing(ctx, listingKey(event.ListingID), map[string]interface{}{
		"type":       "auction_closed",
		"listing_id": event.ListingID,
		"amount":     event.Amount,
		"timestamp":  event.Timestamp,
	})
}

func (el *EventListener) handleSecondChance(event *domain.LifecycleEvent) error {
	ctx := context.Background()
	if err := el.userNotifier.NotifyUser(ctx, userKey(event.RecipientID), map[string]interface{}{
		"type":           "second_chance",
		"listing_id":     event.ListingID,
		"title":          event.ListingTitle,
		"bid_id":         event.BidID,
		"amount":         event.Amount,
		"attempt_number": event.AttemptNumber,
		"timestamp":      event.Timestamp,
	}); err != nil {
		return err
	}

	return el.broadcaster.BroadcastToListing(ctx, listingKey(event.ListingID), map[string]interface{}{
		"type":           "winner_changed",
		"listing_id":     event.ListingID,
		"attempt_number": event.AttemptNumber,
		"timestamp":      event.Timestamp,
	})
}

func (el *EventListener) handlePaymentWarning(event *domain.LifecycleEvent) error {
	return el.userNotifier.NotifyUser(context.Background(), userKey(event.RecipientID), map[string]interface{}{
		"type":        "payment_pending",
		"listing_id":  event.ListingID,
		"title":       event.ListingTitle,
		"winner_id":   event.WinnerID,
		"winner_name": event.WinnerName,
		"amount":      event.Amount,
		"timestamp":   event.Timestamp,
	})
}

func userKey(id int64) string    { return strconv.FormatInt(id, 10) }
func listingKey(id int64) string { return strconv.FormatInt(id, 10) }
