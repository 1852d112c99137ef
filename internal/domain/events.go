package domain

import (
	"context"
	"time"
)

type LifecycleEventType string

const (
	EventWinnerSelected LifecycleEventType = "winner_selected"
	EventSecondChance   LifecycleEventType = "second_chance"
	EventPaymentWarning LifecycleEventType = "payment_warning"
)

// LifecycleEvent is the wire form of a notification published by the driver.
type LifecycleEvent struct {
	Type          LifecycleEventType `json:"type"`
	ListingID     int64              `json:"listing_id"`
	ListingTitle  string             `json:"listing_title"`
	RecipientID   int64              `json:"recipient_id"`
	WinnerID      int64              `json:"winner_id"`
	WinnerName    string             `json:"winner_name,omitempty"`
	BidID         int64              `json:"bid_id"`
	Amount        string             `json:"amount"`
	AttemptNumber int                `json:"attempt_number"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Event interfaces
type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event *LifecycleEvent) error
}

type EventSubscriber interface {
	SubscribeToLifecycleEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *LifecycleEvent) error
