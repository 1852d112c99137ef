package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type capturePublisher struct {
	events []*domain.LifecycleEvent
}

func (c *capturePublisher) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	c.events = append(c.events, event)
	return nil
}

func testListing() (*domain.Listing, *domain.Bid) {
	winner := int64(7)
	l := &domain.Listing{
		ID:                 3,
		Title:              "Lamp",
		Seller:             &domain.Party{ID: 500, Name: "Sam"},
		Status:             domain.ListingAuctioned,
		AuctionAttempt:     1,
		CurrentWinnerBidID: &winner,
	}
	bid := &domain.Bid{
		ID:        7,
		ListingID: 3,
		BidderID:  42,
		Bidder:    &domain.Party{ID: 42, Name: "Ann"},
		Amount:    decimal.RequireFromString("100.5"),
	}
	return l, bid
}

func TestEventNotifier(t *testing.T) {
	pub := &capturePublisher{}
	n := NewEventNotifier(pub)
	fixed := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }
	ctx := context.Background()
	l, bid := testListing()

	require.NoError(t, n.NotifyWinner(ctx, l, bid))
	require.NoError(t, n.NotifySecondChanceWinner(ctx, l, bid, 2))
	require.NoError(t, n.NotifyPaymentWarning(ctx, l, bid))
	require.Len(t, pub.events, 3)

	won := pub.events[0]
	assert.Equal(t, domain.EventWinnerSelected, won.Type)
	assert.Equal(t, int64(42), won.RecipientID)
	assert.Equal(t, "100.50", won.Amount)
	assert.Equal(t, "Ann", won.WinnerName)
	assert.Equal(t, 2, won.AttemptNumber)
	assert.Equal(t, fixed, won.Timestamp)

	assert.Equal(t, domain.EventSecondChance, pub.events[1].Type)
	assert.Equal(t, 2, pub.events[1].AttemptNumber)

	warn := pub.events[2]
	assert.Equal(t, domain.EventPaymentWarning, warn.Type)
	assert.Equal(t, int64(500), warn.RecipientID)
	assert.Equal(t, int64(42), warn.WinnerID)

	l.Seller = nil
	require.Error(t, n.NotifyPaymentWarning(ctx, l, bid))
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := newClient(t)
	log := logger.NewNop()
	pub := NewRedisEventPublisher(client, "")
	sub := NewRedisEventSubscriber(client, DefaultChannel, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []*domain.LifecycleEvent
	done := make(chan error, 1)
	go func() {
		done <- sub.SubscribeToLifecycleEvents(ctx, func(e *domain.LifecycleEvent) error {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
			return nil
		})
	}()

	// publish until the subscription is live
	event := &domain.LifecycleEvent{Type: domain.EventWinnerSelected, ListingID: 3, RecipientID: 42, Amount: "100.50"}
	require.Eventually(t, func() bool {
		_ = pub.PublishLifecycleEvent(context.Background(), event)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 50*time.Millisecond)

	mu.Lock()
	assert.Equal(t, int64(3), got[0].ListingID)
	assert.Equal(t, "100.50", got[0].Amount)
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestParseEvent(t *testing.T) {
	payload, err := json.Marshal(domain.LifecycleEvent{Type: domain.EventSecondChance, ListingID: 1, AttemptNumber: 2})
	require.NoError(t, err)

	e, err := parseEvent(string(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, e.AttemptNumber)

	_, err = parseEvent(`{"listing_id":1}`)
	require.Error(t, err)
	_, err = parseEvent(`not json`)
	require.Error(t, err)
}

func TestStateCache(t *testing.T) {
	client, mr := newClient(t)
	cache := NewRedisStateCache(client)
	ctx := context.Background()

	_, err := cache.GetListingStatus(ctx, 9)
	require.ErrorIs(t, err, ErrStatusNotCached)

	require.NoError(t, cache.SetListingStatus(ctx, 9, domain.ListingWaitingPayment))
	status, err := cache.GetListingStatus(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingWaitingPayment, status)

	raw, err := mr.Get("listing:9:status")
	require.NoError(t, err)
	assert.Equal(t, "waiting_payment", raw)
}
