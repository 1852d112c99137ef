package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-lifecycle/internal/domain"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func at(t time.Time) *time.Time { return &t }

func newBid(id, listingID, bidderID int64, amount string) domain.Bid {
	return domain.Bid{
		ID:        id,
		ListingID: listingID,
		BidderID:  bidderID,
		Bidder:    &domain.Party{ID: bidderID, Name: fmt.Sprintf("bidder-%d", bidderID)},
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: t0,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// memStore is a ListingStore with the same conditional write as the SQL stores.
type memStore struct {
	mu       sync.Mutex
	listings map[int64]*domain.Listing
	nextID   int64
	saves    int

	findErr  error
	saveErrs map[int64]error

	// undecodable listings are left out of FindActionable and reported.
	undecodable map[int64]bool
	// beforeSave runs with the lock released, letting tests race a write.
	beforeSave func(id int64)
}

func newMemStore(listings ...*domain.Listing) *memStore {
	s := &memStore{listings: make(map[int64]*domain.Listing), saveErrs: make(map[int64]error), nextID: 100}
	for _, l := range listings {
		s.listings[l.ID] = l.Clone()
	}
	return s
}

func (s *memStore) FindActionable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var (
		out     []*domain.Listing
		skipped []error
	)
	for _, l := range s.listings {
		if l.Status.IsTerminal() {
			continue
		}
		if s.undecodable[l.ID] {
			skipped = append(skipped, fmt.Errorf("listing %d: undecodable", l.ID))
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, domain.NewSkippedListingsError(skipped)
}

func (s *memStore) Save(ctx context.Context, listing *domain.Listing, expected domain.ListingVersion) error {
	if s.beforeSave != nil {
		s.beforeSave(listing.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveErrs[listing.ID]; err != nil {
		return err
	}
	stored, ok := s.listings[listing.ID]
	if !ok {
		return domain.ErrListingNotFound
	}
	if stored.Version() != expected {
		return domain.ErrConflict
	}
	s.listings[listing.ID] = listing.Clone()
	s.saves++
	return nil
}

func (s *memStore) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return l.Clone(), nil
}

func (s *memStore) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := l.Clone()
	c.ID = s.nextID
	s.listings[c.ID] = c
	return c.ID, nil
}

func (s *memStore) get(id int64) *domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[id].Clone()
}

type notification struct {
	kind      domain.LifecycleEventType
	listingID int64
	bidID     int64
	attempt   int
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []notification
	errs  map[domain.LifecycleEventType]error
	panic bool
	// wait, when set, is called inside every notification before recording it.
	wait func(ctx context.Context) error
}

func (n *fakeNotifier) record(ctx context.Context, kind domain.LifecycleEventType, listing *domain.Listing, bid *domain.Bid, attempt int) error {
	if n.panic {
		panic("notifier exploded")
	}
	if n.wait != nil {
		if err := n.wait(ctx); err != nil {
			return err
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errs[kind]; err != nil {
		return err
	}
	n.sent = append(n.sent, notification{kind: kind, listingID: listing.ID, bidID: bid.ID, attempt: attempt})
	return nil
}

func (n *fakeNotifier) NotifyWinner(ctx context.Context, listing *domain.Listing, bid *domain.Bid) error {
	return n.record(ctx, domain.EventWinnerSelected, listing, bid, 0)
}

func (n *fakeNotifier) NotifySecondChanceWinner(ctx context.Context, listing *domain.Listing, bid *domain.Bid, attemptNumber int) error {
	return n.record(ctx, domain.EventSecondChance, listing, bid, attemptNumber)
}

func (n *fakeNotifier) NotifyPaymentWarning(ctx context.Context, listing *domain.Listing, bid *domain.Bid) error {
	return n.record(ctx, domain.EventPaymentWarning, listing, bid, 0)
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notification, len(n.sent))
	copy(out, n.sent)
	return out
}

type fakeLease struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired []string
	released []string
}

func (l *fakeLease) Acquire(ctx context.Context, holderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquired = append(l.acquired, holderID)
	return l.grant, l.err
}

func (l *fakeLease) acquiredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.acquired)
}

func (l *fakeLease) Release(ctx context.Context, holderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, holderID)
	return nil
}

type memStates struct {
	mu       sync.Mutex
	statuses map[int64]domain.ListingStatus
}

func newMemStates() *memStates {
	return &memStates{statuses: make(map[int64]domain.ListingStatus)}
}

func (m *memStates) SetListingStatus(ctx context.Context, id int64, status domain.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *memStates) GetListingStatus(ctx context.Context, id int64) (domain.ListingStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return domain.ListingProgrammed, fmt.Errorf("listing %d not cached", id)
	}
	return s, nil
}
