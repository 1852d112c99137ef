package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"auction-lifecycle/internal/domain"
	"auction-lifecycle/pkg/logger"
	"auction-lifecycle/pkg/utils"

	"golang.org/x/sync/errgroup"
)

type DriverConfig struct {
	PaymentGraceInterval time.Duration
	WarningInterval      time.Duration
	FallbackInterval     time.Duration
	NotifyTimeout        time.Duration
	StoreTimeout         time.Duration
	Workers              int
	InstanceID           string

	// LeaseRenewInterval is how often a held lease is renewed during a
	// pass. Zero disables renewal.
	LeaseRenewInterval time.Duration
}

// PassStats summarizes one execution of the lifecycle driver.
type PassStats struct {
	PassID               string        `json:"pass_id"`
	StartedAt            time.Time     `json:"started_at"`
	Duration             time.Duration `json:"duration"`
	Examined             int64         `json:"examined"`
	Updated              int64         `json:"updated"`
	Transitioned         int64         `json:"transitioned"`
	Conflicts            int64         `json:"conflicts"`
	StoreFailures        int64         `json:"store_failures"`
	NotificationsSent    int64         `json:"notifications_sent"`
	NotificationFailures int64         `json:"notification_failures"`
}

type passCounters struct {
	examined             atomic.Int64
	updated              atomic.Int64
	transitioned         atomic.Int64
	conflicts            atomic.Int64
	storeFailures        atomic.Int64
	notificationsSent    atomic.Int64
	notificationFailures atomic.Int64
}

type pendingNotification struct {
	kind    domain.LifecycleEventType
	bid     *domain.Bid
	attempt int
}

// listingPlan is the outcome of evaluating one listing at a pass instant.
type listingPlan struct {
	next          *domain.Listing
	changed       bool
	notifications []pendingNotification
}

type LifecycleDriver struct {
	store    domain.ListingStore
	notifier domain.Notifier
	lease    domain.PassLease
	states   domain.ListingStateCache
	clock    domain.Clock
	cfg      DriverConfig
	log      logger.Logger

	running atomic.Bool

	lastMutex sync.RWMutex
	last      *PassStats
}

func NewLifecycleDriver(
	store domain.ListingStore,
	notifier domain.Notifier,
	clock domain.Clock,
	cfg DriverConfig,
	log logger.Logger,
) *LifecycleDriver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if clock == nil {
		clock = domain.ClockFunc(time.Now)
	}
	return &LifecycleDriver{
		store:    store,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		log:      log,
	}
}

// SetPassLease makes every pass hold lease for the configured instance id.
func (d *LifecycleDriver) SetPassLease(lease domain.PassLease) {
	d.lease = lease
}

// SetStateCache mirrors every committed status into cache.
func (d *LifecycleDriver) SetStateCache(cache domain.ListingStateCache) {
	d.states = cache
}

// LastPass returns the statistics of the most recent completed pass.
func (d *LifecycleDriver) LastPass() *PassStats {
	d.lastMutex.RLock()
	defer d.lastMutex.RUnlock()
	if d.last == nil {
		return nil
	}
	stats := *d.last
	return &stats
}

// RunPass evaluates every actionable listing once. It returns
// domain.ErrPassInFlight without doing anything if another pass is running.
// Cancelling ctx does not interrupt a pass that has started.
func (d *LifecycleDriver) RunPass(ctx context.Context) (*PassStats, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, domain.ErrPassInFlight
	}
	defer d.running.Store(false)

	ctx = context.WithoutCancel(ctx)

	if d.lease != nil {
		held, err := d.lease.Acquire(ctx, d.cfg.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("acquire pass lease: %w", err)
		}
		if !held {
			return nil, domain.ErrLeaseNotHeld
		}
		stopRenew := d.renewLease(ctx)
		defer func() {
			stopRenew()
			if err := d.lease.Release(ctx, d.cfg.InstanceID); err != nil {
				d.log.Warn("Failed to release pass lease", "instance_id", d.cfg.InstanceID, "error", err)
			}
		}()
	}

	now := d.clock.Now()
	stats := &PassStats{
		PassID:    utils.GenerateID("pass"),
		StartedAt: now,
	}
	log := d.log.With("pass_id", stats.PassID)
	started := time.Now()

	var counters passCounters
	err := d.runListings(ctx, now, &counters, log)

	stats.Duration = time.Since(started)
	stats.Examined = counters.examined.Load()
	stats.Updated = counters.updated.Load()
	stats.Transitioned = counters.transitioned.Load()
	stats.Conflicts = counters.conflicts.Load()
	stats.StoreFailures = counters.storeFailures.Load()
	stats.NotificationsSent = counters.notificationsSent.Load()
	stats.NotificationFailures = counters.notificationFailures.Load()

	d.lastMutex.Lock()
	d.last = stats
	d.lastMutex.Unlock()

	return stats, err
}

// renewLease keeps the lease alive while a pass runs. The returned func
// stops renewal and waits for the renewing goroutine to exit.
func (d *LifecycleDriver) renewLease(ctx context.Context) func() {
	if d.cfg.LeaseRenewInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(d.cfg.LeaseRenewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := d.lease.Acquire(ctx, d.cfg.InstanceID)
				switch {
				case err != nil:
					d.log.Warn("Failed to renew pass lease", "instance_id", d.cfg.InstanceID, "error", err)
				case !held:
					d.log.Error("Pass lease taken by another instance during pass", "instance_id", d.cfg.InstanceID)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func (d *LifecycleDriver) runListings(ctx context.Context, now time.Time, counters *passCounters, log logger.Logger) error {
	loadCtx, cancel := d.storeContext(ctx)
	listings, err := d.store.FindActionable(loadCtx, now)
	cancel()
	var skipped *domain.SkippedListingsError
	switch {
	case errors.As(err, &skipped):
		counters.storeFailures.Add(int64(skipped.Skipped()))
		log.Error("Skipping undecodable listings", "count", skipped.Skipped(), "error", err)
	case err != nil:
		counters.storeFailures.Add(1)
		return fmt.Errorf("load actionable listings: %w", err)
	}

	log.Info("Checking listings", "count", len(listings), "now", now)

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for _, listing := range listings {
		listing := listing
		g.Go(func() error {
			d.processListing(ctx, listing, now, counters, log)
			return nil
		})
	}
	return g.Wait()
}

func (d *LifecycleDriver) processListing(ctx context.Context, listing *domain.Listing, now time.Time,
	counters *passCounters, log logger.Logger) {
	counters.examined.Add(1)

	if listing.Status.IsTerminal() {
		return
	}

	plan := d.planListing(listing, now, log)
	if !plan.changed {
		return
	}

	plan.next.UpdatedAt = now
	saveCtx, cancel := d.storeContext(ctx)
	err := d.store.Save(saveCtx, plan.next, listing.Version())
	cancel()

	if errors.Is(err, domain.ErrConflict) {
		counters.conflicts.Add(1)
		log.Info("Listing changed concurrently, skipping until next pass", "listing_id", listing.ID)
		return
	}
	if err != nil {
		counters.storeFailures.Add(1)
		log.Error("Failed to save listing", "listing_id", listing.ID, "error", err)
		return
	}

	counters.updated.Add(1)
	if plan.next.Status != listing.Status {
		counters.transitioned.Add(1)
		log.Info("Listing status updated", "listing_id", listing.ID,
			"from", listing.Status.String(), "to", plan.next.Status.String(),
			"auction_attempt", plan.next.AuctionAttempt)
	}

	if d.states != nil {
		cacheCtx, cancel := d.storeContext(ctx)
		if err := d.states.SetListingStatus(cacheCtx, listing.ID, plan.next.Status); err != nil {
			log.Warn("Failed to cache listing status", "listing_id", listing.ID, "error", err)
		}
		cancel()
	}

	for _, n := range plan.notifications {
		if err := d.dispatch(ctx, plan.next, n); err != nil {
			counters.notificationFailures.Add(1)
			log.Error("Failed to send notification", "listing_id", listing.ID,
				"type", string(n.kind), "bid_id", n.bid.ID, "error", err)
			continue
		}
		counters.notificationsSent.Add(1)
	}
}

// planListing decides the writes and notifications for one listing. It only
// reads listing and never performs I/O.
func (d *LifecycleDriver) planListing(listing *domain.Listing, now time.Time, log logger.Logger) listingPlan {
	plan := listingPlan{next: listing.Clone()}

	target := ComputeStatus(listing, now)
	if target != listing.Status && target != domain.ListingAuctioned {
		if domain.CanTransition(listing.Status, target) {
			plan.next.Status = target
			plan.changed = true
		} else {
			log.Warn("Ignoring backward schedule transition", "listing_id", listing.ID,
				"from", listing.Status.String(), "to", target.String())
		}
	}

	switch listing.Status {
	case domain.ListingEnded:
		d.planEnded(listing, now, &plan, log)
	case domain.ListingAuctioned:
		d.planAuctioned(listing, now, &plan)
	case domain.ListingWaitingPayment:
		d.planWaitingPayment(listing, now, &plan, log)
	}

	return plan
}

func (d *LifecycleDriver) planEnded(listing *domain.Listing, now time.Time, plan *listingPlan, log logger.Logger) {
	winning := ResolveWinner(listing, listing.AuctionAttempt)
	if winning == nil {
		log.Debug("Listing ended without an eligible bid", "listing_id", listing.ID)
		return
	}

	bidID := winning.ID
	at := now
	plan.next.Status = domain.ListingAuctioned
	plan.next.AuctionedAt = &at
	plan.next.CurrentWinnerBidID = &bidID
	plan.changed = true
	plan.notifications = append(plan.notifications, pendingNotification{
		kind: domain.EventWinnerSelected,
		bid:  winning,
	})
}

func (d *LifecycleDriver) planAuctioned(listing *domain.Listing, now time.Time, plan *listingPlan) {
	if listing.AuctionedAt == nil {
		return
	}
	if now.Sub(*listing.AuctionedAt) >= d.cfg.PaymentGraceInterval {
		plan.next.Status = domain.ListingWaitingPayment
		plan.changed = true
	}
}

func (d *LifecycleDriver) planWaitingPayment(listing *domain.Listing, now time.Time, plan *listingPlan, log logger.Logger) {
	if listing.AuctionedAt == nil {
		return
	}
	elapsed := now.Sub(*listing.AuctionedAt)

	if elapsed >= d.cfg.WarningInterval && listing.PaymentWarningSentAt == nil {
		at := now
		plan.next.PaymentWarningSentAt = &at
		plan.changed = true
		if winning := listing.CurrentWinningBid(); winning != nil {
			plan.notifications = append(plan.notifications, pendingNotification{
				kind: domain.EventPaymentWarning,
				bid:  winning,
			})
		} else {
			log.Warn("Current winning bid not found, payment warning not sent", "listing_id", listing.ID)
		}
	}

	if elapsed < d.cfg.FallbackInterval {
		return
	}

	nextAttempt := listing.AuctionAttempt + 1
	next := ResolveWinner(listing, nextAttempt)
	if next == nil {
		plan.next.Status = domain.ListingFinished
		plan.changed = true
		log.Info("No bids left for fallback, finishing listing", "listing_id", listing.ID,
			"auction_attempt", listing.AuctionAttempt)
		return
	}

	bidID := next.ID
	at := now
	plan.next.Status = domain.ListingAuctioned
	plan.next.AuctionAttempt = nextAttempt
	plan.next.CurrentWinnerBidID = &bidID
	plan.next.AuctionedAt = &at
	plan.next.PaymentWarningSentAt = nil
	plan.changed = true
	plan.notifications = append(plan.notifications, pendingNotification{
		kind:    domain.EventSecondChance,
		bid:     next,
		attempt: nextAttempt + 1,
	})
}

func (d *LifecycleDriver) dispatch(ctx context.Context, listing *domain.Listing, n pendingNotification) error {
	timeout := d.cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		switch n.kind {
		case domain.EventWinnerSelected:
			result <- d.notifier.NotifyWinner(ctx, listing, n.bid)
		case domain.EventSecondChance:
			result <- d.notifier.NotifySecondChanceWinner(ctx, listing, n.bid, n.attempt)
		case domain.EventPaymentWarning:
			result <- d.notifier.NotifyPaymentWarning(ctx, listing, n.bid)
		default:
			result <- fmt.Errorf("unknown notification %q", n.kind)
		}
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notification timed out: %w", ctx.Err())
	}
}

func (d *LifecycleDriver) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.StoreTimeout)
}
