package services

import (
	"testing"
	"time"

	"auction-lifecycle/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatus(t *testing.T) {
	t.Parallel()
	start := t0
	end := t0.Add(time.Hour)

	for _, tc := range []struct {
		name      string
		status    domain.ListingStatus
		initialAt *time.Time
		endAt     *time.Time
		now       time.Time
		want      domain.ListingStatus
	}{
		{"undated stays programmed", domain.ListingProgrammed, nil, at(end), end.Add(time.Hour), domain.ListingProgrammed},
		{"before start", domain.ListingProgrammed, at(start), at(end), start.Add(-time.Second), domain.ListingProgrammed},
		{"at start", domain.ListingProgrammed, at(start), at(end), start, domain.ListingActive},
		{"open ended", domain.ListingActive, at(start), nil, start.Add(1000 * time.Hour), domain.ListingActive},
		{"within window", domain.ListingActive, at(start), at(end), start.Add(30 * time.Minute), domain.ListingActive},
		{"exactly at end", domain.ListingActive, at(start), at(end), end, domain.ListingActive},
		{"after end", domain.ListingActive, at(start), at(end), end.Add(time.Second), domain.ListingEnded},
		{"programmed observed after end", domain.ListingProgrammed, at(start), at(end), end.Add(time.Minute), domain.ListingEnded},
		{"auctioned kept", domain.ListingAuctioned, at(start), at(end), end.Add(time.Hour), domain.ListingAuctioned},
		{"waiting kept", domain.ListingWaitingPayment, at(start), at(end), end.Add(time.Hour), domain.ListingWaitingPayment},
		{"paid kept", domain.ListingPaid, at(start), at(end), end.Add(time.Hour), domain.ListingPaid},
		{"finished kept", domain.ListingFinished, at(start), at(end), end.Add(time.Hour), domain.ListingFinished},
		{"disabled kept", domain.ListingDisabled, at(start), at(end), start.Add(time.Minute), domain.ListingDisabled},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := &domain.Listing{Status: tc.status, InitialAt: tc.initialAt, EndAt: tc.endAt}
			assert.Equal(t, tc.want, ComputeStatus(l, tc.now))
		})
	}
}

func TestComputeStatusNonRegression(t *testing.T) {
	t.Parallel()
	end := t0.Add(time.Hour)
	nows := []time.Time{t0.Add(-48 * time.Hour), t0, t0.Add(time.Minute), end, end.Add(time.Second), end.Add(1000 * time.Hour)}

	for _, status := range []domain.ListingStatus{
		domain.ListingAuctioned, domain.ListingWaitingPayment, domain.ListingPaid, domain.ListingFinished,
	} {
		l := &domain.Listing{Status: status, InitialAt: at(t0), EndAt: at(end)}
		for _, now := range nows {
			assert.Equal(t, status, ComputeStatus(l, now), "status %s at %s", status, now)
		}
	}
}

func TestComputeStatusMonotonic(t *testing.T) {
	t.Parallel()
	end := t0.Add(time.Hour)
	rank := map[domain.ListingStatus]int{
		domain.ListingProgrammed: 0,
		domain.ListingActive:     1,
		domain.ListingEnded:      2,
	}

	for _, l := range []*domain.Listing{
		{Status: domain.ListingProgrammed, InitialAt: at(t0), EndAt: at(end)},
		{Status: domain.ListingActive, InitialAt: at(t0), EndAt: at(end)},
		{Status: domain.ListingActive, InitialAt: at(t0)},
		{Status: domain.ListingProgrammed},
	} {
		prev := -1
		for now := t0.Add(-2 * time.Hour); now.Before(end.Add(2 * time.Hour)); now = now.Add(7 * time.Minute) {
			r := rank[ComputeStatus(l, now)]
			assert.GreaterOrEqual(t, r, prev)
			prev = r
		}
	}
}

func TestInitialStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.ListingProgrammed, InitialStatus(nil, t0))
	assert.Equal(t, domain.ListingProgrammed, InitialStatus(at(t0.Add(time.Second)), t0))
	assert.Equal(t, domain.ListingActive, InitialStatus(at(t0), t0))
	assert.Equal(t, domain.ListingActive, InitialStatus(at(t0.Add(-time.Hour)), t0))
}
