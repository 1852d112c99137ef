package services

import (
	"testing"

	"auction-lifecycle/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(bids []*domain.Bid) []int64 {
	out := make([]int64, 0, len(bids))
	for _, b := range bids {
		out = append(out, b.ID)
	}
	return out
}

func TestRankBids(t *testing.T) {
	t.Parallel()
	orphan := newBid(5, 1, 9, "500")
	orphan.Bidder = nil

	l := &domain.Listing{
		ID: 1,
		Bids: []domain.Bid{
			newBid(1, 1, 10, "80"),
			newBid(2, 1, 11, "100"),
			newBid(3, 1, 12, "100.00"),
			newBid(4, 1, 13, "120"),
			orphan,
			newBid(6, 2, 14, "900"),
			newBid(7, 1, 15, "99.99"),
		},
		ExcludedBidders: []int64{13},
	}

	assert.Equal(t, []int64{2, 3, 7, 1}, ids(RankBids(l)))
	// input order untouched
	assert.Equal(t, int64(1), l.Bids[0].ID)
	assert.Equal(t, int64(4), l.Bids[3].ID)
}

func TestResolveWinner(t *testing.T) {
	t.Parallel()
	l := &domain.Listing{
		ID:   1,
		Bids: []domain.Bid{newBid(1, 1, 10, "80"), newBid(2, 1, 11, "100")},
	}

	for _, tc := range []struct {
		attempt int
		want    int64
	}{
		{0, 2},
		{1, 1},
		{2, 0},
		{-1, 0},
	} {
		got := ResolveWinner(l, tc.attempt)
		if tc.want == 0 {
			assert.Nil(t, got, "attempt %d", tc.attempt)
			continue
		}
		require.NotNil(t, got, "attempt %d", tc.attempt)
		assert.Equal(t, tc.want, got.ID)
	}
}

func TestResolveWinnerDeterministic(t *testing.T) {
	t.Parallel()
	l := &domain.Listing{
		ID: 1,
		Bids: []domain.Bid{
			newBid(9, 1, 1, "50"), newBid(3, 1, 2, "50"), newBid(7, 1, 3, "50"), newBid(1, 1, 4, "10"),
		},
	}

	first := ResolveWinner(l, 0)
	require.NotNil(t, first)
	assert.Equal(t, int64(3), first.ID)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.ID, ResolveWinner(l, 0).ID)
		assert.Equal(t, int64(7), ResolveWinner(l, 1).ID)
		assert.Equal(t, int64(9), ResolveWinner(l, 2).ID)
	}
}

func TestResolveWinnerNeverReturnsExcluded(t *testing.T) {
	t.Parallel()
	l := &domain.Listing{
		ID: 1,
		Bids: []domain.Bid{
			newBid(1, 1, 10, "300"), newBid(2, 1, 11, "200"), newBid(3, 1, 10, "150"), newBid(4, 1, 12, "100"),
		},
		ExcludedBidders: []int64{10},
	}

	for attempt := 0; attempt < len(l.Bids)+2; attempt++ {
		if b := ResolveWinner(l, attempt); b != nil {
			assert.NotEqual(t, int64(10), b.BidderID)
		}
	}
	assert.Nil(t, ResolveWinner(l, 2))
}
