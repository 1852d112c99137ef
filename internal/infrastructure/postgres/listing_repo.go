package postgres

import (
	"context"
	"fmt"
	"time"

	"auction-lifecycle/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const selectListing = `
	SELECT l.id, l.title, l.seller_id, s.name, s.email, s.phone,
		l.initial_at, l.end_at, l.status, l.auctioned_at, l.payment_warning_sent_at,
		l.current_winner_bid_id, l.auction_attempt, l.updated_at
	FROM listings l LEFT JOIN users s ON s.id = l.seller_id
`

type ListingRepo struct{ pool *pgxpool.Pool }

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo { return &ListingRepo{pool: pool} }

func (r *ListingRepo) FindActionable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	terminal := make([]string, 0, 3)
	for _, s := range domain.TerminalStatuses() {
		terminal = append(terminal, s.String())
	}

	rows, err := r.pool.Query(ctx, selectListing+`
		WHERE l.status <> ALL($1)
		  AND NOT (l.status = $2 AND (l.initial_at IS NULL OR l.initial_at > $3))
		ORDER BY l.id
	`, terminal, domain.ListingProgrammed.String(), now)
	if err != nil {
		return nil, err
	}
	listings, skipped, err := collectListings(rows)
	if err != nil {
		return nil, err
	}
	bad, err := r.attachBids(ctx, listings)
	if err != nil {
		return nil, err
	}
	listings, skipped = dropUndecodable(listings, bad, skipped)
	return listings, domain.NewSkippedListingsError(skipped)
}

func (r *ListingRepo) GetListing(ctx context.Context, listingID int64) (*domain.Listing, error) {
	rows, err := r.pool.Query(ctx, selectListing+`WHERE l.id=$1`, listingID)
	if err != nil {
		return nil, err
	}
	listings, skipped, err := collectListings(rows)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		return nil, skipped[0]
	}
	if len(listings) == 0 {
		return nil, domain.ErrListingNotFound
	}
	bad, err := r.attachBids(ctx, listings)
	if err != nil {
		return nil, err
	}
	if err := bad[listingID]; err != nil {
		return nil, err
	}
	return listings[0], nil
}

func (r *ListingRepo) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	var sellerID *int64
	if l.Seller != nil {
		id := l.Seller.ID
		sellerID = &id
	}

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO listings (title, seller_id, initial_at, end_at, status, auction_attempt, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, l.Title, sellerID, l.InitialAt, l.EndAt, l.Status.String(), l.AuctionAttempt, l.UpdatedAt).Scan(&id)
	return id, err
}

func (r *ListingRepo) Save(ctx context.Context, l *domain.Listing, expected domain.ListingVersion) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET status=$2, auctioned_at=$3, payment_warning_sent_at=$4,
			current_winner_bid_id=$5, auction_attempt=$6, updated_at=$7
		WHERE id=$1 AND status=$8 AND auction_attempt=$9
	`, l.ID, l.Status.String(), l.AuctionedAt, l.PaymentWarningSentAt,
		l.CurrentWinnerBidID, l.AuctionAttempt, l.UpdatedAt,
		expected.Status.String(), expected.AuctionAttempt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// InsertBid records a bid. The lifecycle core never places bids; fixtures
// and the integration tests use it.
func (r *ListingRepo) InsertBid(ctx context.Context, b domain.Bid) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bids (listing_id, bidder_id, amount, created_at)
		VALUES ($1,$2,$3::numeric,$4)
		RETURNING id
	`, b.ListingID, b.BidderID, b.Amount.String(), b.CreatedAt).Scan(&id)
	return id, err
}

// InsertUser is the user counterpart of InsertBid.
func (r *ListingRepo) InsertUser(ctx context.Context, p domain.Party) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, phone) VALUES ($1,$2,$3) RETURNING id`,
		p.Name, p.Email, p.Phone,
	).Scan(&id)
	return id, err
}

// collectListings returns the decoded listings and one error per row whose
// status could not be decoded.
func collectListings(rows pgx.Rows) ([]*domain.Listing, []error, error) {
	defer rows.Close()

	var (
		listings []*domain.Listing
		skipped  []error
	)
	for rows.Next() {
		var (
			l                       domain.Listing
			sellerID                *int64
			sellerName, sellerEmail *string
			sellerPhone             *string
			status                  string
		)
		if err := rows.Scan(&l.ID, &l.Title, &sellerID, &sellerName, &sellerEmail, &sellerPhone,
			&l.InitialAt, &l.EndAt, &status, &l.AuctionedAt, &l.PaymentWarningSentAt,
			&l.CurrentWinnerBidID, &l.AuctionAttempt, &l.UpdatedAt); err != nil {
			return nil, nil, err
		}

		var err error
		if l.Status, err = domain.ParseListingStatus(status); err != nil {
			skipped = append(skipped, fmt.Errorf("listing %d: %w", l.ID, err))
			continue
		}
		if sellerID != nil {
			l.Seller = &domain.Party{ID: *sellerID, Name: deref(sellerName), Email: deref(sellerEmail), Phone: deref(sellerPhone)}
		}
		listings = append(listings, &l)
	}
	return listings, skipped, rows.Err()
}

func dropUndecodable(listings []*domain.Listing, bad map[int64]error, skipped []error) ([]*domain.Listing, []error) {
	if len(bad) == 0 {
		return listings, skipped
	}
	kept := listings[:0]
	for _, l := range listings {
		if err, ok := bad[l.ID]; ok {
			skipped = append(skipped, err)
			continue
		}
		kept = append(kept, l)
	}
	return kept, skipped
}

// attachBids marks in the returned map every listing with a bid whose amount
// does not decode.
func (r *ListingRepo) attachBids(ctx context.Context, listings []*domain.Listing) (map[int64]error, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	byID := make(map[int64]*domain.Listing, len(listings))
	ids := make([]int64, 0, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.listing_id, b.bidder_id, u.id, u.name, u.email, u.phone, b.amount::text, b.created_at
		FROM bids b LEFT JOIN users u ON u.id = b.bidder_id
		WHERE b.listing_id = ANY($1)
		ORDER BY b.listing_id, b.id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	defer rows.Close()

	bad := make(map[int64]error)
	for rows.Next() {
		var (
			b                  domain.Bid
			bidderID, userID   *int64
			name, email, phone *string
			amount             string
		)
		if err := rows.Scan(&b.ID, &b.ListingID, &bidderID, &userID, &name, &email, &phone, &amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			if _, seen := bad[b.ListingID]; !seen {
				bad[b.ListingID] = fmt.Errorf("listing %d: bid %d amount: %w", b.ListingID, b.ID, err)
			}
			continue
		}
		if bidderID != nil {
			b.BidderID = *bidderID
		}
		if userID != nil {
			b.Bidder = &domain.Party{ID: *userID, Name: deref(name), Email: deref(email), Phone: deref(phone)}
		}
		if l, ok := byID[b.ListingID]; ok {
			l.Bids = append(l.Bids, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exRows, err := r.pool.Query(ctx,
		`SELECT listing_id, bidder_id FROM listing_excluded_bidders WHERE listing_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load excluded bidders: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var listingID, bidderID int64
		if err := exRows.Scan(&listingID, &bidderID); err != nil {
			return nil, err
		}
		if l, ok := byID[listingID]; ok {
			l.ExcludedBidders = append(l.ExcludedBidders, bidderID)
		}
	}
	return bad, exRows.Err()
}

// ExcludeBidder marks a bidder as ineligible for the listing.
func (r *ListingRepo) ExcludeBidder(ctx context.Context, listingID, bidderID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO listing_excluded_bidders (listing_id, bidder_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, listingID, bidderID)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.ListingStore = (*ListingRepo)(nil)
