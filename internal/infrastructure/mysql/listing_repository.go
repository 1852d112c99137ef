package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"auction-lifecycle/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

const listingColumns = `
        l.id, l.title, l.seller_id, s.name, s.email, s.phone,
        l.initial_at, l.end_at, l.status, l.auctioned_at, l.payment_warning_sent_at,
        l.current_winner_bid_id, l.auction_attempt, l.updated_at
    `

type MySQLListingRepository struct {
	db *sql.DB
}

func NewMySQLListingRepository(db *sql.DB) *MySQLListingRepository {
	return &MySQLListingRepository{db: db}
}

func (r *MySQLListingRepository) FindActionable(ctx context.Context, now time.Time) ([]*domain.Listing, error) {
	terminal := domain.TerminalStatuses()
	query := `
        SELECT` + listingColumns + `
        FROM listings l LEFT JOIN users s ON s.id = l.seller_id
        WHERE l.status NOT IN (?, ?, ?)
          AND NOT (l.status = ? AND (l.initial_at IS NULL OR l.initial_at > ?))
        ORDER BY l.id
    `

	listings, skipped, err := r.queryListings(ctx, query,
		terminal[0].String(), terminal[1].String(), terminal[2].String(),
		domain.ListingProgrammed.String(), now)
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

func (r *MySQLListingRepository) GetListing(ctx context.Context, listingID int64) (*domain.Listing, error) {
	query := `
        SELECT` + listingColumns + `
        FROM listings l LEFT JOIN users s ON s.id = l.seller_id
        WHERE l.id = ?
    `

	listings, skipped, err := r.queryListings(ctx, query, listingID)
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

func (r *MySQLListingRepository) CreateListing(ctx context.Context, listing *domain.Listing) (int64, error) {
	query := `
        INSERT INTO listings (title, seller_id, initial_at, end_at, status, auction_attempt, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	var sellerID interface{}
	if listing.Seller != nil {
		sellerID = listing.Seller.ID
	}

	res, err := r.db.ExecContext(ctx, query,
		listing.Title, sellerID, listing.InitialAt, listing.EndAt,
		listing.Status.String(), listing.AuctionAttempt, listing.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *MySQLListingRepository) Save(ctx context.Context, listing *domain.Listing, expected domain.ListingVersion) error {
	query := `
        UPDATE listings
        SET status = ?, auctioned_at = ?, payment_warning_sent_at = ?,
            current_winner_bid_id = ?, auction_attempt = ?, updated_at = ?
        WHERE id = ? AND status = ? AND auction_attempt = ?
    `
	res, err := r.db.ExecContext(ctx, query,
		listing.Status.String(), listing.AuctionedAt, listing.PaymentWarningSentAt,
		listing.CurrentWinnerBidID, listing.AuctionAttempt, listing.UpdatedAt,
		listing.ID, expected.Status.String(), expected.AuctionAttempt)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// queryListings returns the decoded listings and one error per row whose
// status could not be decoded.
func (r *MySQLListingRepository) queryListings(ctx context.Context, query string, args ...interface{}) ([]*domain.Listing, []error, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		listings []*domain.Listing
		skipped  []error
	)
	for rows.Next() {
		listing, status, err := scanListing(rows)
		if err != nil {
			return nil, nil, err
		}
		if listing.Status, err = domain.ParseListingStatus(status); err != nil {
			skipped = append(skipped, fmt.Errorf("listing %d: %w", listing.ID, err))
			continue
		}
		listings = append(listings, listing)
	}

	return listings, skipped, rows.Err()
}

func scanListing(rows *sql.Rows) (*domain.Listing, string, error) {
	var (
		listing                       domain.Listing
		sellerID, winnerBidID         sql.NullInt64
		sellerName, sellerEmail       sql.NullString
		sellerPhone                   sql.NullString
		initialAt, endAt, auctionedAt sql.NullTime
		warningSentAt                 sql.NullTime
		status                        string
	)

	err := rows.Scan(&listing.ID, &listing.Title, &sellerID, &sellerName, &sellerEmail, &sellerPhone,
		&initialAt, &endAt, &status, &auctionedAt, &warningSentAt,
		&winnerBidID, &listing.AuctionAttempt, &listing.UpdatedAt)
	if err != nil {
		return nil, "", err
	}

	if sellerID.Valid {
		listing.Seller = &domain.Party{
			ID:    sellerID.Int64,
			Name:  sellerName.String,
			Email: sellerEmail.String,
			Phone: sellerPhone.String,
		}
	}
	if winnerBidID.Valid {
		id := winnerBidID.Int64
		listing.CurrentWinnerBidID = &id
	}
	listing.InitialAt = nullTime(initialAt)
	listing.EndAt = nullTime(endAt)
	listing.AuctionedAt = nullTime(auctionedAt)
	listing.PaymentWarningSentAt = nullTime(warningSentAt)

	return &listing, status, nil
}

// attachBids loads bids, bidders and excluded bidders for listings. A bid
// whose amount does not decode marks its listing in the returned map.
func (r *MySQLListingRepository) attachBids(ctx context.Context, listings []*domain.Listing) (map[int64]error, error) {
	if len(listings) == 0 {
		return nil, nil
	}

	byID := make(map[int64]*domain.Listing, len(listings))
	args := make([]interface{}, 0, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
		args = append(args, l.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(listings)), ", ")

	bidQuery := `
        SELECT b.id, b.listing_id, b.bidder_id, u.id, u.name, u.email, u.phone, b.amount, b.created_at
        FROM bids b LEFT JOIN users u ON u.id = b.bidder_id
        WHERE b.listing_id IN (` + placeholders + `)
        ORDER BY b.listing_id, b.id
    `
	rows, err := r.db.QueryContext(ctx, bidQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	defer rows.Close()

	bad := make(map[int64]error)
	for rows.Next() {
		var (
			bid      domain.Bid
			bidderID sql.NullInt64
			userID   sql.NullInt64
			name     sql.NullString
			email    sql.NullString
			phone    sql.NullString
			amount   string
		)
		if err := rows.Scan(&bid.ID, &bid.ListingID, &bidderID, &userID, &name, &email, &phone,
			&amount, &bid.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		if bid.Amount, err = decimal.NewFromString(amount); err != nil {
			if _, seen := bad[bid.ListingID]; !seen {
				bad[bid.ListingID] = fmt.Errorf("listing %d: bid %d amount: %w", bid.ListingID, bid.ID, err)
			}
			continue
		}
		bid.BidderID = bidderID.Int64
		if userID.Valid {
			bid.Bidder = &domain.Party{ID: userID.Int64, Name: name.String, Email: email.String, Phone: phone.String}
		}
		if l, ok := byID[bid.ListingID]; ok {
			l.Bids = append(l.Bids, bid)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	excludedQuery := `
        SELECT listing_id, bidder_id
        FROM listing_excluded_bidders
        WHERE listing_id IN (` + placeholders + `)
    `
	exRows, err := r.db.QueryContext(ctx, excludedQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("load excluded bidders: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var listingID, bidderID int64
		if err := exRows.Scan(&listingID, &bidderID); err != nil {
			return nil, fmt.Errorf("scan excluded bidder: %w", err)
		}
		if l, ok := byID[listingID]; ok {
			l.ExcludedBidders = append(l.ExcludedBidders, bidderID)
		}
	}
	return bad, exRows.Err()
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

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

var _ domain.ListingStore = (*MySQLListingRepository)(nil)
