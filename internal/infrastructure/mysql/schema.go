package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        name VARCHAR(255) NOT NULL DEFAULT '',
        email VARCHAR(255) NOT NULL DEFAULT '',
        phone VARCHAR(64) NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS listings (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        title VARCHAR(255) NOT NULL,
        seller_id BIGINT NULL,
        initial_at DATETIME(3) NULL,
        end_at DATETIME(3) NULL,
        status VARCHAR(32) NOT NULL DEFAULT 'programmed',
        auctioned_at DATETIME(3) NULL,
        payment_warning_sent_at DATETIME(3) NULL,
        current_winner_bid_id BIGINT NULL,
        auction_attempt INT NOT NULL DEFAULT 0,
        updated_at DATETIME(3) NOT NULL,
        INDEX idx_listings_status (status)
    )`,
	`CREATE TABLE IF NOT EXISTS bids (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        listing_id BIGINT NOT NULL,
        bidder_id BIGINT NULL,
        amount DECIMAL(12,2) NOT NULL,
        created_at DATETIME(3) NOT NULL,
        INDEX idx_bids_listing (listing_id)
    )`,
	`CREATE TABLE IF NOT EXISTS listing_excluded_bidders (
        listing_id BIGINT NOT NULL,
        bidder_id BIGINT NOT NULL,
        PRIMARY KEY (listing_id, bidder_id)
    )`,
}

// Migrate creates the tables read and written by the lifecycle core.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
