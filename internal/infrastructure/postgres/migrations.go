package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS listings (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	seller_id BIGINT NULL,
	initial_at TIMESTAMPTZ NULL,
	end_at TIMESTAMPTZ NULL,
	status TEXT NOT NULL DEFAULT 'programmed',
	auctioned_at TIMESTAMPTZ NULL,
	payment_warning_sent_at TIMESTAMPTZ NULL,
	current_winner_bid_id BIGINT NULL,
	auction_attempt INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bids (
	id BIGSERIAL PRIMARY KEY,
	listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	bidder_id BIGINT NULL,
	amount NUMERIC(12,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listing_excluded_bidders (
	listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	bidder_id BIGINT NOT NULL,
	PRIMARY KEY (listing_id, bidder_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_bids_listing ON bids(listing_id);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
