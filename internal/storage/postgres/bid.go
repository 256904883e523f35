package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"g2b_monitor/internal/domain"
)

const uniqueViolation = "23505"

type BidStore struct {
	db *sqlx.DB
}

func NewBidStore(db *sqlx.DB) *BidStore {
	return &BidStore{db: db}
}

// InsertIgnore persists a bid unless one with the same (source, bid_no) key
// already exists. It reports whether a row was actually written. A duplicate
// key, including one raced in by a concurrent run, is never an error.
func (s *BidStore) InsertIgnore(ctx context.Context, bid *domain.Bid) (bool, error) {
	query := `
		INSERT INTO bids (
			source, bid_no, title, agency, agency_code, category,
			announced_at, close_at, url, notified
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (source, bid_no) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		bid.Source,
		bid.BidNo,
		bid.Title,
		bid.Agency,
		bid.AgencyCode,
		bid.Category,
		bid.AnnouncedAt,
		bid.CloseAt,
		bid.URL,
		bid.Notified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert bid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}

// CountByBidNo reports how many persisted bids carry the given key. Kept for
// the explicit check-then-insert write strategy and for tests.
func (s *BidStore) CountByBidNo(ctx context.Context, source, bidNo string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM bids WHERE source = $1 AND bid_no = $2",
		source, bidNo,
	)
	if err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return count, nil
}

const maxListLimit = 100

// ListRecent returns the newest bids, announcement date first, insertion
// order as tie-breaker. The limit is capped at 100.
func (s *BidStore) ListRecent(ctx context.Context, limit int) ([]domain.Bid, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	var bids []domain.Bid
	query := `
		SELECT id, source, bid_no, title, agency, agency_code, category,
		       announced_at, close_at, url, notified, created_at
		FROM bids
		ORDER BY announced_at DESC, created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &bids, query, limit); err != nil {
		return nil, fmt.Errorf("list recent bids: %w", err)
	}
	return bids, nil
}

// ListSince returns all bids announced at or after the cutoff, newest first.
func (s *BidStore) ListSince(ctx context.Context, cutoff time.Time) ([]domain.Bid, error) {
	var bids []domain.Bid
	query := `
		SELECT id, source, bid_no, title, agency, agency_code, category,
		       announced_at, close_at, url, notified, created_at
		FROM bids
		WHERE announced_at >= $1
		ORDER BY announced_at DESC`

	if err := s.db.SelectContext(ctx, &bids, query, cutoff); err != nil {
		return nil, fmt.Errorf("list bids since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return bids, nil
}

// MarkNotified flips the notified flag for the given keys. The flag only ever
// moves false to true.
func (s *BidStore) MarkNotified(ctx context.Context, source string, bidNos []string) error {
	if len(bidNos) == 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE bids SET notified = TRUE WHERE source = $1 AND bid_no = ANY($2)",
		source, pq.Array(bidNos),
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
