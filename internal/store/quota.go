package store

import (
	"context"
	"database/sql"
	"errors"
)

// QuotaCount returns the committed counter for date (YYYY-MM-DD).
// A missing row reads as zero.
func (s *Store) QuotaCount(ctx context.Context, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM daily_quota WHERE date = ?`, date,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

// QuotaIncrement adds one to the counter for date, creating the row lazily.
// The increment is a single atomic UPDATE; the caller owns the pre-check
// and the post-hoc reconciliation.
func (s *Store) QuotaIncrement(ctx context.Context, date string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_quota (date, count) VALUES (?, 0)`, date); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_quota SET count = count + 1 WHERE date = ?`, date)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.New("store: quota row vanished during increment")
	}
	return nil
}

// QuotaDecrement subtracts one from the counter for date, floored at zero.
func (s *Store) QuotaDecrement(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_quota SET count = MAX(count - 1, 0) WHERE date = ?`, date)
	return err
}

// QuotaPrune deletes counters for dates strictly before the given date
// string. Date strings compare lexicographically in calendar order.
func (s *Store) QuotaPrune(ctx context.Context, before string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_quota WHERE date < ?`, before)
	return err
}
