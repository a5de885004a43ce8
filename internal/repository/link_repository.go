package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Siddarth2230/serial-tags/internal/logging"
	"github.com/Siddarth2230/serial-tags/internal/models"
	"github.com/Siddarth2230/serial-tags/pkg/metrics"
)

var (
	ErrDuplicate = errors.New("serial already stored")
	ErrNotFound  = errors.New("no link for serial")
)

// pq error code for unique_violation
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS links (
    serial     BIGINT PRIMARY KEY CHECK (serial >= 0),
    target     TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NULL
)`

type LinkRepository struct {
	db *sql.DB
}

func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func observe(op string, start time.Time) {
	metrics.DatabaseQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Migrate creates the links table if it does not exist.
func (r *LinkRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate links: %w", err)
	}
	return nil
}

// Save inserts link under link.Serial. A serial that is already stored
// fails with ErrDuplicate.
func (r *LinkRepository) Save(ctx context.Context, link *models.Link) error {
	defer observe("save", time.Now())

	query := `
        INSERT INTO links (serial, target, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
    `
	var expiresAt sql.NullTime
	if link.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *link.ExpiresAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, link.Serial, link.Target, link.CreatedAt, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %d", ErrDuplicate, link.Serial)
		}
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).Int64(logging.FieldSerial, link.Serial).Msg("saving link")
		return err
	}
	return nil
}

// FindBySerial returns the link stored under serial, or nil when there is none.
func (r *LinkRepository) FindBySerial(ctx context.Context, serial int64) (*models.Link, error) {
	defer observe("find", time.Now())

	query := `
        SELECT serial, target, created_at, expires_at
        FROM links
        WHERE serial = $1
    `
	var link models.Link
	var expiresAt sql.NullTime
	row := r.db.QueryRowContext(ctx, query, serial)
	if err := row.Scan(&link.Serial, &link.Target, &link.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger := logging.Ctx(ctx)
		logger.Error().Err(err).Int64(logging.FieldSerial, serial).Msg("finding link")
		return nil, err
	}
	if expiresAt.Valid {
		link.ExpiresAt = &expiresAt.Time
	}
	return &link, nil
}

// DeleteBySerial removes the link stored under serial.
func (r *LinkRepository) DeleteBySerial(ctx context.Context, serial int64) error {
	defer observe("delete", time.Now())

	result, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE serial = $1`, serial)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, serial)
	}
	logger := logging.Ctx(ctx)
	logger.Debug().Int64(logging.FieldSerial, serial).Msg("deleted link")
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
