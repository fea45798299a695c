package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

// The partial unique index enforces at most one open record per user.
const createTimeRecordsTable = `
CREATE TABLE IF NOT EXISTS time_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	clock_in DATETIME NOT NULL,
	clock_out DATETIME NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_time_records_user ON time_records(user_id, clock_in);
CREATE UNIQUE INDEX IF NOT EXISTS idx_time_records_open ON time_records(user_id) WHERE clock_out IS NULL;
`

const timeRecordColumns = `id, user_id, clock_in, clock_out, note, created_at, updated_at`

type TimeRecordRepository struct {
	db *sql.DB
}

func NewTimeRecordRepository(db *sql.DB) repository.TimeRecordRepository {
	return &TimeRecordRepository{db: db}
}

func (r *TimeRecordRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTimeRecordsTable); err != nil {
		return fmt.Errorf("create time_records table: %w", err)
	}
	return nil
}

func (r *TimeRecordRepository) Create(ctx context.Context, rec *domain.TimeRecord) (int64, error) {
	ts := now()
	rec.CreatedAt = ts
	rec.UpdatedAt = ts

	res, err := r.db.ExecContext(ctx, `
INSERT INTO time_records (user_id, clock_in, clock_out, note, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID,
		rec.ClockIn.UTC(),
		nullTime(rec.ClockOut),
		rec.Note,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("open time record for user %d: %w", rec.UserID, repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert time record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("time record last insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (r *TimeRecordRepository) Close(ctx context.Context, id int64, clockOut time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE time_records
SET clock_out=?, updated_at=?
WHERE id=? AND clock_out IS NULL`,
		clockOut.UTC(),
		now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("close time record: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("close rows affected: %w", err)
	} else if aff == 0 {
		return fmt.Errorf("time record %d not open: %w", id, repository.ErrConflict)
	}
	return nil
}

func (r *TimeRecordRepository) GetOpen(ctx context.Context, userID int64) (*domain.TimeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+timeRecordColumns+` FROM time_records WHERE user_id=? AND clock_out IS NULL`, userID)
	return scanTimeRecord(row)
}

// ListBetween returns records whose clock-in falls in [from, to).
func (r *TimeRecordRepository) ListBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.TimeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+timeRecordColumns+`
FROM time_records
WHERE user_id=? AND clock_in >= ? AND clock_in < ?
ORDER BY clock_in ASC`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query time records: %w", err)
	}
	defer rows.Close()

	var records []domain.TimeRecord
	for rows.Next() {
		rec, err := scanTimeRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanTimeRecord(row scanner) (*domain.TimeRecord, error) {
	var (
		rec      domain.TimeRecord
		clockOut sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.ClockIn, &clockOut, &rec.Note, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("time record: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan time record: %w", err)
	}
	rec.ClockIn = rec.ClockIn.UTC()
	rec.ClockOut = fromNullTime(clockOut)
	return &rec, nil
}
