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

const createVacationTables = `
CREATE TABLE IF NOT EXISTS vacation_periods (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	year INTEGER NOT NULL,
	total_days INTEGER NOT NULL,
	used_days INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(user_id, year),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS vacation_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	days INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	reviewer_id INTEGER NULL,
	review_comment TEXT NOT NULL DEFAULT '',
	reviewed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(reviewer_id) REFERENCES users(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_vacation_requests_user ON vacation_requests(user_id, start_date);
CREATE INDEX IF NOT EXISTS idx_vacation_requests_status ON vacation_requests(status);
`

const requestColumns = `id, user_id, start_date, end_date, days, reason, status, reviewer_id, review_comment, reviewed_at, created_at, updated_at`

type VacationRepository struct {
	db *sql.DB
}

func NewVacationRepository(db *sql.DB) repository.VacationRepository {
	return &VacationRepository{db: db}
}

func (r *VacationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createVacationTables); err != nil {
		return fmt.Errorf("create vacation tables: %w", err)
	}
	return nil
}

func (r *VacationRepository) UpsertPeriod(ctx context.Context, userID int64, year, totalDays int) (*domain.VacationPeriod, error) {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO vacation_periods (user_id, year, total_days, used_days, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?)
ON CONFLICT(user_id, year) DO UPDATE SET total_days=excluded.total_days, updated_at=excluded.updated_at`,
		userID, year, totalDays, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert vacation period: %w", err)
	}
	return r.GetPeriod(ctx, userID, year)
}

func (r *VacationRepository) GetPeriod(ctx context.Context, userID int64, year int) (*domain.VacationPeriod, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, year, total_days, used_days, created_at, updated_at
FROM vacation_periods
WHERE user_id=? AND year=?`, userID, year)
	return scanPeriod(row)
}

func (r *VacationRepository) ListPeriods(ctx context.Context, userID int64) ([]domain.VacationPeriod, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, year, total_days, used_days, created_at, updated_at
FROM vacation_periods
WHERE user_id=?
ORDER BY year DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query vacation periods: %w", err)
	}
	defer rows.Close()

	var periods []domain.VacationPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func (r *VacationRepository) CreateRequest(ctx context.Context, req *domain.VacationRequest) (int64, error) {
	return insertRequest(ctx, r.db, req)
}

// SubmitRequest stores a pending request only if it overlaps none of the
// user's pending or approved requests and the period still covers it after
// every other pending request. The insert comes first so the transaction
// holds the write lock while the checks run.
func (r *VacationRepository) SubmitRequest(ctx context.Context, req *domain.VacationRequest) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	req.Status = domain.VacationStatusPending
	id, err := insertRequest(ctx, tx, req)
	if err != nil {
		return 0, err
	}
	req.ID = 0

	var (
		otherID    int64
		otherStart string
		otherEnd   string
	)
	err = tx.QueryRowContext(ctx, `
SELECT id, start_date, end_date
FROM vacation_requests
WHERE user_id=? AND id<>? AND status IN (?, ?) AND start_date <= ? AND end_date >= ?
ORDER BY start_date ASC
LIMIT 1`,
		req.UserID,
		id,
		string(domain.VacationStatusPending),
		string(domain.VacationStatusApproved),
		formatDate(req.EndDate),
		formatDate(req.StartDate),
	).Scan(&otherID, &otherStart, &otherEnd)
	switch {
	case err == nil:
		return 0, fmt.Errorf("request #%d from %s to %s: %w", otherID, otherStart, otherEnd, repository.ErrOverlapping)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("check overlapping requests: %w", err)
	}

	year := req.StartDate.Year()
	var remaining int
	err = tx.QueryRowContext(ctx, `
SELECT
	COALESCE((SELECT total_days - used_days FROM vacation_periods WHERE user_id=? AND year=?), 0)
	- COALESCE((SELECT SUM(days) FROM vacation_requests WHERE user_id=? AND status=? AND substr(start_date, 1, 4)=?), 0)`,
		req.UserID,
		year,
		req.UserID,
		string(domain.VacationStatusPending),
		fmt.Sprintf("%04d", year),
	).Scan(&remaining)
	if err != nil {
		return 0, fmt.Errorf("check vacation balance: %w", err)
	}
	if remaining < 0 {
		return 0, fmt.Errorf("%d business days requested, %d available: %w", req.Days, remaining+req.Days, repository.ErrInsufficientDays)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vacation request: %w", err)
	}
	req.ID = id
	return id, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRequest(ctx context.Context, db execer, req *domain.VacationRequest) (int64, error) {
	ts := now()
	req.CreatedAt = ts
	req.UpdatedAt = ts
	if req.Status == "" {
		req.Status = domain.VacationStatusPending
	}

	res, err := db.ExecContext(ctx, `
INSERT INTO vacation_requests (user_id, start_date, end_date, days, reason, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		req.UserID,
		formatDate(req.StartDate),
		formatDate(req.EndDate),
		req.Days,
		req.Reason,
		string(req.Status),
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert vacation request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("vacation request last insert id: %w", err)
	}
	req.ID = id
	return id, nil
}

func (r *VacationRepository) GetRequest(ctx context.Context, id int64) (*domain.VacationRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM vacation_requests WHERE id=?`, id)
	return scanRequest(row)
}

func (r *VacationRepository) ListRequestsByUser(ctx context.Context, userID int64) ([]domain.VacationRequest, error) {
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM vacation_requests WHERE user_id=? ORDER BY start_date DESC, id DESC`, userID)
}

func (r *VacationRepository) ListRequestsByStatus(ctx context.Context, status domain.VacationStatus) ([]domain.VacationRequest, error) {
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM vacation_requests WHERE status=? ORDER BY created_at ASC, id ASC`, string(status))
}

func (r *VacationRepository) PendingDays(ctx context.Context, userID int64, year int) (int, error) {
	var days int
	err := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(days), 0)
FROM vacation_requests
WHERE user_id=? AND status=? AND substr(start_date, 1, 4)=?`,
		userID,
		string(domain.VacationStatusPending),
		fmt.Sprintf("%04d", year),
	).Scan(&days)
	if err != nil {
		return 0, fmt.Errorf("sum pending days: %w", err)
	}
	return days, nil
}

func (r *VacationRepository) CountByStatus(ctx context.Context, status domain.VacationStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vacation_requests WHERE status=?`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vacation requests: %w", err)
	}
	return n, nil
}

func (r *VacationRepository) Approve(ctx context.Context, id, reviewerID int64, comment string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	req, err := scanRequest(tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM vacation_requests WHERE id=?`, id))
	if err != nil {
		return err
	}
	if req.Status != domain.VacationStatusPending {
		return fmt.Errorf("vacation request %d is %s: %w", id, req.Status, repository.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `
UPDATE vacation_periods
SET used_days = used_days + ?, updated_at=?
WHERE user_id=? AND year=? AND total_days - used_days >= ?`,
		req.Days,
		now(),
		req.UserID,
		req.StartDate.Year(),
		req.Days,
	)
	if err != nil {
		return fmt.Errorf("deduct vacation days: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("deduct rows affected: %w", err)
	} else if aff == 0 {
		return fmt.Errorf("vacation request %d: %w", id, repository.ErrInsufficientDays)
	}

	if err := reviewRequest(ctx, tx, id, domain.VacationStatusApproved, reviewerID, comment, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval: %w", err)
	}
	return nil
}

func (r *VacationRepository) Reject(ctx context.Context, id, reviewerID int64, comment string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := reviewRequest(ctx, tx, id, domain.VacationStatusRejected, reviewerID, comment, at); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rejection: %w", err)
	}
	return nil
}

func (r *VacationRepository) Cancel(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE vacation_requests
SET status=?, updated_at=?
WHERE id=? AND status=?`,
		string(domain.VacationStatusCancelled),
		now(),
		id,
		string(domain.VacationStatusPending),
	)
	if err != nil {
		return fmt.Errorf("cancel vacation request: %w", err)
	}
	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("cancel rows affected: %w", err)
	} else if aff == 0 {
		return fmt.Errorf("vacation request %d not pending: %w", id, repository.ErrConflict)
	}
	return nil
}

func reviewRequest(ctx context.Context, tx *sql.Tx, id int64, status domain.VacationStatus, reviewerID int64, comment string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
UPDATE vacation_requests
SET status=?, reviewer_id=?, review_comment=?, reviewed_at=?, updated_at=?
WHERE id=? AND status=?`,
		string(status),
		reviewerID,
		comment,
		at.UTC(),
		now(),
		id,
		string(domain.VacationStatusPending),
	)
	if err != nil {
		return fmt.Errorf("review vacation request: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("vacation request %d not pending: %w", id, repository.ErrConflict)
	}
	return nil
}

func (r *VacationRepository) queryRequests(ctx context.Context, query string, args ...any) ([]domain.VacationRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vacation requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.VacationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

func scanPeriod(row scanner) (*domain.VacationPeriod, error) {
	var p domain.VacationPeriod
	if err := row.Scan(&p.ID, &p.UserID, &p.Year, &p.TotalDays, &p.UsedDays, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vacation period: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan vacation period: %w", err)
	}
	return &p, nil
}

func scanRequest(row scanner) (*domain.VacationRequest, error) {
	var (
		req        domain.VacationRequest
		start, end string
		status     string
		reviewer   sql.NullInt64
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&start,
		&end,
		&req.Days,
		&req.Reason,
		&status,
		&reviewer,
		&req.ReviewComment,
		&reviewedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vacation request: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan vacation request: %w", err)
	}

	var err error
	if req.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if req.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	req.Status = domain.VacationStatus(status)
	req.ReviewerID = fromNullInt64(reviewer)
	req.ReviewedAt = fromNullTime(reviewedAt)
	return &req, nil
}

var _ repository.VacationRepository = (*VacationRepository)(nil)
