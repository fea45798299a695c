package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

const createHolidaysTable = `
CREATE TABLE IF NOT EXISTS holidays (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);
`

type HolidayRepository struct {
	db *sql.DB
}

func NewHolidayRepository(db *sql.DB) repository.HolidayRepository {
	return &HolidayRepository{db: db}
}

func (r *HolidayRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createHolidaysTable); err != nil {
		return fmt.Errorf("create holidays table: %w", err)
	}
	return nil
}

func (r *HolidayRepository) Create(ctx context.Context, holiday *domain.Holiday) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO holidays (date, name) VALUES (?, ?)`,
		formatDate(holiday.Date),
		holiday.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("holiday on %s: %w", formatDate(holiday.Date), repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert holiday: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("holiday last insert id: %w", err)
	}
	holiday.ID = id
	return id, nil
}

func (r *HolidayRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return expectOneRow(res, "holiday")
}

// ListBetween returns holidays in [from, to], both inclusive.
func (r *HolidayRepository) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Holiday, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, date, name
FROM holidays
WHERE date >= ? AND date <= ?
ORDER BY date ASC`, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []domain.Holiday
	for rows.Next() {
		var (
			h    domain.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Name); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		if h.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
