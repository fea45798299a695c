package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single connection serialises writers and keeps PRAGMAs in effect
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return db, nil
}

// Repositories groups every sqlite-backed repository over one handle.
type Repositories struct {
	Users    *UserRepository
	Vacation *VacationRepository
	Holidays *HolidayRepository
	Chat     *ChatRepository
	Payslips *PayslipRepository
	Benefits *BenefitRepository
	Time     *TimeRecordRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:    &UserRepository{db: db},
		Vacation: &VacationRepository{db: db},
		Holidays: &HolidayRepository{db: db},
		Chat:     &ChatRepository{db: db},
		Payslips: &PayslipRepository{db: db},
		Benefits: &BenefitRepository{db: db},
		Time:     &TimeRecordRepository{db: db},
	}
}

// Init creates all tables. Users go first because every other table references them.
func (r *Repositories) Init(ctx context.Context) error {
	steps := []struct {
		name string
		init func(context.Context) error
	}{
		{"users", r.Users.Init},
		{"vacation", r.Vacation.Init},
		{"holidays", r.Holidays.Init},
		{"chat", r.Chat.Init},
		{"payslips", r.Payslips.Init},
		{"benefits", r.Benefits.Init},
		{"time records", r.Time.Init},
	}
	for _, step := range steps {
		if err := step.init(ctx); err != nil {
			return fmt.Errorf("init %s repository: %w", step.name, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func parseNullDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := parseDate(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func fromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func now() time.Time {
	return time.Now().UTC()
}
