package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

const createBenefitsTable = `
CREATE TABLE IF NOT EXISTS benefits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	monthly_value INTEGER NOT NULL DEFAULT 0,
	start_date TEXT NOT NULL,
	end_date TEXT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_benefits_user ON benefits(user_id);
`

const benefitColumns = `id, user_id, name, category, description, monthly_value, start_date, end_date, active, created_at, updated_at`

type BenefitRepository struct {
	db *sql.DB
}

func NewBenefitRepository(db *sql.DB) repository.BenefitRepository {
	return &BenefitRepository{db: db}
}

func (r *BenefitRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBenefitsTable); err != nil {
		return fmt.Errorf("create benefits table: %w", err)
	}
	return nil
}

func (r *BenefitRepository) Create(ctx context.Context, b *domain.Benefit) (int64, error) {
	ts := now()
	b.CreatedAt = ts
	b.UpdatedAt = ts

	res, err := r.db.ExecContext(ctx, `
INSERT INTO benefits (user_id, name, category, description, monthly_value, start_date, end_date, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID,
		b.Name,
		string(b.Category),
		b.Description,
		b.MonthlyValue,
		formatDate(b.StartDate),
		nullDate(b.EndDate),
		b.Active,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert benefit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("benefit last insert id: %w", err)
	}
	b.ID = id
	return id, nil
}

func (r *BenefitRepository) Update(ctx context.Context, b *domain.Benefit) error {
	b.UpdatedAt = now()
	res, err := r.db.ExecContext(ctx, `
UPDATE benefits
SET name=?, category=?, description=?, monthly_value=?, start_date=?, end_date=?, active=?, updated_at=?
WHERE id=?`,
		b.Name,
		string(b.Category),
		b.Description,
		b.MonthlyValue,
		formatDate(b.StartDate),
		nullDate(b.EndDate),
		b.Active,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update benefit: %w", err)
	}
	return expectOneRow(res, "benefit")
}

func (r *BenefitRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM benefits WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete benefit: %w", err)
	}
	return expectOneRow(res, "benefit")
}

func (r *BenefitRepository) Get(ctx context.Context, id int64) (*domain.Benefit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+benefitColumns+` FROM benefits WHERE id=?`, id)
	return scanBenefit(row)
}

func (r *BenefitRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]domain.Benefit, error) {
	query := `SELECT ` + benefitColumns + ` FROM benefits WHERE user_id=?`
	if activeOnly {
		query += ` AND active=1`
	}
	query += ` ORDER BY category ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query benefits: %w", err)
	}
	defer rows.Close()

	var benefits []domain.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, err
		}
		benefits = append(benefits, *b)
	}
	return benefits, rows.Err()
}

func scanBenefit(row scanner) (*domain.Benefit, error) {
	var (
		b        domain.Benefit
		category string
		start    string
		end      sql.NullString
	)
	if err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Name,
		&category,
		&b.Description,
		&b.MonthlyValue,
		&start,
		&end,
		&b.Active,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("benefit: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan benefit: %w", err)
	}
	b.Category = domain.BenefitCategory(category)

	var err error
	if b.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if b.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	return &b, nil
}
