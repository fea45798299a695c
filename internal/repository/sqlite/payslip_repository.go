package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

const createPayslipsTable = `
CREATE TABLE IF NOT EXISTS payslips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	year INTEGER NOT NULL,
	month INTEGER NOT NULL,
	currency TEXT NOT NULL,
	gross_amount INTEGER NOT NULL,
	deductions TEXT NOT NULL DEFAULT '[]',
	net_amount INTEGER NOT NULL,
	document_status TEXT NOT NULL,
	document_key TEXT NOT NULL DEFAULT '',
	document_location TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	issued_at DATETIME NOT NULL,
	published_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(user_id, year, month),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

const payslipColumns = `id, user_id, year, month, currency, gross_amount, deductions, net_amount, document_status, document_key, document_location, error_message, issued_at, published_at, created_at, updated_at`

type PayslipRepository struct {
	db *sql.DB
}

func NewPayslipRepository(db *sql.DB) repository.PayslipRepository {
	return &PayslipRepository{db: db}
}

func (r *PayslipRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPayslipsTable); err != nil {
		return fmt.Errorf("create payslips table: %w", err)
	}
	return nil
}

func (r *PayslipRepository) Create(ctx context.Context, p *domain.Payslip) (int64, error) {
	ts := now()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	if p.IssuedAt.IsZero() {
		p.IssuedAt = ts
	}
	if p.DocumentStatus == "" {
		p.DocumentStatus = domain.DocumentStatusPending
	}
	if p.Deductions == nil {
		p.Deductions = []domain.Deduction{}
	}

	deductions, err := json.Marshal(p.Deductions)
	if err != nil {
		return 0, fmt.Errorf("encode deductions: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO payslips (user_id, year, month, currency, gross_amount, deductions, net_amount, document_status, issued_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID,
		p.Year,
		p.Month,
		p.Currency,
		p.GrossAmount,
		string(deductions),
		p.NetAmount,
		string(p.DocumentStatus),
		p.IssuedAt.UTC(),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("payslip %s for user %d: %w", p.Period(), p.UserID, repository.ErrConflict)
		}
		return 0, fmt.Errorf("insert payslip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payslip last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *PayslipRepository) Get(ctx context.Context, id int64) (*domain.Payslip, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+payslipColumns+` FROM payslips WHERE id=?`, id)
	return scanPayslip(row)
}

func (r *PayslipRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Payslip, error) {
	return r.query(ctx, `SELECT `+payslipColumns+` FROM payslips WHERE user_id=? ORDER BY year DESC, month DESC`, userID)
}

func (r *PayslipRepository) ListByDocumentStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Payslip, error) {
	if len(statuses) == 0 {
		return []domain.Payslip{}, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	query := fmt.Sprintf(`SELECT %s FROM payslips WHERE document_status IN (%s) ORDER BY id ASC`, payslipColumns, placeholders(len(statuses)))
	return r.query(ctx, query, args...)
}

func (r *PayslipRepository) UpdateDocumentStatus(ctx context.Context, id int64, status domain.DocumentStatus, errorMessage *string) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payslips
SET document_status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update payslip document status: %w", err)
	}
	return expectOneRow(res, "payslip")
}

func (r *PayslipRepository) MarkPublished(ctx context.Context, id int64, key, location string, publishedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE payslips
SET document_status=?, document_key=?, document_location=?, error_message='', published_at=?, updated_at=?
WHERE id=?`,
		string(domain.DocumentStatusPublished),
		key,
		location,
		publishedAt.UTC(),
		now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark payslip published: %w", err)
	}
	return expectOneRow(res, "payslip")
}

func (r *PayslipRepository) query(ctx context.Context, query string, args ...any) ([]domain.Payslip, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payslips: %w", err)
	}
	defer rows.Close()

	var payslips []domain.Payslip
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		payslips = append(payslips, *p)
	}
	return payslips, rows.Err()
}

func scanPayslip(row scanner) (*domain.Payslip, error) {
	var (
		p           domain.Payslip
		deductions  string
		status      string
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Year,
		&p.Month,
		&p.Currency,
		&p.GrossAmount,
		&deductions,
		&p.NetAmount,
		&status,
		&p.DocumentKey,
		&p.DocumentLocation,
		&p.ErrorMessage,
		&p.IssuedAt,
		&publishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payslip: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan payslip: %w", err)
	}
	if err := json.Unmarshal([]byte(deductions), &p.Deductions); err != nil {
		return nil, fmt.Errorf("decode deductions for payslip %d: %w", p.ID, err)
	}
	p.DocumentStatus = domain.DocumentStatus(status)
	p.PublishedAt = fromNullTime(publishedAt)
	return &p, nil
}

var _ repository.PayslipRepository = (*PayslipRepository)(nil)
