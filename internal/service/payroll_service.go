package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
	"pulse/internal/storage"
)

// PayrollService coordinates payslip issuing and document publishing state.
type PayrollService interface {
	Issue(ctx context.Context, input IssuePayslipInput) (*domain.Payslip, error)
	Get(ctx context.Context, id int64) (*domain.Payslip, error)
	GetForUser(ctx context.Context, userID, id int64) (*domain.Payslip, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Payslip, error)
	ListByDocumentStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Payslip, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error
	MarkPublished(ctx context.Context, id int64, key, location string) error
	PrepareRepublish(ctx context.Context, id int64) (*domain.Payslip, error)
	DocumentURL(ctx context.Context, userID, id int64) (string, time.Time, error)
}

type IssuePayslipInput struct {
	UserID      int64
	Year        int
	Month       int
	Currency    string
	GrossAmount int64
	Deductions  []domain.Deduction
}

// DocumentConfig points the payroll service at the bucket holding rendered payslips.
// A nil Storage disables document downloads.
type DocumentConfig struct {
	Storage storage.Service
	Bucket  string
	URLTTL  time.Duration
}

type payrollService struct {
	payslips repository.PayslipRepository
	users    repository.UserRepository
	docs     DocumentConfig
	now      func() time.Time
}

func NewPayrollService(payslips repository.PayslipRepository, users repository.UserRepository, docs DocumentConfig) PayrollService {
	if docs.URLTTL <= 0 {
		docs.URLTTL = 15 * time.Minute
	}
	return &payrollService{
		payslips: payslips,
		users:    users,
		docs:     docs,
		now:      time.Now,
	}
}

func (s *payrollService) Issue(ctx context.Context, input IssuePayslipInput) (*domain.Payslip, error) {
	if input.Month < 1 || input.Month > 12 {
		return nil, invalid("month", "must be between 1 and 12")
	}
	if input.Year < 2000 || input.Year > 2100 {
		return nil, invalid("year", "out of range")
	}
	if input.GrossAmount <= 0 {
		return nil, invalid("gross_amount", "must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "EUR"
	}
	if len(currency) != 3 {
		return nil, invalid("currency", "must be a 3-letter code")
	}

	deductions := make([]domain.Deduction, 0, len(input.Deductions))
	for i, d := range input.Deductions {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, invalid(fmt.Sprintf("deductions[%d].name", i), "is required")
		}
		if d.Amount < 0 {
			return nil, invalid(fmt.Sprintf("deductions[%d].amount", i), "must not be negative")
		}
		deductions = append(deductions, domain.Deduction{Name: name, Amount: d.Amount})
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, invalid("user_id", "user is inactive")
	}

	payslip := &domain.Payslip{
		UserID:         input.UserID,
		Year:           input.Year,
		Month:          input.Month,
		Currency:       currency,
		GrossAmount:    input.GrossAmount,
		Deductions:     deductions,
		DocumentStatus: domain.DocumentStatusPending,
		IssuedAt:       s.now().UTC(),
	}
	payslip.NetAmount = payslip.GrossAmount - payslip.TotalDeductions()
	if payslip.NetAmount < 0 {
		return nil, invalid("deductions", "total deductions exceed the gross amount")
	}

	if _, err := s.payslips.Create(ctx, payslip); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrPayslipExists, payslip.Period())
		}
		return nil, err
	}
	return payslip, nil
}

func (s *payrollService) Get(ctx context.Context, id int64) (*domain.Payslip, error) {
	return s.payslips.Get(ctx, id)
}

// GetForUser hides payslips of other users behind ErrNotFound.
func (s *payrollService) GetForUser(ctx context.Context, userID, id int64) (*domain.Payslip, error) {
	p, err := s.payslips.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *payrollService) ListByUser(ctx context.Context, userID int64) ([]domain.Payslip, error) {
	return s.payslips.ListByUser(ctx, userID)
}

func (s *payrollService) ListByDocumentStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Payslip, error) {
	return s.payslips.ListByDocumentStatus(ctx, statuses...)
}

func (s *payrollService) UpdateDocumentStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMsg *string) error {
	return s.payslips.UpdateDocumentStatus(ctx, id, status, errMsg)
}

func (s *payrollService) MarkPublished(ctx context.Context, id int64, key, location string) error {
	return s.payslips.MarkPublished(ctx, id, key, location, s.now())
}

// PrepareRepublish resets a failed payslip to pending so the publisher picks it up again.
func (s *payrollService) PrepareRepublish(ctx context.Context, id int64) (*domain.Payslip, error) {
	p, err := s.payslips.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DocumentStatus != domain.DocumentStatusFailed {
		return nil, fmt.Errorf("%w: payslip %d is %s", ErrNotRepublishable, id, p.DocumentStatus)
	}
	if err := s.payslips.UpdateDocumentStatus(ctx, id, domain.DocumentStatusPending, nil); err != nil {
		return nil, err
	}
	p.DocumentStatus = domain.DocumentStatusPending
	p.ErrorMessage = ""
	return p, nil
}

func (s *payrollService) DocumentURL(ctx context.Context, userID, id int64) (string, time.Time, error) {
	if s.docs.Storage == nil || s.docs.Bucket == "" {
		return "", time.Time{}, ErrStorageDisabled
	}
	p, err := s.GetForUser(ctx, userID, id)
	if err != nil {
		return "", time.Time{}, err
	}
	if p.DocumentStatus != domain.DocumentStatusPublished || p.DocumentKey == "" {
		return "", time.Time{}, fmt.Errorf("%w: payslip %d is %s", ErrDocumentNotReady, id, p.DocumentStatus)
	}
	url, err := s.docs.Storage.GetObjectURL(ctx, s.docs.Bucket, p.DocumentKey, s.docs.URLTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign payslip document: %w", err)
	}
	return url, s.now().Add(s.docs.URLTTL).UTC(), nil
}
