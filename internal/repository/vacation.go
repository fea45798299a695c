package repository

import (
	"context"
	"time"

	"pulse/internal/domain"
)

// VacationRepository manages yearly periods and vacation requests.
type VacationRepository interface {
	Init(ctx context.Context) error
	UpsertPeriod(ctx context.Context, userID int64, year, totalDays int) (*domain.VacationPeriod, error)
	GetPeriod(ctx context.Context, userID int64, year int) (*domain.VacationPeriod, error)
	ListPeriods(ctx context.Context, userID int64) ([]domain.VacationPeriod, error)

	CreateRequest(ctx context.Context, req *domain.VacationRequest) (int64, error)
	// SubmitRequest creates a pending request in one transaction with the
	// overlap and balance checks. It fails with ErrOverlapping or
	// ErrInsufficientDays and then stores nothing.
	SubmitRequest(ctx context.Context, req *domain.VacationRequest) (int64, error)
	GetRequest(ctx context.Context, id int64) (*domain.VacationRequest, error)
	ListRequestsByUser(ctx context.Context, userID int64) ([]domain.VacationRequest, error)
	ListRequestsByStatus(ctx context.Context, status domain.VacationStatus) ([]domain.VacationRequest, error)
	PendingDays(ctx context.Context, userID int64, year int) (int, error)
	CountByStatus(ctx context.Context, status domain.VacationStatus) (int, error)

	// Approve marks a pending request approved and adds its days to the
	// period's used days in one transaction.
	Approve(ctx context.Context, id, reviewerID int64, comment string, at time.Time) error
	Reject(ctx context.Context, id, reviewerID int64, comment string, at time.Time) error
	Cancel(ctx context.Context, id int64) error
}

// HolidayRepository stores company-wide non-working days.
type HolidayRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, holiday *domain.Holiday) (int64, error)
	Delete(ctx context.Context, id int64) error
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Holiday, error)
}
