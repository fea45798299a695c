package repository

import (
	"context"
	"time"

	"pulse/internal/domain"
)

// PayslipRepository exposes persistence operations for payslips and their documents.
type PayslipRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, payslip *domain.Payslip) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Payslip, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Payslip, error)
	ListByDocumentStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Payslip, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status domain.DocumentStatus, errorMessage *string) error
	MarkPublished(ctx context.Context, id int64, key, location string, publishedAt time.Time) error
}
