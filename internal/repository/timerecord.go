package repository

import (
	"context"
	"time"

	"pulse/internal/domain"
)

type TimeRecordRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, record *domain.TimeRecord) (int64, error)
	Close(ctx context.Context, id int64, clockOut time.Time) error
	GetOpen(ctx context.Context, userID int64) (*domain.TimeRecord, error)
	ListBetween(ctx context.Context, userID int64, from, to time.Time) ([]domain.TimeRecord, error)
}
