package repository

import (
	"context"

	"pulse/internal/domain"
)

type BenefitRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, benefit *domain.Benefit) (int64, error)
	Update(ctx context.Context, benefit *domain.Benefit) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Benefit, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]domain.Benefit, error)
}
