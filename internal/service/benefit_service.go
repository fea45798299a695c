package service

import (
	"context"
	"strings"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

type BenefitService interface {
	ListActive(ctx context.Context, userID int64) ([]domain.Benefit, int64, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Benefit, error)
	Assign(ctx context.Context, userID int64, input BenefitInput) (*domain.Benefit, error)
	Update(ctx context.Context, id int64, input BenefitInput) (*domain.Benefit, error)
	Remove(ctx context.Context, id int64) error
}

type BenefitInput struct {
	Name         string
	Category     domain.BenefitCategory
	Description  string
	MonthlyValue int64
	StartDate    time.Time
	EndDate      *time.Time
	Active       *bool
}

type benefitService struct {
	benefits repository.BenefitRepository
	users    repository.UserRepository
	now      func() time.Time
}

func NewBenefitService(benefits repository.BenefitRepository, users repository.UserRepository) BenefitService {
	return &benefitService{benefits: benefits, users: users, now: time.Now}
}

// ListActive returns benefits in force today and their summed monthly value.
func (s *benefitService) ListActive(ctx context.Context, userID int64) ([]domain.Benefit, int64, error) {
	all, err := s.benefits.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, 0, err
	}
	today := domain.DateOnly(s.now())
	active := make([]domain.Benefit, 0, len(all))
	var total int64
	for _, b := range all {
		if b.StartDate.After(today) {
			continue
		}
		if b.EndDate != nil && b.EndDate.Before(today) {
			continue
		}
		active = append(active, b)
		total += b.MonthlyValue
	}
	return active, total, nil
}

func (s *benefitService) ListByUser(ctx context.Context, userID int64) ([]domain.Benefit, error) {
	return s.benefits.ListByUser(ctx, userID, false)
}

func (s *benefitService) Assign(ctx context.Context, userID int64, input BenefitInput) (*domain.Benefit, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	b := &domain.Benefit{UserID: userID, Active: true}
	if err := s.apply(b, input); err != nil {
		return nil, err
	}
	if _, err := s.benefits.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *benefitService) Update(ctx context.Context, id int64, input BenefitInput) (*domain.Benefit, error) {
	b, err := s.benefits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(b, input); err != nil {
		return nil, err
	}
	if err := s.benefits.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *benefitService) Remove(ctx context.Context, id int64) error {
	return s.benefits.Delete(ctx, id)
}

func (s *benefitService) apply(b *domain.Benefit, input BenefitInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return invalid("name", "is required")
	}
	category := domain.BenefitCategory(strings.ToUpper(strings.TrimSpace(string(input.Category))))
	if category == "" {
		category = domain.BenefitOther
	}
	if !category.Valid() {
		return invalid("category", "unknown category %q", input.Category)
	}
	if input.MonthlyValue < 0 {
		return invalid("monthly_value", "must not be negative")
	}
	start := input.StartDate
	if start.IsZero() {
		start = s.now()
	}
	start = domain.DateOnly(start)
	var end *time.Time
	if input.EndDate != nil {
		e := domain.DateOnly(*input.EndDate)
		if e.Before(start) {
			return invalid("end_date", "must not be before start_date")
		}
		end = &e
	}

	b.Name = name
	b.Category = category
	b.Description = strings.TrimSpace(input.Description)
	b.MonthlyValue = input.MonthlyValue
	b.StartDate = start
	b.EndDate = end
	if input.Active != nil {
		b.Active = *input.Active
	}
	return nil
}
