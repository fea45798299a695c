package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

// VacationService covers employee requests, balances and the admin review queue.
type VacationService interface {
	Balance(ctx context.Context, userID int64, year int) (*domain.VacationBalance, error)
	ListRequests(ctx context.Context, userID int64) ([]domain.VacationRequest, error)
	Request(ctx context.Context, userID int64, input VacationRequestInput) (*domain.VacationRequest, error)
	Cancel(ctx context.Context, userID, requestID int64) (*domain.VacationRequest, error)

	ListByStatus(ctx context.Context, status domain.VacationStatus) ([]domain.VacationRequest, error)
	Approve(ctx context.Context, reviewerID, requestID int64, comment string) (*domain.VacationRequest, error)
	Reject(ctx context.Context, reviewerID, requestID int64, comment string) (*domain.VacationRequest, error)
	SetAllotment(ctx context.Context, userID int64, year, days int) (*domain.VacationPeriod, error)

	Holidays(ctx context.Context, year int) ([]domain.Holiday, error)
	AddHoliday(ctx context.Context, date time.Time, name string) (*domain.Holiday, error)
	RemoveHoliday(ctx context.Context, id int64) error
}

type VacationRequestInput struct {
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

type vacationService struct {
	vacations repository.VacationRepository
	holidays  repository.HolidayRepository
	users     repository.UserRepository
	now       func() time.Time
}

func NewVacationService(vacations repository.VacationRepository, holidays repository.HolidayRepository, users repository.UserRepository) VacationService {
	return &vacationService{
		vacations: vacations,
		holidays:  holidays,
		users:     users,
		now:       time.Now,
	}
}

// Balance reports the period totals for a year. A user without a period has a zero balance.
func (s *vacationService) Balance(ctx context.Context, userID int64, year int) (*domain.VacationBalance, error) {
	balance := &domain.VacationBalance{Year: year}

	period, err := s.vacations.GetPeriod(ctx, userID, year)
	switch {
	case err == nil:
		balance.TotalDays = period.TotalDays
		balance.UsedDays = period.UsedDays
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, err
	}

	pending, err := s.vacations.PendingDays(ctx, userID, year)
	if err != nil {
		return nil, err
	}
	balance.PendingDays = pending
	balance.Available = balance.TotalDays - balance.UsedDays - balance.PendingDays
	return balance, nil
}

func (s *vacationService) ListRequests(ctx context.Context, userID int64) ([]domain.VacationRequest, error) {
	return s.vacations.ListRequestsByUser(ctx, userID)
}

func (s *vacationService) Request(ctx context.Context, userID int64, input VacationRequestInput) (*domain.VacationRequest, error) {
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, invalid("dates", "start_date and end_date are required")
	}
	start := domain.DateOnly(input.StartDate)
	end := domain.DateOnly(input.EndDate)
	today := domain.DateOnly(s.now())

	if end.Before(start) {
		return nil, invalid("end_date", "must not be before start_date")
	}
	if start.Year() != end.Year() {
		return nil, invalid("end_date", "a request must stay within one calendar year")
	}
	if start.Before(today) {
		return nil, invalid("start_date", "must not be in the past")
	}

	holidays, err := s.holidays.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	days := domain.BusinessDays(start, end, holidays)
	if days == 0 {
		return nil, invalid("dates", "the range contains no business days")
	}

	req := &domain.VacationRequest{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Days:      days,
		Reason:    strings.TrimSpace(input.Reason),
		Status:    domain.VacationStatusPending,
	}
	if _, err := s.vacations.SubmitRequest(ctx, req); err != nil {
		switch {
		case errors.Is(err, repository.ErrOverlapping):
			return nil, fmt.Errorf("%w: %v", ErrOverlappingRequest, err)
		case errors.Is(err, repository.ErrInsufficientDays):
			return nil, fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
		}
		return nil, err
	}
	return req, nil
}

func (s *vacationService) Cancel(ctx context.Context, userID, requestID int64) (*domain.VacationRequest, error) {
	req, err := s.vacations.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrNotFound
	}
	if err := s.vacations.Cancel(ctx, requestID); err != nil {
		return nil, err
	}
	return s.vacations.GetRequest(ctx, requestID)
}

func (s *vacationService) ListByStatus(ctx context.Context, status domain.VacationStatus) ([]domain.VacationRequest, error) {
	if status == "" {
		status = domain.VacationStatusPending
	}
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	return s.vacations.ListRequestsByStatus(ctx, status)
}

func (s *vacationService) Approve(ctx context.Context, reviewerID, requestID int64, comment string) (*domain.VacationRequest, error) {
	err := s.vacations.Approve(ctx, requestID, reviewerID, strings.TrimSpace(comment), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientDays) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
		}
		return nil, err
	}
	return s.vacations.GetRequest(ctx, requestID)
}

func (s *vacationService) Reject(ctx context.Context, reviewerID, requestID int64, comment string) (*domain.VacationRequest, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, invalid("comment", "a rejection needs a comment")
	}
	if err := s.vacations.Reject(ctx, requestID, reviewerID, comment, s.now()); err != nil {
		return nil, err
	}
	return s.vacations.GetRequest(ctx, requestID)
}

func (s *vacationService) SetAllotment(ctx context.Context, userID int64, year, days int) (*domain.VacationPeriod, error) {
	if year < 2000 || year > 2100 {
		return nil, invalid("year", "out of range")
	}
	if days < 0 || days > 366 {
		return nil, invalid("total_days", "must be between 0 and 366")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if period, err := s.vacations.GetPeriod(ctx, userID, year); err == nil && days < period.UsedDays {
		return nil, invalid("total_days", "cannot be lower than the %d days already used", period.UsedDays)
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.vacations.UpsertPeriod(ctx, userID, year, days)
}

func (s *vacationService) Holidays(ctx context.Context, year int) ([]domain.Holiday, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return s.holidays.ListBetween(ctx, from, to)
}

func (s *vacationService) AddHoliday(ctx context.Context, date time.Time, name string) (*domain.Holiday, error) {
	name = strings.TrimSpace(name)
	if date.IsZero() {
		return nil, invalid("date", "is required")
	}
	if name == "" {
		return nil, invalid("name", "is required")
	}
	holiday := &domain.Holiday{Date: domain.DateOnly(date), Name: name}
	if _, err := s.holidays.Create(ctx, holiday); err != nil {
		return nil, err
	}
	return holiday, nil
}

func (s *vacationService) RemoveHoliday(ctx context.Context, id int64) error {
	return s.holidays.Delete(ctx, id)
}
