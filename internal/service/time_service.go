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

type TimeService interface {
	ClockIn(ctx context.Context, userID int64, note string) (*domain.TimeRecord, error)
	ClockOut(ctx context.Context, userID int64) (*domain.TimeRecord, error)
	Records(ctx context.Context, userID int64, from, to time.Time) ([]domain.TimeRecord, error)
	Summary(ctx context.Context, userID int64, year, month int) (*domain.TimeSummary, error)
}

type timeService struct {
	records repository.TimeRecordRepository
	now     func() time.Time
}

func NewTimeService(records repository.TimeRecordRepository) TimeService {
	return &timeService{records: records, now: time.Now}
}

func (s *timeService) ClockIn(ctx context.Context, userID int64, note string) (*domain.TimeRecord, error) {
	if _, err := s.records.GetOpen(ctx, userID); err == nil {
		return nil, ErrAlreadyClockedIn
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	rec := &domain.TimeRecord{
		UserID:  userID,
		ClockIn: s.now().UTC().Truncate(time.Second),
		Note:    strings.TrimSpace(note),
	}
	if _, err := s.records.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyClockedIn
		}
		return nil, err
	}
	return rec, nil
}

func (s *timeService) ClockOut(ctx context.Context, userID int64) (*domain.TimeRecord, error) {
	rec, err := s.records.GetOpen(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotClockedIn
		}
		return nil, err
	}

	out := s.now().UTC().Truncate(time.Second)
	if out.Before(rec.ClockIn) {
		return nil, invalid("clock_out", "cannot be before clock-in at %s", rec.ClockIn.Format(time.RFC3339))
	}
	if err := s.records.Close(ctx, rec.ID, out); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrNotClockedIn
		}
		return nil, err
	}
	rec.ClockOut = &out
	return rec, nil
}

// Records lists records whose clock-in is in [from, to). Zero bounds default to the current month.
func (s *timeService) Records(ctx context.Context, userID int64, from, to time.Time) ([]domain.TimeRecord, error) {
	monthStart, monthEnd := monthRange(s.now())
	if from.IsZero() {
		from = monthStart
	}
	if to.IsZero() {
		to = monthEnd
	}
	if !to.After(from) {
		return nil, invalid("to", "must be after from")
	}
	return s.records.ListBetween(ctx, userID, from, to)
}

func (s *timeService) Summary(ctx context.Context, userID int64, year, month int) (*domain.TimeSummary, error) {
	from, to := monthRange(s.now())
	if year != 0 || month != 0 {
		if month < 1 || month > 12 {
			return nil, invalid("month", "must be between 1 and 12")
		}
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}

	records, err := s.records.ListBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list time records: %w", err)
	}
	summary := domain.Summarize(records, from, to)

	open, err := s.records.GetOpen(ctx, userID)
	switch {
	case err == nil:
		summary.OpenRecord = open
	case errors.Is(err, repository.ErrNotFound):
		summary.OpenRecord = nil
	default:
		return nil, err
	}
	return &summary, nil
}

func monthRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
