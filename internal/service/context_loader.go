package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse/internal/assistant"
	"pulse/internal/domain"
	"pulse/internal/repository"
)

const promptPayslips = 3

// ContextLoader gathers an employee's records for the assistant prompt and the dashboard.
type ContextLoader struct {
	users     repository.UserRepository
	vacations VacationService
	payroll   PayrollService
	benefits  BenefitService
	times     TimeService
	now       func() time.Time
}

func NewContextLoader(users repository.UserRepository, vacations VacationService, payroll PayrollService, benefits BenefitService, times TimeService) *ContextLoader {
	return &ContextLoader{
		users:     users,
		vacations: vacations,
		payroll:   payroll,
		benefits:  benefits,
		times:     times,
		now:       time.Now,
	}
}

// Load fetches the snapshot concurrently. Any failing source fails the whole load.
func (l *ContextLoader) Load(ctx context.Context, userID int64) (*assistant.Snapshot, error) {
	now := l.now()
	today := domain.DateOnly(now)
	snap := &assistant.Snapshot{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := l.users.GetByID(gctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		snap.User = *sanitizeUser(user)
		return nil
	})
	g.Go(func() error {
		balance, err := l.vacations.Balance(gctx, userID, now.Year())
		if err != nil {
			return fmt.Errorf("load vacation balance: %w", err)
		}
		snap.Balance = balance
		return nil
	})
	g.Go(func() error {
		requests, err := l.vacations.ListRequests(gctx, userID)
		if err != nil {
			return fmt.Errorf("load vacation requests: %w", err)
		}
		for _, r := range requests {
			if r.Status != domain.VacationStatusPending && r.Status != domain.VacationStatusApproved {
				continue
			}
			if r.EndDate.Before(today) {
				continue
			}
			snap.UpcomingRequests = append(snap.UpcomingRequests, r)
		}
		return nil
	})
	g.Go(func() error {
		payslips, err := l.payroll.ListByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("load payslips: %w", err)
		}
		if len(payslips) > promptPayslips {
			payslips = payslips[:promptPayslips]
		}
		snap.Payslips = payslips
		return nil
	})
	g.Go(func() error {
		benefits, _, err := l.benefits.ListActive(gctx, userID)
		if err != nil {
			return fmt.Errorf("load benefits: %w", err)
		}
		snap.Benefits = benefits
		return nil
	})
	g.Go(func() error {
		summary, err := l.times.Summary(gctx, userID, 0, 0)
		if err != nil {
			return fmt.Errorf("load time summary: %w", err)
		}
		snap.Time = summary
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Dashboard is the employee landing page.
type Dashboard struct {
	User            domain.User
	Balance         *domain.VacationBalance
	PendingRequests []domain.VacationRequest
	UpcomingLeave   []domain.VacationRequest
	LatestPayslip   *domain.Payslip
	Benefits        []domain.Benefit
	BenefitsTotal   int64
	Time            *domain.TimeSummary
}

func (l *ContextLoader) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	snap, err := l.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		User:     snap.User,
		Balance:  snap.Balance,
		Benefits: snap.Benefits,
		Time:     snap.Time,
	}
	for _, r := range snap.UpcomingRequests {
		if r.Status == domain.VacationStatusPending {
			d.PendingRequests = append(d.PendingRequests, r)
		} else {
			d.UpcomingLeave = append(d.UpcomingLeave, r)
		}
	}
	if len(snap.Payslips) > 0 {
		latest := snap.Payslips[0]
		d.LatestPayslip = &latest
	}
	for _, b := range snap.Benefits {
		d.BenefitsTotal += b.MonthlyValue
	}
	return d, nil
}

// Overview is the admin back-office summary.
type Overview struct {
	Users            int
	PendingVacations int
	ChatSessions     map[domain.ChatStatus]int
}

type OverviewService interface {
	Overview(ctx context.Context) (*Overview, error)
}

type overviewService struct {
	users     repository.UserRepository
	vacations repository.VacationRepository
	chats     repository.ChatRepository
}

func NewOverviewService(users repository.UserRepository, vacations repository.VacationRepository, chats repository.ChatRepository) OverviewService {
	return &overviewService{users: users, vacations: vacations, chats: chats}
}

func (s *overviewService) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.Count(gctx)
		o.Users = n
		return err
	})
	g.Go(func() error {
		n, err := s.vacations.CountByStatus(gctx, domain.VacationStatusPending)
		o.PendingVacations = n
		return err
	})
	g.Go(func() error {
		counts, err := s.chats.CountByStatus(gctx)
		o.ChatSessions = counts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load overview: %w", err)
	}
	if o.ChatSessions == nil {
		o.ChatSessions = make(map[domain.ChatStatus]int)
	}
	for _, status := range []domain.ChatStatus{
		domain.ChatStatusActiveAI,
		domain.ChatStatusWaitingHuman,
		domain.ChatStatusHumanIntervention,
		domain.ChatStatusClosed,
	} {
		if _, ok := o.ChatSessions[status]; !ok {
			o.ChatSessions[status] = 0
		}
	}
	return &o, nil
}
