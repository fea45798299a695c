package domain

import "time"

type VacationStatus string

const (
	VacationStatusPending   VacationStatus = "PENDING"
	VacationStatusApproved  VacationStatus = "APPROVED"
	VacationStatusRejected  VacationStatus = "REJECTED"
	VacationStatusCancelled VacationStatus = "CANCELLED"
)

// Valid reports whether s is a known request status.
func (s VacationStatus) Valid() bool {
	switch s {
	case VacationStatusPending, VacationStatusApproved, VacationStatusRejected, VacationStatusCancelled:
		return true
	}
	return false
}

// VacationPeriod is the yearly vacation allotment of a user.
type VacationPeriod struct {
	ID        int64
	UserID    int64
	Year      int
	TotalDays int
	UsedDays  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p VacationPeriod) Available() int {
	return p.TotalDays - p.UsedDays
}

// VacationRequest is a request for days off that an admin approves or rejects.
type VacationRequest struct {
	ID            int64
	UserID        int64
	StartDate     time.Time
	EndDate       time.Time
	Days          int
	Reason        string
	Status        VacationStatus
	ReviewerID    *int64
	ReviewComment string
	ReviewedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VacationBalance summarises a period together with days still awaiting review.
type VacationBalance struct {
	Year        int
	TotalDays   int
	UsedDays    int
	PendingDays int
	Available   int
}

// Holiday is a company-wide non-working day.
type Holiday struct {
	ID   int64
	Date time.Time
	Name string
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BusinessDays counts Monday-Friday days in [start, end] that are not holidays.
func BusinessDays(start, end time.Time, holidays []Holiday) int {
	start = DateOnly(start)
	end = DateOnly(end)
	if end.Before(start) {
		return 0
	}

	skip := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		skip[DateOnly(h.Date).Format(time.DateOnly)] = struct{}{}
	}

	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if _, ok := skip[d.Format(time.DateOnly)]; ok {
			continue
		}
		days++
	}
	return days
}
