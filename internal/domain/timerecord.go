package domain

import "time"

// TimeRecord is a clock-in/clock-out pair. ClockOut is nil while the record is open.
type TimeRecord struct {
	ID        int64
	UserID    int64
	ClockIn   time.Time
	ClockOut  *time.Time
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r TimeRecord) Open() bool {
	return r.ClockOut == nil
}

// Duration of a closed record; zero while open.
func (r TimeRecord) Duration() time.Duration {
	if r.ClockOut == nil {
		return 0
	}
	return r.ClockOut.Sub(r.ClockIn)
}

// TimeSummary aggregates closed records over a range.
type TimeSummary struct {
	From          time.Time
	To            time.Time
	WorkedMinutes int64
	DaysWorked    int
	Records       int
	OpenRecord    *TimeRecord
}

// Summarize totals closed records. Days are counted by clock-in date.
func Summarize(records []TimeRecord, from, to time.Time) TimeSummary {
	summary := TimeSummary{From: from, To: to}
	days := make(map[string]struct{})
	for i := range records {
		rec := records[i]
		if rec.Open() {
			summary.OpenRecord = &rec
			continue
		}
		summary.Records++
		summary.WorkedMinutes += int64(rec.Duration() / time.Minute)
		days[rec.ClockIn.Format(time.DateOnly)] = struct{}{}
	}
	summary.DaysWorked = len(days)
	return summary
}
