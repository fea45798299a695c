package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBusinessDays(t *testing.T) {
	holidays := []Holiday{{Date: date(2026, time.December, 25), Name: "Christmas"}}

	cases := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"single weekday", date(2026, time.March, 2), date(2026, time.March, 2), 1},
		{"full week", date(2026, time.March, 2), date(2026, time.March, 8), 5},
		{"weekend only", date(2026, time.March, 7), date(2026, time.March, 8), 0},
		{"holiday skipped", date(2026, time.December, 21), date(2026, time.December, 25), 4},
		{"reversed range", date(2026, time.March, 8), date(2026, time.March, 2), 0},
		{"time of day ignored", date(2026, time.March, 2).Add(23 * time.Hour), date(2026, time.March, 3).Add(time.Hour), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BusinessDays(tc.start, tc.end, holidays))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(ChatStatusActiveAI, ChatStatusWaitingHuman))
	assert.True(t, CanTransition(ChatStatusWaitingHuman, ChatStatusActiveAI))
	assert.True(t, CanTransition(ChatStatusWaitingHuman, ChatStatusHumanIntervention))
	assert.True(t, CanTransition(ChatStatusActiveAI, ChatStatusHumanIntervention))
	assert.True(t, CanTransition(ChatStatusHumanIntervention, ChatStatusActiveAI))

	assert.False(t, CanTransition(ChatStatusHumanIntervention, ChatStatusWaitingHuman))
	assert.False(t, CanTransition(ChatStatusClosed, ChatStatusActiveAI))
	assert.False(t, CanTransition(ChatStatusActiveAI, ChatStatusActiveAI))
}

func TestSummarize(t *testing.T) {
	in := date(2026, time.March, 2).Add(9 * time.Hour)
	out := in.Add(8*time.Hour + 30*time.Minute)
	in2 := in.Add(4 * time.Hour)
	out2 := in2.Add(30 * time.Minute)
	open := date(2026, time.March, 3).Add(9 * time.Hour)

	summary := Summarize([]TimeRecord{
		{ID: 1, ClockIn: in, ClockOut: &out},
		{ID: 2, ClockIn: in2, ClockOut: &out2},
		{ID: 3, ClockIn: open},
	}, date(2026, time.March, 1), date(2026, time.April, 1))

	assert.Equal(t, int64(540), summary.WorkedMinutes)
	assert.Equal(t, 1, summary.DaysWorked)
	assert.Equal(t, 2, summary.Records)
	if assert.NotNil(t, summary.OpenRecord) {
		assert.Equal(t, int64(3), summary.OpenRecord.ID)
	}
}

func TestPayslipTotals(t *testing.T) {
	p := Payslip{Year: 2026, Month: 3, Deductions: []Deduction{{Name: "IRPF", Amount: 30000}, {Name: "SS", Amount: 12000}}}
	assert.Equal(t, int64(42000), p.TotalDeductions())
	assert.Equal(t, "2026-03", p.Period())
}
