package assistant

import (
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain"
	"pulse/internal/llm"
)

// Snapshot is the slice of an employee's records injected into the prompt.
type Snapshot struct {
	User             domain.User
	Balance          *domain.VacationBalance
	UpcomingRequests []domain.VacationRequest
	Payslips         []domain.Payslip
	Benefits         []domain.Benefit
	Time             *domain.TimeSummary
}

const noData = "no data"

// BuildSystemPrompt renders the assistant instructions followed by the employee's records.
func BuildSystemPrompt(s Snapshot, now time.Time) string {
	var b strings.Builder

	b.WriteString("You are Pulse, the HR self-service assistant of the company.\n")
	b.WriteString("Answer in the language the employee writes in. Be brief and friendly.\n")
	b.WriteString("Only use the employee records below; never invent figures, dates or policies. ")
	b.WriteString("If something is not in the records, say so and suggest the relevant portal section.\n")
	b.WriteString("You cannot approve, change or delete anything; the employee does that in the portal.\n")
	fmt.Fprintf(&b, "If you cannot help, or the topic needs a person (complaints, conflicts, health, legal matters), "+
		"start your reply with %s and tell the employee an HR agent will join the conversation.\n", llm.HandoffMarker)
	fmt.Fprintf(&b, "Today is %s.\n", now.Format(time.DateOnly))

	b.WriteString("\n## Employee\n")
	fmt.Fprintf(&b, "- Name: %s\n", s.User.FullName)
	fmt.Fprintf(&b, "- Email: %s\n", s.User.Email)
	fmt.Fprintf(&b, "- Department: %s\n", orNoData(s.User.Department))
	fmt.Fprintf(&b, "- Position: %s\n", orNoData(s.User.Position))
	if s.User.HireDate != nil {
		fmt.Fprintf(&b, "- Hire date: %s\n", s.User.HireDate.Format(time.DateOnly))
	}

	fmt.Fprintf(&b, "\n## Vacation %d\n", now.Year())
	if s.Balance == nil {
		b.WriteString(noData + "\n")
	} else {
		fmt.Fprintf(&b, "- Total days: %d\n- Used days: %d\n- Pending approval: %d\n- Available to request: %d\n",
			s.Balance.TotalDays, s.Balance.UsedDays, s.Balance.PendingDays, s.Balance.Available)
	}
	if len(s.UpcomingRequests) > 0 {
		b.WriteString("Upcoming requests:\n")
		for _, r := range s.UpcomingRequests {
			fmt.Fprintf(&b, "- %s to %s, %d business days, %s\n",
				r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly), r.Days, strings.ToLower(string(r.Status)))
		}
	}

	b.WriteString("\n## Recent payslips\n")
	if len(s.Payslips) == 0 {
		b.WriteString(noData + "\n")
	}
	for _, p := range s.Payslips {
		fmt.Fprintf(&b, "- %s: gross %s, deductions %s, net %s\n",
			p.Period(),
			FormatMoney(p.GrossAmount, p.Currency),
			FormatMoney(p.TotalDeductions(), p.Currency),
			FormatMoney(p.NetAmount, p.Currency))
		for _, d := range p.Deductions {
			fmt.Fprintf(&b, "  - %s: %s\n", d.Name, FormatMoney(d.Amount, p.Currency))
		}
	}

	b.WriteString("\n## Benefits\n")
	if len(s.Benefits) == 0 {
		b.WriteString(noData + "\n")
	}
	for _, ben := range s.Benefits {
		fmt.Fprintf(&b, "- %s (%s): %s per month", ben.Name, strings.ToLower(string(ben.Category)), FormatMoney(ben.MonthlyValue, ""))
		if ben.Description != "" {
			fmt.Fprintf(&b, ". %s", ben.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Time tracking this month\n")
	if s.Time == nil {
		b.WriteString(noData + "\n")
	} else {
		fmt.Fprintf(&b, "- Worked: %s over %d days\n", formatMinutes(s.Time.WorkedMinutes), s.Time.DaysWorked)
		if s.Time.OpenRecord != nil {
			fmt.Fprintf(&b, "- Currently clocked in since %s\n", s.Time.OpenRecord.ClockIn.Format("2006-01-02 15:04"))
		}
	}

	return b.String()
}

// History converts stored messages into model turns. System notes are
// skipped and HR agent messages become assistant turns.
func History(messages []domain.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Sender {
		case domain.SenderUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case domain.SenderAI:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		case domain.SenderAdmin:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: "[HR agent] " + m.Content})
		}
	}
	return out
}

// FormatMoney renders cents as a decimal amount, e.g. 255000 -> "2550.00 EUR".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	s := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if currency != "" {
		s += " " + currency
	}
	return s
}

func formatMinutes(m int64) string {
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

func orNoData(s string) string {
	if strings.TrimSpace(s) == "" {
		return noData
	}
	return s
}
