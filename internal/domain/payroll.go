package domain

import "time"

type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusRendering DocumentStatus = "rendering"
	DocumentStatusUploading DocumentStatus = "uploading"
	DocumentStatusPublished DocumentStatus = "published"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Deduction is one line subtracted from the gross amount. Amounts are cents.
type Deduction struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Payslip is the monthly pay statement of a user.
type Payslip struct {
	ID               int64
	UserID           int64
	Year             int
	Month            int
	Currency         string
	GrossAmount      int64
	Deductions       []Deduction
	NetAmount        int64
	DocumentStatus   DocumentStatus
	DocumentKey      string
	DocumentLocation string
	ErrorMessage     string
	IssuedAt         time.Time
	PublishedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p Payslip) TotalDeductions() int64 {
	var total int64
	for _, d := range p.Deductions {
		total += d.Amount
	}
	return total
}

// Period renders the payslip month as YYYY-MM.
func (p Payslip) Period() string {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
