package domain

import "time"

type BenefitCategory string

const (
	BenefitHealth    BenefitCategory = "HEALTH"
	BenefitMeal      BenefitCategory = "MEAL"
	BenefitTransport BenefitCategory = "TRANSPORT"
	BenefitTraining  BenefitCategory = "TRAINING"
	BenefitOther     BenefitCategory = "OTHER"
)

func (c BenefitCategory) Valid() bool {
	switch c {
	case BenefitHealth, BenefitMeal, BenefitTransport, BenefitTraining, BenefitOther:
		return true
	}
	return false
}

// Benefit is a perk assigned to a user. MonthlyValue is in cents.
type Benefit struct {
	ID           int64
	UserID       int64
	Name         string
	Category     BenefitCategory
	Description  string
	MonthlyValue int64
	StartDate    time.Time
	EndDate      *time.Time
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
