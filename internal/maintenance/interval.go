// Package maintenance holds the scheduling rules of the maintenance module:
// recurring service intervals, status buckets relative to the company's
// local date, and dashboard KPIs.
package maintenance

import (
	"errors"
	"fmt"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

// IntervalType is the unit of a recurring service interval.
type IntervalType string

const (
	IntervalDays   IntervalType = "days"
	IntervalWeeks  IntervalType = "weeks"
	IntervalMonths IntervalType = "months"
	IntervalMiles  IntervalType = "miles"
)

// DaysPerMonth is the flat month length used for month intervals. Existing
// recurring services were scheduled with it, so it is not calendar aware.
const DaysPerMonth = 30

var (
	ErrInvalidInterval = errors.New("invalid service interval")
	ErrMileageRequired = errors.New("current mileage is required for mileage intervals")
)

// NextService is the next due point of a recurring service. Exactly one of
// the fields is set.
type NextService struct {
	Date    *string `json:"next_service_date"`
	Mileage *int    `json:"next_service_mileage"`
}

// TriggerType reports whether the next service is due by date or mileage.
func (n NextService) TriggerType() models.TriggerType {
	if n.Mileage != nil {
		return models.TriggerMileageBased
	}
	return models.TriggerDateBased
}

// IntervalDaysFor converts a date interval to days.
func IntervalDaysFor(t IntervalType, value int) (int, error) {
	switch t {
	case IntervalDays:
		return value, nil
	case IntervalWeeks:
		return value * 7, nil
	case IntervalMonths:
		return value * DaysPerMonth, nil
	}
	return 0, fmt.Errorf("%w: unit %q has no day length", ErrInvalidInterval, t)
}

// ResolveNextService computes when a recurring service is next due.
// Mileage intervals add to the current odometer reading; all other units add
// days to start.
func ResolveNextService(start time.Time, t IntervalType, value int, currentMileage *int) (NextService, error) {
	if value <= 0 {
		return NextService{}, fmt.Errorf("%w: value must be positive, got %d", ErrInvalidInterval, value)
	}
	if t == IntervalMiles {
		if currentMileage == nil {
			return NextService{}, ErrMileageRequired
		}
		next := *currentMileage + value
		return NextService{Mileage: &next}, nil
	}
	days, err := IntervalDaysFor(t, value)
	if err != nil {
		return NextService{}, err
	}
	next := models.FormatDate(start.AddDate(0, 0, days))
	return NextService{Date: &next}, nil
}
