package maintenance

import (
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

// Location loads tz, falling back to models.DefaultTimezone when tz is empty
// or unknown.
func Location(tz string) *time.Location {
	if tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	loc, err := time.LoadLocation(models.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today returns the calendar date of now in the company's timezone.
func Today(now time.Time, tz string) string {
	return models.FormatDate(now.In(Location(tz)))
}

// AddDays shifts a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	d, err := models.ParseDate(date)
	if err != nil {
		return "", err
	}
	return models.FormatDate(d.AddDate(0, 0, n)), nil
}
