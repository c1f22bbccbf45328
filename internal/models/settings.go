package models

import (
	"strings"
	"time"
	_ "time/tzdata" // company timezones must resolve on hosts without zoneinfo
)

// DefaultTimezone is used whenever the company has not configured one.
const DefaultTimezone = "America/New_York"

// CompanySettings holds company level configuration.
type CompanySettings struct {
	CompanyName string    `json:"company_name" bson:"company_name"`
	Timezone    string    `json:"company_timezone" bson:"company_timezone"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

func (s *CompanySettings) Validate() error {
	if strings.TrimSpace(s.Timezone) == "" {
		return invalid("company_timezone", "is required")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return invalid("company_timezone", "unknown timezone")
	}
	return nil
}

// CompanyMaintenanceSettings tunes maintenance and compliance reminders.
type CompanyMaintenanceSettings struct {
	UpcomingWindowDays        int       `json:"upcoming_window_days" bson:"upcoming_window_days"`
	SpillKitCheckIntervalDays int       `json:"spill_kit_check_interval_days" bson:"spill_kit_check_interval_days"`
	DefaultReminderDays       int       `json:"default_reminder_days" bson:"default_reminder_days"`
	NotificationEmail         string    `json:"notification_email,omitempty" bson:"notification_email,omitempty"`
	UpdatedAt                 time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultMaintenanceSettings applies when nothing has been saved yet.
func DefaultMaintenanceSettings() CompanyMaintenanceSettings {
	return CompanyMaintenanceSettings{
		UpcomingWindowDays:        7,
		SpillKitCheckIntervalDays: 30,
		DefaultReminderDays:       3,
	}
}

func (s *CompanyMaintenanceSettings) Validate() error {
	if s.UpcomingWindowDays < 1 || s.UpcomingWindowDays > 365 {
		return invalid("upcoming_window_days", "must be between 1 and 365")
	}
	if s.SpillKitCheckIntervalDays < 1 || s.SpillKitCheckIntervalDays > 365 {
		return invalid("spill_kit_check_interval_days", "must be between 1 and 365")
	}
	if s.DefaultReminderDays < 0 {
		return invalid("default_reminder_days", "must not be negative")
	}
	if s.NotificationEmail != "" && !strings.Contains(s.NotificationEmail, "@") {
		return invalid("notification_email", "invalid email format")
	}
	return nil
}
