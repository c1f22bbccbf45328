package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/maintenance"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	log "github.com/sirupsen/logrus"
)

// Calendar answers "what day is it for the company" and reads the
// maintenance settings that tune date windows.
type Calendar struct {
	settings   db.SettingsCollection
	fallbackTZ string
	now        func() time.Time
}

func NewCalendar(settings db.SettingsCollection, fallbackTZ string) *Calendar {
	if fallbackTZ == "" {
		fallbackTZ = models.DefaultTimezone
	}
	return &Calendar{settings: settings, fallbackTZ: fallbackTZ, now: time.Now}
}

// Now is the current instant.
func (c *Calendar) Now() time.Time {
	return c.now()
}

// Timezone returns the configured company timezone, or the fallback when
// settings are missing or unreadable.
func (c *Calendar) Timezone(ctx context.Context) string {
	s, err := c.settings.GetCompanySettings(ctx)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Warn("Failed to load company settings, using fallback timezone")
		}
		return c.fallbackTZ
	}
	if s.Timezone == "" {
		return c.fallbackTZ
	}
	return s.Timezone
}

// Today is the company-local calendar date.
func (c *Calendar) Today(ctx context.Context) string {
	return maintenance.Today(c.now(), c.Timezone(ctx))
}

// MaintenanceSettings returns saved settings or the defaults.
func (c *Calendar) MaintenanceSettings(ctx context.Context) models.CompanyMaintenanceSettings {
	s, err := c.settings.GetMaintenanceSettings(ctx)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Warn("Failed to load maintenance settings, using defaults")
		}
		return models.DefaultMaintenanceSettings()
	}
	return *s
}
