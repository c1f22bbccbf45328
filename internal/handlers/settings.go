package handlers

import (
	"errors"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	log "github.com/sirupsen/logrus"
)

// SettingsHandler reads and writes company settings.
type SettingsHandler struct {
	settings db.SettingsCollection
	calendar *Calendar
	cache    readCache
}

func NewSettingsHandler(settings db.SettingsCollection, calendar *Calendar, store *cache.Store) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		calendar: calendar,
		cache:    readCache{store: store},
	}
}

// GetCompany handles GET /api/settings/company
func (h *SettingsHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetCompanySettings(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.CompanySettings{Timezone: h.calendar.fallbackTZ})
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load company settings")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load company settings")
		return
	}
	if s.Timezone == "" {
		s.Timezone = h.calendar.fallbackTZ
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateCompany handles PUT /api/settings/company
func (h *SettingsHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var s models.CompanySettings
	if !decodeAndValidate(w, r, &s) {
		return
	}
	s.UpdatedAt = h.calendar.Now()
	if err := h.settings.SaveCompanySettings(r.Context(), s); err != nil {
		log.WithError(err).Error("Failed to save company settings")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to save company settings")
		return
	}
	h.cache.invalidate(cache.SettingsMutation...)
	log.WithField("timezone", s.Timezone).Info("Company settings updated")
	writeJSON(w, http.StatusOK, s)
}

// GetMaintenance handles GET /api/settings/maintenance
func (h *SettingsHandler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.GetMaintenanceSettings(r.Context())
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, models.DefaultMaintenanceSettings())
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load maintenance settings")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load maintenance settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateMaintenance handles PUT /api/settings/maintenance
func (h *SettingsHandler) UpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	var s models.CompanyMaintenanceSettings
	if !decodeAndValidate(w, r, &s) {
		return
	}
	s.UpdatedAt = h.calendar.Now()
	if err := h.settings.SaveMaintenanceSettings(r.Context(), s); err != nil {
		log.WithError(err).Error("Failed to save maintenance settings")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to save maintenance settings")
		return
	}
	h.cache.invalidate(cache.SettingsMutation...)
	writeJSON(w, http.StatusOK, s)
}
