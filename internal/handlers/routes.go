package handlers

import (
	"context"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
)

// Server groups the handlers mounted by Routes.
type Server struct {
	Auth        *AuthHandler
	Vehicles    *VehicleHandler
	Maintenance *MaintenanceHandler
	Incidents   *IncidentHandler
	SpillKits   *SpillKitHandler
	Settings    *SettingsHandler
	Weather     *WeatherHandler
	AuthMW      *middleware.AuthMiddleware
	Metrics     *metrics.Metrics
	Ping        func(ctx context.Context) error
}

// Routes builds the API mux. Authentication is applied per route so the
// mux sees the original request and sets its matched pattern.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return s.AuthMW.Authenticate(h)
	}
	can := func(action string, h http.HandlerFunc) http.Handler {
		return s.AuthMW.Authenticate(s.AuthMW.RequirePermission(action)(h))
	}

	mux.Handle("GET /health", Health(s.Ping))
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	// Auth and users
	mux.HandleFunc("POST /api/auth/login", s.Auth.Login)
	mux.Handle("POST /api/auth/register", can(models.ActionManageUsers, s.Auth.Register))
	mux.Handle("GET /api/auth/profile", authed(s.Auth.GetProfile))
	mux.Handle("PUT /api/auth/profile", authed(s.Auth.UpdateProfile))
	mux.Handle("POST /api/auth/change-password", authed(s.Auth.ChangePassword))
	mux.Handle("GET /api/users", can(models.ActionManageIncidents, s.Auth.ListUsers))
	mux.Handle("PATCH /api/users/{id}/active", can(models.ActionManageUsers, s.Auth.SetActive))

	mux.Handle("GET /api/vehicles", can(models.ActionViewVehicles, s.Vehicles.List))
	mux.Handle("GET /api/vehicles/{id}", can(models.ActionViewVehicles, s.Vehicles.Get))

	// Maintenance
	mux.Handle("GET /api/maintenance/records", can(models.ActionViewMaintenance, s.Maintenance.List))
	mux.Handle("POST /api/maintenance/records", can(models.ActionManageMaintenance, s.Maintenance.Create))
	mux.Handle("POST /api/maintenance/recurring", can(models.ActionManageMaintenance, s.Maintenance.CreateRecurring))
	mux.Handle("PATCH /api/maintenance/records/{id}/status", can(models.ActionManageMaintenance, s.Maintenance.UpdateStatus))
	mux.Handle("DELETE /api/maintenance/records/{id}", can(models.ActionManageMaintenance, s.Maintenance.Delete))
	mux.Handle("GET /api/maintenance/kpis", can(models.ActionViewMaintenance, s.Maintenance.KPIs))
	mux.Handle("GET /api/maintenance/overdue", can(models.ActionViewMaintenance, s.Maintenance.Overdue))
	mux.Handle("GET /api/maintenance/upcoming", can(models.ActionViewMaintenance, s.Maintenance.Upcoming))
	mux.Handle("GET /api/maintenance/task-types", can(models.ActionViewMaintenance, s.Maintenance.TaskTypes))
	mux.Handle("GET /api/maintenance/vendors", can(models.ActionViewMaintenance, s.Maintenance.Vendors))

	// Incidents
	mux.Handle("POST /api/incidents", can(models.ActionCreateIncident, s.Incidents.Create))
	mux.Handle("GET /api/incidents", can(models.ActionViewIncidents, s.Incidents.List))
	mux.Handle("GET /api/incidents/export", can(models.ActionExportIncidents, s.Incidents.Export))
	mux.Handle("GET /api/incidents/{id}", can(models.ActionViewIncidents, s.Incidents.Get))
	mux.Handle("PATCH /api/incidents/{id}/status", can(models.ActionManageIncidents, s.Incidents.UpdateStatus))
	mux.Handle("DELETE /api/incidents/{id}", can(models.ActionManageIncidents, s.Incidents.Delete))
	mux.Handle("POST /api/incidents/{id}/notify", can(models.ActionManageIncidents, s.Incidents.Notify))

	// Spill kits
	mux.Handle("GET /api/spill-kits/template", can(models.ActionViewSpillKitChecks, s.SpillKits.Template))
	mux.Handle("POST /api/spill-kits/checks", can(models.ActionCreateSpillKitCheck, s.SpillKits.CreateCheck))
	mux.Handle("GET /api/spill-kits/checks", can(models.ActionViewSpillKitChecks, s.SpillKits.ListChecks))
	mux.Handle("DELETE /api/spill-kits/checks/{id}", can(models.ActionManageSpillKitChecks, s.SpillKits.DeleteCheck))
	mux.Handle("POST /api/spill-kits/checks/{id}/restock-request", can(models.ActionManageSpillKitChecks, s.SpillKits.RestockRequest))

	mux.Handle("GET /api/settings/company", can(models.ActionViewMaintenance, s.Settings.GetCompany))
	mux.Handle("PUT /api/settings/company", can(models.ActionManageSettings, s.Settings.UpdateCompany))
	mux.Handle("GET /api/settings/maintenance", can(models.ActionViewMaintenance, s.Settings.GetMaintenance))
	mux.Handle("PUT /api/settings/maintenance", can(models.ActionManageSettings, s.Settings.UpdateMaintenance))

	mux.Handle("GET /api/weather", can(models.ActionCreateSpillKitCheck, s.Weather.Current))

	return mux
}
