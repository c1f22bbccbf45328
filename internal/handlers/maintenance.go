package handlers

import (
	"errors"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/maintenance"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceHandler serves maintenance records and the dashboard views
// derived from them.
type MaintenanceHandler struct {
	records   db.MaintenanceCollection
	vehicles  db.VehicleCollection
	calendar  *Calendar
	cache     readCache
	metrics   *metrics.Metrics
	publisher notify.Publisher
	maxLimit  int
}

func NewMaintenanceHandler(
	records db.MaintenanceCollection,
	vehicles db.VehicleCollection,
	calendar *Calendar,
	store *cache.Store,
	m *metrics.Metrics,
	publisher notify.Publisher,
	maxLimit int,
) *MaintenanceHandler {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &MaintenanceHandler{
		records:   records,
		vehicles:  vehicles,
		calendar:  calendar,
		cache:     readCache{store: store, metrics: m},
		metrics:   m,
		publisher: publisher,
		maxLimit:  maxLimit,
	}
}

// List handles GET /api/maintenance/records?bucket=&vehicle_id=&priority=
func (h *MaintenanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bucket, err := maintenance.ParseBucket(q.Get("bucket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	priority := models.Priority(q.Get("priority"))
	if priority != "" && !priority.Valid() {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid priority")
		return
	}
	page, err := parsePage(r, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	today := h.calendar.Today(r.Context())
	filter := db.MaintenanceFilter{
		Bucket:    bucket,
		Today:     today,
		VehicleID: q.Get("vehicle_id"),
		Priority:  priority,
		Limit:     page.Limit,
		Offset:    page.Offset,
	}

	key := cache.Key{Scope: cache.MaintenanceRecords, Variant: today + "?" + q.Encode()}
	h.cache.serve(w, key, func() (interface{}, bool) {
		records, err := h.records.FindMaintenance(r.Context(), filter)
		if err != nil {
			log.WithError(err).Error("Failed to list maintenance records")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load maintenance records")
			return nil, false
		}
		return records, true
	})
}

// Create handles POST /api/maintenance/records. Incomplete forms are
// rejected before anything is written.
func (h *MaintenanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMaintenanceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec := req.Record(h.calendar.Now())
	if rec.Status == models.MaintenanceCompleted {
		rec.CompletedDate = h.calendar.Today(r.Context())
	}
	h.insert(w, r, rec)
}

// CreateRecurring handles POST /api/maintenance/recurring. A mileage
// interval without a reading uses the vehicle's odometer.
func (h *MaintenanceHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req models.RecurringServiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	intervalType := maintenance.IntervalType(req.IntervalType)
	mileage := req.CurrentMileage
	if intervalType == maintenance.IntervalMiles && mileage == nil {
		vehicle, err := h.vehicles.FindVehicleByID(r.Context(), req.VehicleID)
		if err != nil {
			writeLookupError(w, err, "Vehicle", "Failed to create recurring service")
			return
		}
		mileage = vehicle.CurrentMileage
	}

	start, _ := models.ParseDate(req.StartDate)
	next, err := maintenance.ResolveNextService(start, intervalType, req.IntervalValue, mileage)
	if err != nil {
		if errors.Is(err, maintenance.ErrInvalidInterval) || errors.Is(err, maintenance.ErrMileageRequired) {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		log.WithError(err).Error("Failed to resolve next service")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to create recurring service")
		return
	}

	now := h.calendar.Now()
	rec := models.MaintenanceRecord{
		ID:                      primitive.NewObjectID(),
		VehicleID:               req.VehicleID,
		TaskTypeID:              req.TaskTypeID,
		VendorID:                req.VendorID,
		Description:             req.Description,
		ScheduledDate:           req.StartDate,
		Status:                  models.MaintenanceScheduled,
		Priority:                req.Priority,
		Cost:                    req.Cost,
		NotificationTriggerType: next.TriggerType(),
		IntervalType:            req.IntervalType,
		IntervalValue:           req.IntervalValue,
		NextServiceDate:         next.Date,
		NextServiceMileage:      next.Mileage,
		Notes:                   req.Notes,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if rec.Priority == "" {
		rec.Priority = models.PriorityMedium
	}
	h.insert(w, r, rec)
}

func (h *MaintenanceHandler) insert(w http.ResponseWriter, r *http.Request, rec models.MaintenanceRecord) {
	if err := h.records.InsertMaintenance(r.Context(), rec); err != nil {
		log.WithError(err).WithField("vehicle_id", rec.VehicleID).Error("Failed to create maintenance record")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to create maintenance record")
		return
	}
	h.cache.invalidate(cache.MaintenanceMutation...)
	h.metrics.MaintenanceCreated(string(rec.NotificationTriggerType))

	log.WithFields(log.Fields{
		"record_id":      rec.ID.Hex(),
		"vehicle_id":     rec.VehicleID,
		"scheduled_date": rec.ScheduledDate,
	}).Info("Maintenance record created")
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateStatus handles PATCH /api/maintenance/records/{id}/status.
// Completing stamps today's company date; any other status clears it.
func (h *MaintenanceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req models.StatusUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	completedDate := ""
	if req.Status == models.MaintenanceCompleted {
		completedDate = h.calendar.Today(r.Context())
	}

	if err := h.records.UpdateMaintenanceStatus(r.Context(), id, req.Status, completedDate); err != nil {
		writeLookupError(w, err, "Maintenance record", "Failed to update maintenance record")
		return
	}
	h.cache.invalidate(cache.MaintenanceMutation...)

	if req.Status == models.MaintenanceCompleted {
		publish(r.Context(), h.publisher, notify.MaintenanceCompleted, map[string]string{
			"record_id":      id,
			"completed_date": completedDate,
		})
	}

	resp := map[string]string{"id": id, "status": string(req.Status)}
	if completedDate != "" {
		resp["completed_date"] = completedDate
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/maintenance/records/{id}
func (h *MaintenanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.records.DeleteMaintenance(r.Context(), id); err != nil {
		writeLookupError(w, err, "Maintenance record", "Failed to delete maintenance record")
		return
	}
	h.cache.invalidate(cache.MaintenanceMutation...)

	log.WithField("record_id", id).Info("Maintenance record deleted")
	w.WriteHeader(http.StatusNoContent)
}

// KPIs handles GET /api/maintenance/kpis
func (h *MaintenanceHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	today := h.calendar.Today(r.Context())
	window := h.calendar.MaintenanceSettings(r.Context()).UpcomingWindowDays

	key := cache.Key{Scope: cache.MaintenanceKPIs, Variant: today}
	h.cache.serve(w, key, func() (interface{}, bool) {
		records, err := h.records.FindMaintenance(r.Context(), db.MaintenanceFilter{})
		if err != nil {
			log.WithError(err).Error("Failed to compute maintenance KPIs")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load maintenance KPIs")
			return nil, false
		}
		return maintenance.ComputeKPIs(records, today, window), true
	})
}

// Overdue handles GET /api/maintenance/overdue
func (h *MaintenanceHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	today := h.calendar.Today(r.Context())
	filter := db.MaintenanceFilter{Bucket: maintenance.BucketOverdue, Today: today}

	h.cache.serve(w, cache.Key{Scope: cache.OverdueMaintenance, Variant: today}, func() (interface{}, bool) {
		records, err := h.records.FindMaintenance(r.Context(), filter)
		if err != nil {
			log.WithError(err).Error("Failed to list overdue maintenance")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load overdue maintenance")
			return nil, false
		}
		return records, true
	})
}

// Upcoming handles GET /api/maintenance/upcoming. The window comes from
// the maintenance settings.
func (h *MaintenanceHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	today := h.calendar.Today(r.Context())
	window := h.calendar.MaintenanceSettings(r.Context()).UpcomingWindowDays
	filter := db.MaintenanceFilter{Today: today, UpcomingWindowDays: window}

	key := cache.Key{Scope: cache.UpcomingMaintenance, Variant: today}
	h.cache.serve(w, key, func() (interface{}, bool) {
		records, err := h.records.FindMaintenance(r.Context(), filter)
		if err != nil {
			log.WithError(err).Error("Failed to list upcoming maintenance")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load upcoming maintenance")
			return nil, false
		}
		return records, true
	})
}

// TaskTypes handles GET /api/maintenance/task-types
func (h *MaintenanceHandler) TaskTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.records.FindTaskTypes(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list task types")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load task types")
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// Vendors handles GET /api/maintenance/vendors
func (h *MaintenanceHandler) Vendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.records.FindVendors(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list vendors")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load vendors")
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}
