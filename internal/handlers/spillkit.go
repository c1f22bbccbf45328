package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	"github.com/portaprosoftware/fleet-compliance/internal/spillkit"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SpillKitHandler serves spill kit templates, inspections and restock
// requests.
type SpillKitHandler struct {
	kits      db.SpillKitCollection
	vehicles  db.VehicleCollection
	calendar  *Calendar
	cache     readCache
	metrics   *metrics.Metrics
	publisher notify.Publisher
	weather   WeatherLookup
}

func NewSpillKitHandler(
	kits db.SpillKitCollection,
	vehicles db.VehicleCollection,
	calendar *Calendar,
	store *cache.Store,
	m *metrics.Metrics,
	publisher notify.Publisher,
	wl WeatherLookup,
) *SpillKitHandler {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &SpillKitHandler{
		kits:      kits,
		vehicles:  vehicles,
		calendar:  calendar,
		cache:     readCache{store: store, metrics: m},
		metrics:   m,
		publisher: publisher,
		weather:   wl,
	}
}

// CheckResponse is a stored check plus the reasons it failed.
type CheckResponse struct {
	models.VehicleSpillKitCheck
	Deficiencies []DeficiencyView `json:"deficiencies"`
}

// DeficiencyView is one failing item in API form.
type DeficiencyView struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Critical bool   `json:"critical"`
}

func deficiencyViews(res spillkit.Result) []DeficiencyView {
	out := make([]DeficiencyView, 0, len(res.Deficiencies))
	for _, d := range res.Deficiencies {
		out = append(out, DeficiencyView{
			ItemID:   d.Item.ID,
			Name:     d.Item.Name,
			Reason:   string(d.Reason),
			Critical: d.Item.Critical,
		})
	}
	return out
}

// templateFor resolves the template of a check: the requested one, or the
// active template for the vehicle type.
func (h *SpillKitHandler) templateFor(ctx context.Context, templateID, vehicleID string) (models.SpillKitTemplate, error) {
	if templateID != "" {
		t, err := h.kits.FindTemplateByID(ctx, templateID)
		if err != nil {
			return models.SpillKitTemplate{}, err
		}
		return *t, nil
	}
	vehicle, err := h.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return models.SpillKitTemplate{}, err
	}
	templates, err := h.kits.FindTemplates(ctx)
	if err != nil {
		return models.SpillKitTemplate{}, err
	}
	return spillkit.SelectTemplate(templates, vehicle.VehicleType)
}

// Template handles GET /api/spill-kits/template?vehicle_id=
func (h *SpillKitHandler) Template(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle_id")
	if vehicleID == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "vehicle_id is required")
		return
	}
	tmpl, err := h.templateFor(r.Context(), "", vehicleID)
	if err != nil {
		h.writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *SpillKitHandler) writeTemplateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, spillkit.ErrNoTemplate):
		writeError(w, http.StatusNotFound, codeNotFound, "No spill kit template configured for this vehicle")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "Vehicle or template not found")
	case errors.Is(err, db.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid vehicle or template id")
	default:
		log.WithError(err).Error("Failed to load spill kit template")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load spill kit template")
	}
}

// CreateCheck handles POST /api/spill-kits/checks
func (h *SpillKitHandler) CreateCheck(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	var req models.CreateSpillKitCheckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.replayCheck(w, r, key) {
		return
	}

	tmpl, err := h.templateFor(r.Context(), req.TemplateID, req.VehicleID)
	if err != nil {
		h.writeTemplateError(w, err)
		return
	}

	ctx := r.Context()
	today := h.calendar.Today(ctx)
	now := h.calendar.Now()
	check := models.VehicleSpillKitCheck{
		ID:                primitive.NewObjectID(),
		SubmissionKey:     key,
		VehicleID:         req.VehicleID,
		TemplateID:        tmpl.ID.Hex(),
		HasKit:            *req.HasKit,
		ItemConditions:    req.ItemConditions,
		Photos:            req.Photos,
		WeatherConditions: req.WeatherConditions,
		Location:          req.Location,
		CheckedBy:         claims.UserID,
		CheckDate:         req.CheckDate,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if check.CheckDate == "" {
		check.CheckDate = today
	}
	if check.ItemConditions == nil {
		check.ItemConditions = map[string]models.ItemCondition{}
	}
	if check.Photos == nil {
		check.Photos = []string{}
	}
	if check.WeatherConditions == "" {
		check.WeatherConditions = currentWeatherSummary(ctx, h.weather, check.Location)
	}

	result := spillkit.Evaluate(tmpl, check, check.CheckDate)
	check.Compliant = result.Compliant
	check.DeficientItems = result.DeficientItemIDs()
	settings := h.calendar.MaintenanceSettings(ctx)
	if check.NextCheckDue, err = spillkit.NextCheckDue(check.CheckDate, settings.SpillKitCheckIntervalDays); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "check_date must be a YYYY-MM-DD date")
		return
	}

	if err := h.kits.InsertCheck(ctx, check); err != nil {
		if key != "" && errors.Is(err, db.ErrDuplicate) && h.replayCheck(w, r, key) {
			return
		}
		log.WithError(err).WithField("vehicle_id", check.VehicleID).Error("Failed to save spill kit check")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to save spill kit check")
		return
	}

	h.cache.invalidate(cache.SpillKitMutation...)
	h.metrics.SpillKitCheck(check.Compliant)
	if !check.Compliant {
		publish(ctx, h.publisher, notify.SpillKitNonCompliant, check)
	}

	log.WithFields(log.Fields{
		"check_id":   check.ID.Hex(),
		"vehicle_id": check.VehicleID,
		"compliant":  check.Compliant,
	}).Info("Spill kit check recorded")
	writeJSON(w, http.StatusCreated, CheckResponse{VehicleSpillKitCheck: check, Deficiencies: deficiencyViews(result)})
}

func (h *SpillKitHandler) replayCheck(w http.ResponseWriter, r *http.Request, key string) bool {
	existing, err := h.kits.FindCheckBySubmissionKey(r.Context(), key)
	if errors.Is(err, db.ErrNotFound) {
		return false
	}
	if err != nil {
		log.WithError(err).Error("Failed to check idempotency key")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to save spill kit check")
		return true
	}
	resp := CheckResponse{VehicleSpillKitCheck: *existing, Deficiencies: []DeficiencyView{}}
	if tmpl, err := h.kits.FindTemplateByID(r.Context(), existing.TemplateID); err == nil {
		resp.Deficiencies = deficiencyViews(spillkit.Evaluate(*tmpl, *existing, existing.CheckDate))
	}
	log.WithField("idempotency_key", key).Info("Duplicate spill kit check submission, returning stored check")
	writeJSON(w, http.StatusOK, resp)
	return true
}

// ListChecks handles GET /api/spill-kits/checks?vehicle_id=
func (h *SpillKitHandler) ListChecks(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle_id")
	h.cache.serve(w, cache.Key{Scope: cache.SpillKitChecks, Variant: vehicleID}, func() (interface{}, bool) {
		checks, err := h.kits.FindChecks(r.Context(), vehicleID)
		if err != nil {
			log.WithError(err).Error("Failed to list spill kit checks")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load spill kit checks")
			return nil, false
		}
		return checks, true
	})
}

// DeleteCheck handles DELETE /api/spill-kits/checks/{id}. The row is kept
// with a deletion timestamp.
func (h *SpillKitHandler) DeleteCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.kits.SoftDeleteCheck(r.Context(), id, h.calendar.Now()); err != nil {
		writeLookupError(w, err, "Spill kit check", "Failed to delete spill kit check")
		return
	}
	h.cache.invalidate(cache.SpillKitMutation...)
	w.WriteHeader(http.StatusNoContent)
}

// RestockRequest handles POST /api/spill-kits/checks/{id}/restock-request.
// A compliant kit yields an empty request that is not stored.
func (h *SpillKitHandler) RestockRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	check, err := h.kits.FindCheckByID(ctx, r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "Spill kit check", "Failed to create restock request")
		return
	}
	tmpl, err := h.kits.FindTemplateByID(ctx, check.TemplateID)
	if err != nil {
		h.writeTemplateError(w, err)
		return
	}

	req := spillkit.BuildRestockRequest(*tmpl, *check, check.CheckDate, h.calendar.Now().UTC())
	if len(req.Lines) == 0 {
		writeJSON(w, http.StatusOK, req)
		return
	}
	if err := h.kits.InsertRestockRequest(ctx, req); err != nil {
		log.WithError(err).WithField("check_id", req.CheckID).Error("Failed to save restock request")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to create restock request")
		return
	}
	publish(ctx, h.publisher, notify.RestockRequested, req)
	writeJSON(w, http.StatusCreated, req)
}
