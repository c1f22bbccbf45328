package handlers

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/middleware"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdempotencyHeader carries the client generated key of a create request.
const IdempotencyHeader = "Idempotency-Key"

// IncidentHandler serves spill incident reports.
type IncidentHandler struct {
	incidents db.IncidentCollection
	cache     readCache
	metrics   *metrics.Metrics
	publisher notify.Publisher
	weather   WeatherLookup
	now       func() time.Time
}

func NewIncidentHandler(
	incidents db.IncidentCollection,
	store *cache.Store,
	m *metrics.Metrics,
	publisher notify.Publisher,
	wl WeatherLookup,
) *IncidentHandler {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &IncidentHandler{
		incidents: incidents,
		cache:     readCache{store: store, metrics: m},
		metrics:   m,
		publisher: publisher,
		weather:   wl,
		now:       time.Now,
	}
}

// Create handles POST /api/incidents. Photos and witnesses are written
// after the report; a failed child insert is logged and skipped.
func (h *IncidentHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	var req models.CreateIncidentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if claims.IsDriver() || req.DriverID == "" {
		req.DriverID = claims.UserID
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" {
		if h.replayIncident(w, r, key) {
			return
		}
	}

	report := req.Report(h.now())
	report.SubmissionKey = key
	if report.WeatherConditions == "" {
		report.WeatherConditions = currentWeatherSummary(r.Context(), h.weather, report.Location)
	}

	if err := h.incidents.InsertIncident(r.Context(), report); err != nil {
		if key != "" && errors.Is(err, db.ErrDuplicate) && h.replayIncident(w, r, key) {
			return
		}
		log.WithError(err).WithField("vehicle_id", report.VehicleID).Error("Failed to submit incident report")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to submit incident report")
		return
	}

	incidentID := report.ID.Hex()
	detail := models.IncidentDetail{
		SpillIncidentReport: report,
		Photos:              []models.IncidentPhoto{},
		Witnesses:           []models.IncidentWitness{},
	}
	for _, p := range req.Photos {
		photo := models.IncidentPhoto{
			ID:         primitive.NewObjectID(),
			IncidentID: incidentID,
			PhotoURL:   p.PhotoURL,
			Caption:    p.Caption,
			CreatedAt:  report.CreatedAt,
		}
		if err := h.incidents.InsertPhoto(r.Context(), photo); err != nil {
			log.WithError(err).WithField("incident_id", incidentID).Warn("Failed to save incident photo")
			continue
		}
		detail.Photos = append(detail.Photos, photo)
	}
	for _, wi := range req.Witnesses {
		witness := models.IncidentWitness{
			ID:         primitive.NewObjectID(),
			IncidentID: incidentID,
			Name:       wi.Name,
			Phone:      wi.Phone,
			Email:      wi.Email,
			Statement:  wi.Statement,
			CreatedAt:  report.CreatedAt,
		}
		if err := h.incidents.InsertWitness(r.Context(), witness); err != nil {
			log.WithError(err).WithField("incident_id", incidentID).Warn("Failed to save incident witness")
			continue
		}
		detail.Witnesses = append(detail.Witnesses, witness)
	}

	h.cache.invalidate(cache.IncidentMutation...)
	h.metrics.IncidentReported(string(report.Severity))
	publish(r.Context(), h.publisher, notify.IncidentCreated, report)

	log.WithFields(log.Fields{
		"incident_id": incidentID,
		"vehicle_id":  report.VehicleID,
		"severity":    report.Severity,
	}).Info("Spill incident reported")
	writeJSON(w, http.StatusCreated, detail)
}

// replayIncident answers a repeated submission with the stored report.
// It reports whether a response was written.
func (h *IncidentHandler) replayIncident(w http.ResponseWriter, r *http.Request, key string) bool {
	existing, err := h.incidents.FindIncidentBySubmissionKey(r.Context(), key)
	if errors.Is(err, db.ErrNotFound) {
		return false
	}
	if err != nil {
		log.WithError(err).Error("Failed to check idempotency key")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to submit incident report")
		return true
	}
	detail, err := h.withChildren(r, *existing)
	if err != nil {
		log.WithError(err).Warn("Failed to load incident children for replay")
		detail = &models.IncidentDetail{SpillIncidentReport: *existing}
	}
	log.WithField("idempotency_key", key).Info("Duplicate incident submission, returning stored report")
	writeJSON(w, http.StatusOK, detail)
	return true
}

func (h *IncidentHandler) withChildren(r *http.Request, report models.SpillIncidentReport) (*models.IncidentDetail, error) {
	id := report.ID.Hex()
	photos, err := h.incidents.FindPhotos(r.Context(), id)
	if err != nil {
		return nil, err
	}
	witnesses, err := h.incidents.FindWitnesses(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &models.IncidentDetail{SpillIncidentReport: report, Photos: photos, Witnesses: witnesses}, nil
}

// List handles GET /api/incidents?status=&severity=&vehicle_id=. Drivers
// only see their own reports.
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	q := r.URL.Query()
	filter := db.IncidentFilter{
		Status:    models.IncidentStatus(q.Get("status")),
		Severity:  models.Severity(q.Get("severity")),
		VehicleID: q.Get("vehicle_id"),
		DriverID:  q.Get("driver_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid incident status")
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid severity")
		return
	}
	if claims.IsDriver() {
		filter.DriverID = claims.UserID
	}

	variant := q.Encode()
	if claims.IsDriver() {
		variant = "driver=" + claims.UserID + "&" + variant
	}
	h.cache.serve(w, cache.Key{Scope: cache.Incidents, Variant: variant}, func() (interface{}, bool) {
		reports, err := h.incidents.FindIncidents(r.Context(), filter)
		if err != nil {
			log.WithError(err).Error("Failed to list incidents")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load incidents")
			return nil, false
		}
		return reports, true
	})
}

// Get handles GET /api/incidents/{id}
func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User context not found")
		return
	}

	report, err := h.incidents.FindIncidentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "Incident", "Failed to load incident")
		return
	}
	if claims.IsDriver() && report.DriverID != claims.UserID {
		writeError(w, http.StatusNotFound, codeNotFound, "Incident not found")
		return
	}

	detail, err := h.withChildren(r, *report)
	if err != nil {
		log.WithError(err).Error("Failed to load incident photos and witnesses")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load incident")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateStatus handles PATCH /api/incidents/{id}/status
func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req models.IncidentStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.incidents.UpdateIncidentStatus(r.Context(), id, req.Status); err != nil {
		writeLookupError(w, err, "Incident", "Failed to update incident")
		return
	}
	h.cache.invalidate(cache.IncidentMutation...)
	publish(r.Context(), h.publisher, notify.IncidentStatusChanged, map[string]string{
		"incident_id": id,
		"status":      string(req.Status),
	})
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(req.Status)})
}

// Delete handles DELETE /api/incidents/{id}
func (h *IncidentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.incidents.DeleteIncident(r.Context(), id); err != nil {
		writeLookupError(w, err, "Incident", "Failed to delete incident")
		return
	}
	h.cache.invalidate(cache.IncidentMutation...)
	log.WithField("incident_id", id).Info("Incident deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Notify handles POST /api/incidents/{id}/notify: it re-sends the incident
// to notification subscribers.
func (h *IncidentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	report, err := h.incidents.FindIncidentByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "Incident", "Failed to send notification")
		return
	}

	if err := h.publisher.Publish(r.Context(), notify.IncidentNotify, report); err != nil {
		log.WithError(err).WithField("incident_id", report.ID.Hex()).Error("Failed to send incident notification")
		writeError(w, http.StatusBadGateway, codeUpstream, "Failed to send notification")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Notification sent"})
}

// IncidentExport is the data bundle produced by the export endpoint.
type IncidentExport struct {
	GeneratedAt time.Time               `json:"generated_at"`
	From        string                  `json:"from,omitempty"`
	To          string                  `json:"to,omitempty"`
	Summary     IncidentSummary         `json:"summary"`
	Incidents   []models.IncidentDetail `json:"incidents"`
}

// IncidentSummary counts exported incidents.
type IncidentSummary struct {
	Total                 int            `json:"total"`
	BySeverity            map[string]int `json:"by_severity"`
	ByStatus              map[string]int `json:"by_status"`
	RegulatoryRequired    int            `json:"regulatory_notification_required"`
	RegulatoryOutstanding int            `json:"regulatory_notification_outstanding"`
	TotalEstimatedVolume  float64        `json:"total_estimated_volume"`
}

// Export handles GET /api/incidents/export?from=&to= (dates inclusive).
func (h *IncidentHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")

	var filter db.IncidentFilter
	if from != "" {
		d, err := models.ParseDate(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "from must be a YYYY-MM-DD date")
			return
		}
		filter.From = &d
	}
	if to != "" {
		d, err := models.ParseDate(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "to must be a YYYY-MM-DD date")
			return
		}
		end := d.AddDate(0, 0, 1)
		filter.To = &end
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		writeError(w, http.StatusBadRequest, codeValidation, "from must not be after to")
		return
	}

	reports, err := h.incidents.FindIncidents(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("Failed to export incidents")
		writeError(w, http.StatusInternalServerError, codeInternal, "Failed to export incident data")
		return
	}

	ids := make([]string, len(reports))
	for i, rep := range reports {
		ids[i] = rep.ID.Hex()
	}
	var photos []models.IncidentPhoto
	var witnesses []models.IncidentWitness
	if len(ids) > 0 {
		if photos, err = h.incidents.FindPhotos(r.Context(), ids...); err != nil {
			log.WithError(err).Error("Failed to export incident photos")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to export incident data")
			return
		}
		if witnesses, err = h.incidents.FindWitnesses(r.Context(), ids...); err != nil {
			log.WithError(err).Error("Failed to export incident witnesses")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to export incident data")
			return
		}
	}

	writeJSON(w, http.StatusOK, buildExport(reports, photos, witnesses, from, to, h.now()))
}

func buildExport(reports []models.SpillIncidentReport, photos []models.IncidentPhoto, witnesses []models.IncidentWitness, from, to string, now time.Time) IncidentExport {
	photosBy := make(map[string][]models.IncidentPhoto)
	for _, p := range photos {
		photosBy[p.IncidentID] = append(photosBy[p.IncidentID], p)
	}
	witnessesBy := make(map[string][]models.IncidentWitness)
	for _, wi := range witnesses {
		witnessesBy[wi.IncidentID] = append(witnessesBy[wi.IncidentID], wi)
	}

	out := IncidentExport{
		GeneratedAt: now.UTC(),
		From:        from,
		To:          to,
		Summary: IncidentSummary{
			BySeverity: map[string]int{},
			ByStatus:   map[string]int{},
		},
		Incidents: make([]models.IncidentDetail, 0, len(reports)),
	}
	for _, rep := range reports {
		id := rep.ID.Hex()
		detail := models.IncidentDetail{
			SpillIncidentReport: rep,
			Photos:              photosBy[id],
			Witnesses:           witnessesBy[id],
		}
		if detail.Photos == nil {
			detail.Photos = []models.IncidentPhoto{}
		}
		if detail.Witnesses == nil {
			detail.Witnesses = []models.IncidentWitness{}
		}
		out.Incidents = append(out.Incidents, detail)

		out.Summary.Total++
		out.Summary.BySeverity[string(rep.Severity)]++
		out.Summary.ByStatus[string(rep.Status)]++
		out.Summary.TotalEstimatedVolume += rep.EstimatedVolume
		if rep.RegulatoryNotificationRequired {
			out.Summary.RegulatoryRequired++
			if !rep.RegulatoryNotificationSent {
				out.Summary.RegulatoryOutstanding++
			}
		}
	}
	sort.SliceStable(out.Incidents, func(i, j int) bool {
		return out.Incidents[i].IncidentDate.Before(out.Incidents[j].IncidentDate)
	})
	return out
}
