package handlers

import (
	"net/http"

	"github.com/portaprosoftware/fleet-compliance/internal/cache"
	"github.com/portaprosoftware/fleet-compliance/internal/db"
	"github.com/portaprosoftware/fleet-compliance/internal/metrics"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	log "github.com/sirupsen/logrus"
)

// VehicleHandler serves the read-only vehicle endpoints.
type VehicleHandler struct {
	vehicles db.VehicleCollection
	cache    readCache
}

func NewVehicleHandler(vehicles db.VehicleCollection, store *cache.Store, m *metrics.Metrics) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, cache: readCache{store: store, metrics: m}}
}

// List handles GET /api/vehicles?status=&type=
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.VehicleFilter{
		Status:      models.VehicleStatus(q.Get("status")),
		VehicleType: q.Get("type"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, codeValidation, "Invalid vehicle status")
		return
	}

	key := cache.Key{Scope: cache.Vehicles, Variant: q.Encode()}
	h.cache.serve(w, key, func() (interface{}, bool) {
		vehicles, err := h.vehicles.FindVehicles(r.Context(), filter)
		if err != nil {
			log.WithError(err).Error("Failed to list vehicles")
			writeError(w, http.StatusInternalServerError, codeInternal, "Failed to load vehicles")
			return nil, false
		}
		return vehicles, true
	})
}

// Get handles GET /api/vehicles/{id}
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err, "Vehicle", "Failed to load vehicle")
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}
