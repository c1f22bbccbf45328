package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"github.com/portaprosoftware/fleet-compliance/internal/weather"
	log "github.com/sirupsen/logrus"
)

// WeatherLookup fetches current conditions at a point.
type WeatherLookup interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// currentWeatherSummary returns a conditions string for loc, or "" when
// there is no location, no client or the lookup fails.
func currentWeatherSummary(ctx context.Context, wl WeatherLookup, loc *models.Location) string {
	if wl == nil || loc == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c, err := wl.Current(ctx, loc.Lat, loc.Lon)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"lat": loc.Lat, "lon": loc.Lon}).Warn("Weather lookup failed")
		return ""
	}
	return c.Summary()
}

// WeatherHandler serves GET /api/weather?lat=&lon=
type WeatherHandler struct {
	lookup WeatherLookup
}

func NewWeatherHandler(lookup WeatherLookup) *WeatherHandler {
	return &WeatherHandler{lookup: lookup}
}

type weatherResponse struct {
	*weather.Conditions
	Summary string `json:"summary"`
}

func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		writeError(w, http.StatusServiceUnavailable, codeUpstream, "Weather lookup is not configured")
		return
	}
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "lat and lon are required numbers")
		return
	}

	c, err := h.lookup.Current(r.Context(), lat, lon)
	if err != nil {
		if errors.Is(err, weather.ErrInvalidCoordinates) {
			writeError(w, http.StatusBadRequest, codeValidation, "Coordinates out of range")
			return
		}
		log.WithError(err).Warn("Weather lookup failed")
		writeError(w, http.StatusBadGateway, codeUpstream, "Failed to fetch current weather")
		return
	}
	writeJSON(w, http.StatusOK, weatherResponse{Conditions: c, Summary: c.Summary()})
}
