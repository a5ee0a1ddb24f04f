package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/geocode"
	"github.com/civicreport/civic-server/internal/models"
	"github.com/civicreport/civic-server/internal/services"
)

// GeocodeHandler proxies reverse geocoding so the reporting form can prefill
// the administrative location.
type GeocodeHandler struct {
	geocoder services.ReverseGeocoder
	logger   *zap.SugaredLogger
}

func NewGeocodeHandler(geocoder services.ReverseGeocoder, logger *zap.SugaredLogger) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder, logger: logger}
}

// Reverse handles GET /api/v1/geocode/reverse?lat=&lon=
func (h *GeocodeHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(w, http.StatusBadRequest, "Valid lat and lon query parameters are required")
		return
	}

	loc, address, err := h.geocoder.Reverse(r.Context(), models.GeoPoint{Lat: lat, Lng: lon})
	if errors.Is(err, geocode.ErrNoResult) {
		respondError(w, http.StatusNotFound, "No address found for this location")
		return
	}
	if err != nil {
		h.logger.Warnw("Reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		respondError(w, http.StatusBadGateway, "Geocoding service unavailable")
		return
	}

	respondOK(w, http.StatusOK, "", map[string]any{
		"address":                address,
		"administrativeLocation": loc,
	})
}
