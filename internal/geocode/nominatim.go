// Package geocode resolves GPS coordinates to administrative locations using a
// Nominatim-compatible reverse geocoding API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/civicreport/civic-server/internal/models"
)

// ErrNoResult is returned when the API has no address for the point.
var ErrNoResult = errors.New("no address found for location")

type reverseResponse struct {
	DisplayName string  `json:"display_name"`
	Error       string  `json:"error"`
	Address     address `json:"address"`
}

type address struct {
	State         string `json:"state"`
	StateDistrict string `json:"state_district"`
	County        string `json:"county"`
	Subdistrict   string `json:"subdistrict"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Hamlet        string `json:"hamlet"`
	Suburb        string `json:"suburb"`
	Road          string `json:"road"`
	Postcode      string `json:"postcode"`
}

// Client calls the /reverse endpoint.
type Client struct {
	http   *resty.Client
	logger *zap.SugaredLogger
}

// NewClient creates a reverse geocoding client against baseURL.
func NewClient(baseURL, userAgent string, logger *zap.SugaredLogger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &Client{http: http, logger: logger}
}

// Reverse returns the administrative location of point and a display address.
func (c *Client) Reverse(ctx context.Context, point models.GeoPoint) (models.Location, string, error) {
	var out reverseResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":            strconv.FormatFloat(point.Lat, 'f', 6, 64),
			"lon":            strconv.FormatFloat(point.Lng, 'f', 6, 64),
			"format":         "json",
			"addressdetails": "1",
		}).
		SetResult(&out).
		Get("/reverse")
	if err != nil {
		return models.Location{}, "", fmt.Errorf("reverse geocode request: %w", err)
	}
	if resp.IsError() {
		c.logger.Warnw("Reverse geocode returned error status", "status", resp.StatusCode())
		return models.Location{}, "", fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode())
	}
	if out.Error != "" || out.DisplayName == "" {
		return models.Location{}, "", ErrNoResult
	}

	return toLocation(out.Address), out.DisplayName, nil
}

func toLocation(a address) models.Location {
	return models.Location{
		State:    a.State,
		District: firstNonEmpty(a.StateDistrict, a.County, a.City),
		Block:    firstNonEmpty(a.Subdistrict, a.County, a.Suburb),
		Village:  firstNonEmpty(a.Village, a.Town, a.Hamlet, a.Suburb),
		Landmark: a.Road,
		Pincode:  a.Postcode,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
