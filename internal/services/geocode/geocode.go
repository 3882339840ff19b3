// Package geocode resolves free-text places through a Nominatim-compatible search API.
package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	geocodeEntity "github.com/benedict-erwin/geo-gateway/internal/entities/geocode"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
)

// place is one Nominatim search hit; numbers arrive as strings
type place struct {
	PlaceID     int64    `json:"place_id"`
	OsmID       int64    `json:"osm_id"`
	DisplayName string   `json:"display_name"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	Type        string   `json:"type"`
	BoundingBox []string `json:"boundingbox"`
}

// Service is safe for concurrent use
type Service struct {
	fetch    *fetch.Client
	baseURL  string
	cacheTTL time.Duration
}

// NewService creates a geocoder; cacheTTL 0 disables response caching
func NewService(f *fetch.Client, baseURL string, cacheTTL time.Duration) *Service {
	return &Service{fetch: f, baseURL: strings.TrimRight(baseURL, "/"), cacheTTL: cacheTTL}
}

// Search returns the best match for q
func (s *Service) Search(ctx context.Context, q string) (*geocodeEntity.Location, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, apperr.BadRequest(constants.MsgQueryRequired)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", "1")

	var places []place
	if _, err := s.fetch.JSON(ctx, fetch.Request{
		URL:       s.baseURL + "/search?" + params.Encode(),
		CacheTTL:  s.cacheTTL,
		RateLimit: true,
	}, &places); err != nil {
		return nil, apperr.Internal(fmt.Errorf("geocode search: %w", err))
	}

	if len(places) == 0 {
		return nil, apperr.New(constants.CodeLocationNotFound)
	}

	loc, err := places[0].location()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return loc, nil
}

func (p place) location() (*geocodeEntity.Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode lon %q: %w", p.Lon, err)
	}

	bbox := make([]float64, 0, len(p.BoundingBox))
	for _, v := range p.BoundingBox {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("geocode boundingbox %q: %w", v, err)
		}
		bbox = append(bbox, f)
	}

	return &geocodeEntity.Location{
		DisplayName: p.DisplayName,
		Lat:         lat,
		Lon:         lon,
		Type:        p.Type,
		OsmID:       p.OsmID,
		BoundingBox: bbox,
	}, nil
}
