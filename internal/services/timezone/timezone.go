// Package timezone answers "what time is it" for a zone name or a coordinate
// by asking public time APIs in order and falling back to the local tz database.
package timezone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/goccy/go-json"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	geocodeEntity "github.com/benedict-erwin/geo-gateway/internal/entities/geocode"
	timezoneEntity "github.com/benedict-erwin/geo-gateway/internal/entities/timezone"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

// Provider names reported in results and failure details
const (
	ProviderTimeAPI      = "timeapi"
	ProviderWorldTimeAPI = "worldtimeapi"
	ProviderLocal        = "local"
)

// timeapi.io sends wall-clock time without an offset
const timeAPILayout = "2006-01-02T15:04:05.999999999"

// Geocoder resolves a place name to coordinates
type Geocoder interface {
	Search(ctx context.Context, q string) (*geocodeEntity.Location, error)
}

// Failure is one provider's reason for not answering
type Failure struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type provider struct {
	name   string
	lookup func(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error)
}

// Service is safe for concurrent use
type Service struct {
	fetch        *fetch.Client
	geocoder     Geocoder
	timeAPIURL   string
	worldTimeURL string
	now          func() time.Time
	coordinates  []provider
	zones        []provider
}

// NewService wires the provider chains
func NewService(f *fetch.Client, geocoder Geocoder, timeAPIURL, worldTimeURL string) *Service {
	s := &Service{
		fetch:        f,
		geocoder:     geocoder,
		timeAPIURL:   strings.TrimRight(timeAPIURL, "/"),
		worldTimeURL: strings.TrimRight(worldTimeURL, "/"),
		now:          time.Now,
	}
	s.coordinates = []provider{
		{ProviderTimeAPI, s.timeAPICoordinate},
	}
	s.zones = []provider{
		{ProviderWorldTimeAPI, s.worldTimeZone},
		{ProviderTimeAPI, s.timeAPIZone},
		{ProviderLocal, s.localZone},
	}
	return s
}

// Lookup returns the current time for req; the first provider to answer wins
func (s *Service) Lookup(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error) {
	req.Timezone = strings.TrimSpace(req.Timezone)

	var chain []provider
	switch {
	case req.HasCoordinates():
		if !validLatLon(*req.Lat, *req.Lon) {
			return nil, apperr.BadRequest(constants.MsgInvalidLatLon)
		}
		chain = s.coordinates
	case req.Timezone != "":
		chain = s.zones
	default:
		return nil, apperr.BadRequest(constants.MsgTimeInput)
	}

	log := logger.WithScope("timezone")
	failures := make([]Failure, 0, len(chain))
	for _, p := range chain {
		result, err := p.lookup(ctx, req)
		if err == nil {
			result.Provider = p.name
			return result, nil
		}
		log.Warn().Err(err).Str("provider", p.name).Msg("Time provider failed")
		failures = append(failures, Failure{Provider: p.name, Error: err.Error()})

		if ctx.Err() != nil {
			break
		}
	}

	return nil, apperr.New(constants.CodeAllProvidersFailed).WithDetails(failures)
}

// LocationTime geocodes location and returns timeapi's document for it
func (s *Service) LocationTime(ctx context.Context, location string) (json.RawMessage, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, apperr.BadRequest(constants.MsgLocationRequired)
	}

	loc, err := s.geocoder.Search(ctx, location)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetch.JSON(ctx, fetch.Request{URL: s.coordinateURL(loc.Lat, loc.Lon)}, nil)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("time for %q: %w", location, err))
	}
	return json.RawMessage(resp.Body), nil
}

type timeAPIBody struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type worldTimeBody struct {
	Timezone  string `json:"timezone"`
	UTCOffset string `json:"utc_offset"`
	Datetime  string `json:"datetime"`
}

func (s *Service) coordinateURL(lat, lon float64) string {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%g", lat))
	params.Set("longitude", fmt.Sprintf("%g", lon))
	return s.timeAPIURL + "/api/Time/current/coordinate?" + params.Encode()
}

func (s *Service) timeAPICoordinate(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error) {
	return s.timeAPI(ctx, s.coordinateURL(*req.Lat, *req.Lon))
}

func (s *Service) timeAPIZone(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error) {
	params := url.Values{}
	params.Set("timeZone", req.Timezone)
	return s.timeAPI(ctx, s.timeAPIURL+"/api/Time/current/zone?"+params.Encode())
}

func (s *Service) timeAPI(ctx context.Context, u string) (*timezoneEntity.TimeResult, error) {
	var body timeAPIBody
	resp, err := s.fetch.JSON(ctx, fetch.Request{URL: u}, &body)
	if err != nil {
		return nil, err
	}
	if body.TimeZone == "" {
		return nil, errors.New("response has no timeZone")
	}

	loc, err := time.LoadLocation(body.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown zone %q: %w", body.TimeZone, err)
	}
	at, err := time.ParseInLocation(timeAPILayout, body.DateTime, loc)
	if err != nil {
		return nil, fmt.Errorf("dateTime %q: %w", body.DateTime, err)
	}

	return &timezoneEntity.TimeResult{
		Timezone:  body.TimeZone,
		UTCOffset: FormatOffset(at),
		Datetime:  at.Format(time.RFC3339Nano),
		Raw:       json.RawMessage(resp.Body),
	}, nil
}

// zonePath escapes each segment of an IANA name such as America/Argentina/Salta
func zonePath(zone string) (string, error) {
	segments := strings.Split(zone, "/")
	for i, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid zone name %q", zone)
		}
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/"), nil
}

func (s *Service) worldTimeZone(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error) {
	path, err := zonePath(req.Timezone)
	if err != nil {
		return nil, err
	}

	var body worldTimeBody
	resp, err := s.fetch.JSON(ctx, fetch.Request{URL: s.worldTimeURL + "/api/timezone/" + path}, &body)
	if err != nil {
		return nil, err
	}
	if body.Datetime == "" {
		return nil, errors.New("response has no datetime")
	}

	zone := body.Timezone
	if zone == "" {
		zone = req.Timezone
	}
	offset := body.UTCOffset
	if offset == "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("no utc_offset and unknown zone %q: %w", zone, err)
		}
		offset = FormatOffset(s.now().In(loc))
	}

	return &timezoneEntity.TimeResult{
		Timezone:  zone,
		UTCOffset: offset,
		Datetime:  body.Datetime,
		Raw:       json.RawMessage(resp.Body),
	}, nil
}

func (s *Service) localZone(_ context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error) {
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return nil, err
	}
	at := s.now().In(loc)
	return &timezoneEntity.TimeResult{
		Timezone:  loc.String(),
		UTCOffset: FormatOffset(at),
		Datetime:  at.Format(time.RFC3339Nano),
	}, nil
}

// FormatOffset renders t's zone offset as ±HH:MM
func FormatOffset(t time.Time) string {
	_, secs := t.Zone()
	sign := '+'
	if secs < 0 {
		sign = '-'
		secs = -secs
	}
	return fmt.Sprintf("%c%02d:%02d", sign, secs/3600, (secs%3600)/60)
}

func validLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
