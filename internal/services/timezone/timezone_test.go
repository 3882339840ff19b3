package timezone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	geocodeEntity "github.com/benedict-erwin/geo-gateway/internal/entities/geocode"
	timezoneEntity "github.com/benedict-erwin/geo-gateway/internal/entities/timezone"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
)

const (
	timeAPILagos   = `{"year":2026,"month":10,"day":15,"dateTime":"2026-10-15T13:04:05.25","timeZone":"Africa/Lagos","dayOfWeek":"Thursday"}`
	worldTimeLagos = `{"timezone":"Africa/Lagos","utc_offset":"+01:00","datetime":"2026-10-15T13:04:05.250+01:00","unixtime":1791979445}`
)

type stubGeocoder map[string]*geocodeEntity.Location

func (g stubGeocoder) Search(_ context.Context, q string) (*geocodeEntity.Location, error) {
	if loc, ok := g[q]; ok {
		return loc, nil
	}
	return nil, apperr.New(constants.CodeLocationNotFound)
}

type upstreams struct {
	timeAPI, worldTime *httptest.Server
	timeAPIDown        atomic.Bool
	worldTimeDown      atomic.Bool
	worldTimeNoOffset  atomic.Bool
}

func newUpstreams(t *testing.T) *upstreams {
	t.Helper()
	u := &upstreams{}
	u.timeAPI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u.timeAPIDown.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		switch r.URL.Path {
		case "/api/Time/current/coordinate":
			assert.Equal(t, "6.45", r.URL.Query().Get("latitude"))
			assert.Equal(t, "3.39", r.URL.Query().Get("longitude"))
			w.Write([]byte(timeAPILagos))
		case "/api/Time/current/zone":
			if r.URL.Query().Get("timeZone") != "Africa/Lagos" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(timeAPILagos))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	u.worldTime = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case u.worldTimeDown.Load():
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path != "/api/timezone/Africa/Lagos":
			w.WriteHeader(http.StatusNotFound)
		case u.worldTimeNoOffset.Load():
			w.Write([]byte(`{"timezone":"Africa/Lagos","datetime":"2026-10-15T13:04:05+01:00"}`))
		default:
			w.Write([]byte(worldTimeLagos))
		}
	}))
	t.Cleanup(u.timeAPI.Close)
	t.Cleanup(u.worldTime.Close)
	return u
}

func (u *upstreams) service() *Service {
	geo := stubGeocoder{"Lagos": {DisplayName: "Lagos, Nigeria", Lat: 6.45, Lon: 3.39}}
	s := NewService(fetch.New(fetch.Options{}), geo, u.timeAPI.URL, u.worldTime.URL)
	s.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

func ptr(f float64) *float64 { return &f }

func appErrOf(t *testing.T, err error) *apperr.Error {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func TestLookup_InputValidation(t *testing.T) {
	s := newUpstreams(t).service()
	ctx := context.Background()

	tests := map[string]struct {
		req  timezoneEntity.TimeRequest
		want string
	}{
		"empty":         {timezoneEntity.TimeRequest{}, constants.MsgTimeInput},
		"blank zone":    {timezoneEntity.TimeRequest{Timezone: "  "}, constants.MsgTimeInput},
		"lat only":      {timezoneEntity.TimeRequest{Lat: ptr(6.45)}, constants.MsgTimeInput},
		"lat too large": {timezoneEntity.TimeRequest{Lat: ptr(91), Lon: ptr(0)}, constants.MsgInvalidLatLon},
		"lon too small": {timezoneEntity.TimeRequest{Lat: ptr(0), Lon: ptr(-180.5)}, constants.MsgInvalidLatLon},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.Lookup(ctx, tt.req)
			appErr := appErrOf(t, err)
			assert.Equal(t, http.StatusBadRequest, appErr.Status)
			assert.Equal(t, tt.want, appErr.Code)
		})
	}
}

func TestLookup_Coordinates(t *testing.T) {
	s := newUpstreams(t).service()

	result, err := s.Lookup(context.Background(), timezoneEntity.TimeRequest{Lat: ptr(6.45), Lon: ptr(3.39)})
	require.NoError(t, err)
	assert.Equal(t, ProviderTimeAPI, result.Provider)
	assert.Equal(t, "Africa/Lagos", result.Timezone)
	assert.Equal(t, "+01:00", result.UTCOffset)
	assert.Equal(t, "2026-10-15T13:04:05.25+01:00", result.Datetime)
	assert.JSONEq(t, timeAPILagos, string(result.Raw))
}

func TestLookup_ZoneFallsThroughProviders(t *testing.T) {
	u := newUpstreams(t)
	s := u.service()
	ctx := context.Background()
	lagos := timezoneEntity.TimeRequest{Timezone: "Africa/Lagos"}

	result, err := s.Lookup(ctx, lagos)
	require.NoError(t, err)
	assert.Equal(t, ProviderWorldTimeAPI, result.Provider)
	assert.Equal(t, "+01:00", result.UTCOffset)
	assert.JSONEq(t, worldTimeLagos, string(result.Raw))

	u.worldTimeNoOffset.Store(true)
	result, err = s.Lookup(ctx, lagos)
	require.NoError(t, err)
	assert.Equal(t, ProviderWorldTimeAPI, result.Provider)
	assert.Equal(t, "+01:00", result.UTCOffset, "offset derived from the tz database")

	u.worldTimeDown.Store(true)
	result, err = s.Lookup(ctx, lagos)
	require.NoError(t, err)
	assert.Equal(t, ProviderTimeAPI, result.Provider)

	u.timeAPIDown.Store(true)
	result, err = s.Lookup(ctx, lagos)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, result.Provider)
	assert.Equal(t, "Africa/Lagos", result.Timezone)
	assert.Equal(t, "2026-10-15T13:00:00+01:00", result.Datetime)

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"raw":null`)
}

func TestLookup_AllProvidersFailed(t *testing.T) {
	u := newUpstreams(t)
	u.worldTimeDown.Store(true)
	u.timeAPIDown.Store(true)
	s := u.service()

	_, err := s.Lookup(context.Background(), timezoneEntity.TimeRequest{Timezone: "Mars/Olympus_Mons"})
	appErr := appErrOf(t, err)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, constants.CodeAllProvidersFailed, appErr.Code)

	failures, ok := appErr.Details.([]Failure)
	require.True(t, ok)
	require.Len(t, failures, 3)
	assert.Equal(t, ProviderWorldTimeAPI, failures[0].Provider)
	assert.Equal(t, ProviderTimeAPI, failures[1].Provider)
	assert.Equal(t, ProviderLocal, failures[2].Provider)
	for _, f := range failures {
		assert.NotEmpty(t, f.Error)
	}
}

func TestLocationTime(t *testing.T) {
	u := newUpstreams(t)
	s := u.service()
	ctx := context.Background()

	raw, err := s.LocationTime(ctx, "Lagos")
	require.NoError(t, err)
	assert.JSONEq(t, timeAPILagos, string(raw))

	_, err = s.LocationTime(ctx, " ")
	assert.Equal(t, constants.MsgLocationRequired, appErrOf(t, err).Code)

	_, err = s.LocationTime(ctx, "Atlantis")
	assert.Equal(t, http.StatusNotFound, appErrOf(t, err).Status)

	u.timeAPIDown.Store(true)
	_, err = s.LocationTime(ctx, "Lagos")
	assert.Equal(t, constants.CodeServerError, appErrOf(t, err).Code)
}

func TestFormatOffset(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	stJohns, err := time.LoadLocation("America/St_Johns")
	require.NoError(t, err)

	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "+00:00", FormatOffset(at))
	assert.Equal(t, "+05:30", FormatOffset(at.In(kolkata)))
	assert.Equal(t, "-03:30", FormatOffset(at.In(stJohns)))
}

func TestLookup_ZoneNameCannotRewriteProviderURL(t *testing.T) {
	s := newUpstreams(t).service()

	for _, zone := range []string{"Africa/Lagos?x=1", "Africa/Lagos#frag", "Europe/../Africa/Lagos"} {
		_, err := s.Lookup(context.Background(), timezoneEntity.TimeRequest{Timezone: zone})
		appErr := appErrOf(t, err)
		assert.Equal(t, constants.CodeAllProvidersFailed, appErr.Code, zone)
	}
}

func TestZonePath(t *testing.T) {
	path, err := zonePath("America/Argentina/Salta")
	require.NoError(t, err)
	assert.Equal(t, "America/Argentina/Salta", path)

	path, err = zonePath("Africa/Lagos?x=1")
	require.NoError(t, err)
	assert.Equal(t, "Africa/Lagos%3Fx=1", path)

	for _, zone := range []string{"..", "Europe/../Paris", "Europe//Paris", "/Paris"} {
		_, err := zonePath(zone)
		assert.Error(t, err, zone)
	}
}
