package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benedict-erwin/geo-gateway/config"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
)

const (
	paystackSuccess   = `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"tx123","amount":50000,"currency":"NGN","customer":{"email":"a@b.com"}}}`
	paystackAbandoned = `{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"tx-abandoned"}}`
	timeAPIAccra      = `{"dateTime":"2026-10-15T12:00:00","timeZone":"Africa/Accra"}`
)

// upstream plays every third-party provider
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
			switch strings.TrimPrefix(r.URL.Path, "/transaction/verify/") {
			case "tx123":
				w.Write([]byte(paystackSuccess))
			case "tx-abandoned":
				w.Write([]byte(paystackAbandoned))
			default:
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
			}
		case r.URL.Path == "/search":
			if r.URL.Query().Get("q") == "Accra" {
				w.Write([]byte(`[{"osm_id":1,"display_name":"Accra, Ghana","lat":"5.56","lon":"-0.2","type":"city","boundingbox":["5.4","5.7","-0.3","-0.1"]}]`))
				return
			}
			w.Write([]byte(`[]`))
		case r.URL.Path == "/api/Time/current/coordinate":
			w.Write([]byte(timeAPIAccra))
		case r.URL.Path == "/8.8.8.8/json":
			w.Write([]byte(`{"ip":"8.8.8.8","country":"US"}`))
		case r.URL.Path == "/10.0.0.1/json":
			w.Write([]byte(`{"ip":"10.0.0.1","bogon":true}`))
		case r.URL.Path == "/json":
			w.Write([]byte(`{"ip":"203.0.113.9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith lets a test replace top-level config sections before loading
func newTestAppWith(t *testing.T, override func(settings map[string]any)) *App {
	t.Helper()
	base := upstream(t).URL

	settings := map[string]any{
		"app":       map[string]any{"env": "test", "version": "9.9.9"},
		"token":     map[string]any{"secret": "jwt-test-secret"},
		"paystack":  map[string]any{"secret_key": "sk_test_secret", "base_url": base},
		"providers": map[string]any{"timeout": "2s", "rate_limit": 0},
		"ipinfo":    map[string]any{"base_url": base},
		"geocode":   map[string]any{"base_url": base},
		"time":      map[string]any{"timeapi_base_url": base, "worldtime_base_url": base},
		"cache":     map[string]any{"driver": "memory"},
	}
	if override != nil {
		override(settings)
	}
	body, err := json.Marshal(settings)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func do(app *App, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestVerifyThenCheckToken(t *testing.T) {
	app := newTestApp(t)

	rec := do(app, http.MethodPost, "/api/verify-paystack", `{"reference":"tx123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, map[string]any{"email": "a@b.com"}, body["payload"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	rec = do(app, http.MethodPost, "/api/check-token", "", http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["ok"])
	claim, ok := body["token"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, claim["premium"])
	assert.Equal(t, "a@b.com", claim["email"])
	assert.Equal(t, "tx123", claim["paid_reference"])
	assert.EqualValues(t, 999999, claim["remaining_premium_trials"])
	assert.EqualValues(t, 999999, claim["remaining_total_searches"])
	assert.NotNil(t, claim["issued_at"])

	// the body form works too
	rec = do(app, http.MethodPost, "/api/check-token", `{"token":"`+token+`"}`, nil)
	assert.Equal(t, true, decode(t, rec)["ok"])
}

func TestVerifyPaystack_Failures(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing reference", `{}`, http.StatusBadRequest, constants.CodeReferenceRequired},
		{"blank reference", `{"reference":"   "}`, http.StatusBadRequest, constants.CodeReferenceRequired},
		{"abandoned", `{"reference":"tx-abandoned"}`, http.StatusBadRequest, constants.CodePaymentNotSuccessful},
		{"unknown reference", `{"reference":"nope"}`, http.StatusBadRequest, constants.CodePaymentNotSuccessful},
		{"broken json", `{"reference":`, http.StatusBadRequest, constants.CodeInvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(app, http.MethodPost, "/api/verify-paystack", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.code, body["error"])
			assert.NotContains(t, body, "token")
		})
	}

	rec := do(app, http.MethodPost, "/api/verify-paystack", `{"reference":"tx-abandoned"}`, nil)
	details, ok := decode(t, rec)["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abandoned", details["data"].(map[string]any)["status"])
}

func TestCheckToken_Anonymous(t *testing.T) {
	app := newTestApp(t)

	body := decode(t, do(app, http.MethodPost, "/api/check-token", "", nil))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, constants.ReasonNoToken, body["reason"])
	assert.Equal(t, map[string]any{"remaining_premium_trials": float64(1), "remaining_total_searches": float64(20)}, body["defaults"])

	rec := do(app, http.MethodPost, "/api/check-token", "", http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, constants.ReasonInvalidToken, body["reason"])
	assert.NotContains(t, body, "defaults")
}

func TestLookupRoutes(t *testing.T) {
	app := newTestApp(t)

	rec := do(app, http.MethodGet, "/api/geocode?q=", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"q query param required"}`, rec.Body.String())

	rec = do(app, http.MethodGet, "/api/geocode?q=Atlantis", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"location_not_found"}`, rec.Body.String())

	rec = do(app, http.MethodGet, "/api/geocode?q=Accra", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 5.56, body["location"].(map[string]any)["lat"])

	rec = do(app, http.MethodPost, "/api/time", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"provide lat & lon or timezone"}`, rec.Body.String())

	rec = do(app, http.MethodPost, "/api/time", `{"lat":100,"lon":0}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid lat/lon"}`, rec.Body.String())

	rec = do(app, http.MethodPost, "/api/time", `{"lat":5.56,"lon":-0.2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "timeapi", data["provider"])
	assert.Equal(t, "Africa/Accra", data["timezone"])
	assert.Equal(t, "+00:00", data["utc_offset"])

	rec = do(app, http.MethodGet, "/get-time?location=Accra", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, timeAPIAccra, rec.Body.String())

	rec = do(app, http.MethodGet, "/get-time", "", nil)
	assert.JSONEq(t, `{"error":"location query param required"}`, rec.Body.String())

	rec = do(app, http.MethodGet, "/api/ip?ip=not-an-ip", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid ip"}`, rec.Body.String())

	rec = do(app, http.MethodGet, "/ipinfo?ip=8.8.8.8", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"8.8.8.8","country":"US"}`, rec.Body.String())

	// an explicit private address is asked about, not swapped for the egress address
	rec = do(app, http.MethodGet, "/api/ip?ip=10.0.0.1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"10.0.0.1","bogon":true}`, rec.Body.String())

	// a loopback caller without a query gets the egress answer
	rec = do(app, http.MethodGet, "/api/ip", "", http.Header{echo.HeaderXRealIP: {"127.0.0.1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"203.0.113.9"}`, rec.Body.String())
}

func TestVerifyPaystack_ConcurrentCallsAreNotThrottled(t *testing.T) {
	// default rate limit settings stay in place
	app := newTestAppWith(t, func(settings map[string]any) {
		settings["providers"] = map[string]any{"timeout": "2s"}
	})

	const calls = 12
	statuses := make(chan int, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses <- do(app, http.MethodPost, "/api/verify-paystack", `{"reference":"tx123"}`, nil).Code
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	app := newTestApp(t)

	rec := do(app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GeoGateway is running", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(constants.HeaderRequestID))

	rec = do(app, http.MethodGet, "/health/live", "", http.Header{constants.HeaderRequestID: {"req-from-client"}})
	assert.Equal(t, "req-from-client", rec.Header().Get(constants.HeaderRequestID))
	body := decode(t, rec)
	assert.Equal(t, "alive", body["status"])
	assert.Equal(t, "9.9.9", body["version"])

	rec = do(app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "healthy", body["status"])

	rec = do(app, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(constants.HeaderRequestID))
}

func TestReloadGeoIP(t *testing.T) {
	// disabled MaxMind makes reload a no-op
	newTestApp(t).ReloadGeoIP()

	app := newTestAppWith(t, func(settings map[string]any) {
		settings["maxmind"] = map[string]any{"enabled": true, "storage_path": t.TempDir()}
	})
	require.NotNil(t, app.geoip)
	assert.Equal(t, 1, app.geoip.Info().ReloadCount)

	app.ReloadGeoIP()
	assert.Equal(t, 2, app.geoip.Info().ReloadCount)

	// no database files means the detailed health is degraded
	rec := do(app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
