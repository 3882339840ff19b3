package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/benedict-erwin/geo-gateway/config"
	"github.com/benedict-erwin/geo-gateway/http/handler"
	"github.com/benedict-erwin/geo-gateway/http/middleware"
	"github.com/benedict-erwin/geo-gateway/http/registry"
	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	quotaEntity "github.com/benedict-erwin/geo-gateway/internal/entities/quota"
	"github.com/benedict-erwin/geo-gateway/internal/services/geocode"
	"github.com/benedict-erwin/geo-gateway/internal/services/health"
	"github.com/benedict-erwin/geo-gateway/internal/services/ipinfo"
	"github.com/benedict-erwin/geo-gateway/internal/services/payment"
	"github.com/benedict-erwin/geo-gateway/internal/services/quota"
	"github.com/benedict-erwin/geo-gateway/internal/services/timezone"
	"github.com/benedict-erwin/geo-gateway/pkg/cache"
	"github.com/benedict-erwin/geo-gateway/pkg/entitlement"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
	"github.com/benedict-erwin/geo-gateway/pkg/maxmind"
	"github.com/benedict-erwin/geo-gateway/pkg/paystack"
	"github.com/benedict-erwin/geo-gateway/pkg/response"

	_ "github.com/benedict-erwin/geo-gateway/http/route"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired gateway
type App struct {
	Echo  *echo.Echo
	cache cache.Cache
	geoip *maxmind.Reader
}

// New wires every service from cfg and builds the echo instance
func New(cfg *config.Config) (*App, error) {
	codec, err := entitlement.NewCodec(cfg.Token.Secret,
		entitlement.WithTTL(cfg.TokenTTL()),
		entitlement.WithIssuer(cfg.Token.Issuer),
	)
	if err != nil {
		return nil, err
	}

	responseCache, err := cache.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	geoip, err := maxmind.New(cfg.MaxMind)
	if err != nil {
		if responseCache != nil {
			responseCache.Close()
		}
		return nil, fmt.Errorf("failed to initialize MaxMind: %w", err)
	}

	client := fetch.New(fetch.Options{
		Timeout:     cfg.ProviderTimeout(),
		UserAgent:   cfg.Providers.UserAgent,
		RateLimit:   cfg.Providers.RateLimit,
		Burst:       cfg.Providers.Burst,
		Cache:       responseCache,
		CachePrefix: cfg.Cache.Prefix,
	})

	geocoder := geocode.NewService(client, cfg.Geocode.BaseURL, cfg.GeocodeCacheTTL())

	// a nil *maxmind.Reader must not become a non-nil interface
	var locator ipinfo.Locator
	if geoip != nil {
		locator = geoip
	}

	h := handler.New(handler.Deps{
		Payments: payment.NewVerifier(
			paystack.NewClient(client, cfg.Paystack.BaseURL, cfg.Paystack.SecretKey),
			codec,
			payment.Limits{PremiumTrials: cfg.Quota.PremiumTrials, PremiumSearches: cfg.Quota.PremiumSearches},
			nil,
		),
		Quota: quota.NewInspector(codec, quotaEntity.Limits{
			RemainingPremiumTrials: cfg.Quota.FreePremiumTrials,
			RemainingTotalSearches: cfg.Quota.FreeTotalSearches,
		}),
		Geocoder: geocoder,
		Times:    timezone.NewService(client, geocoder, cfg.Time.TimeAPIBaseURL, cfg.Time.WorldTimeBaseURL),
		IPs:      ipinfo.NewService(client, locator, cfg.IPInfo.BaseURL, cfg.IPInfo.Token),
		Health:   health.NewService(cfg.App.Version, healthCheckers(responseCache, geoip)),
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Logger)
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:  cfg.CORS.AllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization, constants.HeaderRequestID},
		ExposeHeaders: []string{constants.HeaderRequestID},
	}))
	e.Use(echoMiddleware.BodyLimit("64K"))

	registry.SetupAllRoutes(e, h)

	return &App{Echo: e, cache: responseCache, geoip: geoip}, nil
}

func healthCheckers(c cache.Cache, geoip *maxmind.Reader) map[string]health.Checker {
	checkers := map[string]health.Checker{"cache": nil, "maxmind": nil}
	if c != nil {
		checkers["cache"] = health.CheckerFunc(func(ctx context.Context) error {
			_, _, err := c.Get(ctx, "health:probe")
			return err
		})
	}
	if geoip != nil {
		checkers["maxmind"] = health.CheckerFunc(func(context.Context) error {
			return geoip.Health()
		})
	}
	return checkers
}

// Serve runs the server on l until ctx is done, then shuts down gracefully
func (a *App) Serve(ctx context.Context, l net.Listener) error {
	log := logger.WithScope("server")

	a.Echo.Listener = l
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", l.Addr().String()).Msg("Starting server")
		if err := a.Echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		a.Close()
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.Echo.Shutdown(shutdownCtx)
	a.Close()
	if err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

// ReloadGeoIP reopens the local GeoIP databases; a no-op when MaxMind is disabled
func (a *App) ReloadGeoIP() {
	if a.geoip == nil {
		return
	}
	a.geoip.Reload()
	info := a.geoip.Info()
	logger.WithScope("server").Info().
		Bool("city_loaded", info.CityLoaded).
		Bool("asn_loaded", info.ASNLoaded).
		Int("reload_count", info.ReloadCount).
		Msg("GeoIP databases reloaded")
}

// Close releases the cache connection and the GeoIP databases
func (a *App) Close() {
	log := logger.WithScope("server")
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if err := a.geoip.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close MaxMind reader")
	}
}

// errorHandler answers errors that never reached a handler: unknown routes,
// wrong methods, oversized bodies and recovered panics
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr *apperr.Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
	case errors.As(err, &he):
		appErr = &apperr.Error{
			Status: he.Code,
			Code:   constants.GetCodeFromHTTPStatus(he.Code),
			Err:    err,
		}
	default:
		appErr = apperr.Internal(err)
	}

	if c.Request().Method == http.MethodHead {
		c.NoContent(appErr.Status)
		return
	}
	response.Error(c, appErr)
}
