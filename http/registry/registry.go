package registry

import (
	"sort"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/benedict-erwin/geo-gateway/http/handler"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
)

// SetupFunc mounts routes on the group for one path prefix
type SetupFunc func(g *echo.Group, h *handler.Handler)

var prefixRegistry = make(map[string][]SetupFunc)

// Register adds route setup for a path prefix ("" for the root, "/api", ...)
func Register(prefix string, setup SetupFunc) {
	prefixRegistry[prefix] = append(prefixRegistry[prefix], setup)
}

// SetupAllRoutes applies all registered routes
func SetupAllRoutes(e *echo.Echo, h *handler.Handler) {
	setupValidator(e)

	log := logger.WithScope("SetupAllRoutes")
	if len(prefixRegistry) == 0 {
		log.Warn().Msg("No routes registered")
		return
	}

	prefixes := make([]string, 0, len(prefixRegistry))
	for prefix := range prefixRegistry {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		g := e.Group(prefix)
		for _, setup := range prefixRegistry[prefix] {
			setup(g, h)
		}
		log.Debug().Str("prefix", prefix).Int("setups", len(prefixRegistry[prefix])).Msg("Route group ready")
	}
}

// setupValidator configures request validation using go-playground/validator
func setupValidator(e *echo.Echo) {
	e.Validator = &CustomValidator{validator: validator.New()}
}

type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates struct fields using validator tags
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
