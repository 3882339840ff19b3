package health

import (
	"context"
	"sync"
	"time"

	"github.com/benedict-erwin/geo-gateway/pkg/system"
	"github.com/benedict-erwin/geo-gateway/pkg/utils"
)

// RunningMessage is the plain-text body of GET /
const RunningMessage = "GeoGateway is running"

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// Checker is a dependency that can report its health
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

type LiveStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`
}

type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	System    system.RuntimeStats      `json:"system"`
}

type ServiceHealth struct {
	Status       string    `json:"status"`
	ResponseTime string    `json:"response_time"`
	LastCheck    time.Time `json:"last_check"`
	Error        string    `json:"error,omitempty"`
}

// Service reports liveness and dependency health. Optional dependencies
// (cache, GeoIP) only degrade the status; the gateway still answers without them.
type Service struct {
	version  string
	started  time.Time
	checkers map[string]Checker

	cacheFor time.Duration
	mu       sync.RWMutex
	cached   *HealthStatus
	cachedAt time.Time
}

// NewService creates a health reporter; nil checkers are reported as disabled
func NewService(version string, checkers map[string]Checker) *Service {
	return &Service{
		version:  version,
		started:  time.Now(),
		checkers: checkers,
		cacheFor: 10 * time.Second,
	}
}

// Live answers the liveness probe
func (s *Service) Live() LiveStatus {
	return LiveStatus{
		Status:    "alive",
		Timestamp: utils.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Version:   s.version,
	}
}

// Check runs every dependency check, memoized for a few seconds
func (s *Service) Check(ctx context.Context) *HealthStatus {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.cachedAt) < s.cacheFor {
		cached := *s.cached
		s.mu.RUnlock()
		return &cached
	}
	s.mu.RUnlock()

	status := &HealthStatus{
		Status:    StatusHealthy,
		Timestamp: utils.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Services:  make(map[string]ServiceHealth, len(s.checkers)),
		System:    system.GetRuntimeStats(),
	}

	for name, checker := range s.checkers {
		result := check(ctx, checker)
		status.Services[name] = result
		if result.Status == StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	s.mu.Lock()
	s.cached = status
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return status
}

func check(ctx context.Context, checker Checker) ServiceHealth {
	if checker == nil {
		return ServiceHealth{Status: StatusDisabled, ResponseTime: "0s", LastCheck: utils.Now()}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := checker.Health(ctx)
	result := ServiceHealth{
		Status:       StatusHealthy,
		ResponseTime: time.Since(start).String(),
		LastCheck:    utils.Now(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	return result
}
