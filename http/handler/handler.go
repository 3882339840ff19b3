// Package handler turns HTTP requests into service calls and service results into responses.
package handler

import (
	"context"

	"github.com/goccy/go-json"

	geocodeEntity "github.com/benedict-erwin/geo-gateway/internal/entities/geocode"
	paymentEntity "github.com/benedict-erwin/geo-gateway/internal/entities/payment"
	quotaEntity "github.com/benedict-erwin/geo-gateway/internal/entities/quota"
	timezoneEntity "github.com/benedict-erwin/geo-gateway/internal/entities/timezone"
	"github.com/benedict-erwin/geo-gateway/internal/services/health"
)

type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, reference string) (*paymentEntity.VerifyResult, error)
}

type QuotaInspector interface {
	Inspect(token string) quotaEntity.Status
}

type Geocoder interface {
	Search(ctx context.Context, q string) (*geocodeEntity.Location, error)
}

type TimeLookup interface {
	Lookup(ctx context.Context, req timezoneEntity.TimeRequest) (*timezoneEntity.TimeResult, error)
	LocationTime(ctx context.Context, location string) (json.RawMessage, error)
}

type IPLookup interface {
	Lookup(ctx context.Context, ip string) (json.RawMessage, error)
}

type HealthReporter interface {
	Live() health.LiveStatus
	Check(ctx context.Context) *health.HealthStatus
}

// Handler holds the services behind every route
type Handler struct {
	payments PaymentVerifier
	quota    QuotaInspector
	geocoder Geocoder
	times    TimeLookup
	ips      IPLookup
	health   HealthReporter
}

// Deps lists the services a Handler needs
type Deps struct {
	Payments PaymentVerifier
	Quota    QuotaInspector
	Geocoder Geocoder
	Times    TimeLookup
	IPs      IPLookup
	Health   HealthReporter
}

func New(d Deps) *Handler {
	return &Handler{
		payments: d.Payments,
		quota:    d.Quota,
		geocoder: d.Geocoder,
		times:    d.Times,
		ips:      d.IPs,
		health:   d.Health,
	}
}
