// Package payment turns a verified gateway transaction into an entitlement token.
//
// Replaying a reference that already succeeded mints a fresh token: the
// service keeps no record of redeemed references.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	paymentEntity "github.com/benedict-erwin/geo-gateway/internal/entities/payment"
	"github.com/benedict-erwin/geo-gateway/pkg/entitlement"
	"github.com/benedict-erwin/geo-gateway/pkg/logger"
	"github.com/benedict-erwin/geo-gateway/pkg/paystack"
)

// Gateway is the payment provider as seen by the verifier
type Gateway interface {
	Configured() bool
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyResponse, error)
}

// Issuer signs claims
type Issuer interface {
	Issue(claim entitlement.Claim) (string, error)
}

// Limits are the counters written into premium claims
type Limits struct {
	PremiumTrials   int
	PremiumSearches int
}

// Verifier is the only component that constructs entitlement claims
type Verifier struct {
	gateway Gateway
	issuer  Issuer
	limits  Limits
	now     func() time.Time
}

// NewVerifier creates a Verifier; now may be nil for time.Now
func NewVerifier(gateway Gateway, issuer Issuer, limits Limits, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{gateway: gateway, issuer: issuer, limits: limits, now: now}
}

// VerifyPayment checks reference with the gateway and mints a premium token.
// Failures are *apperr.Error with codes reference_required,
// paystack_missing_secret, payment_not_successful or server_error.
func (v *Verifier) VerifyPayment(ctx context.Context, reference string) (*paymentEntity.VerifyResult, error) {
	log := logger.WithScope("paymentVerifier")

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperr.New(constants.CodeReferenceRequired)
	}
	if !v.gateway.Configured() {
		return nil, apperr.New(constants.CodePaystackMissingSecret)
	}

	resp, err := v.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		if errors.Is(err, paystack.ErrMissingSecret) {
			return nil, apperr.New(constants.CodePaystackMissingSecret)
		}
		return nil, apperr.Internal(err)
	}

	if !resp.Successful() {
		log.Warn().
			Str("reference", reference).
			Bool("gateway_status", resp.Status).
			Str("gateway_message", resp.Message).
			Msg("Payment not successful")
		return nil, apperr.New(constants.CodePaymentNotSuccessful).WithDetails(resp.Raw)
	}

	email := resp.Data.Customer.Email
	claim := entitlement.Claim{
		Premium:                true,
		Email:                  email,
		PaidReference:          reference,
		RemainingPremiumTrials: v.limits.PremiumTrials,
		RemainingTotalSearches: v.limits.PremiumSearches,
		IssuedAt:               v.now().UnixMilli(),
	}

	token, err := v.issuer.Issue(claim)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	log.Info().
		Str("reference", reference).
		Bool("has_email", email != "").
		Msg("Premium token issued")

	return &paymentEntity.VerifyResult{
		Token:   token,
		Payload: paymentEntity.Identity{Email: email},
	}, nil
}
