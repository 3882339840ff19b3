package entitlement

import "github.com/golang-jwt/jwt/v5"

// Claim is the entitlement payload carried inside a signed token.
// The usage counters are advisory: the server never decrements them and
// trusts the client to enforce its own budget.
type Claim struct {
	Premium                bool   `json:"premium"`
	Email                  string `json:"email,omitempty"`
	PaidReference          string `json:"paid_reference"`
	RemainingPremiumTrials int    `json:"remaining_premium_trials"`
	RemainingTotalSearches int    `json:"remaining_total_searches"`
	IssuedAt               int64  `json:"issued_at"` // unix milliseconds
}

// tokenClaims is the JWT body: the claim fields plus iss/iat/exp
type tokenClaims struct {
	Premium                bool   `json:"premium"`
	Email                  string `json:"email,omitempty"`
	PaidReference          string `json:"paid_reference"`
	RemainingPremiumTrials int    `json:"remaining_premium_trials"`
	RemainingTotalSearches int    `json:"remaining_total_searches"`
	IssuedAtMillis         int64  `json:"issued_at"`
	jwt.RegisteredClaims
}

func (tc *tokenClaims) claim() *Claim {
	return &Claim{
		Premium:                tc.Premium,
		Email:                  tc.Email,
		PaidReference:          tc.PaidReference,
		RemainingPremiumTrials: tc.RemainingPremiumTrials,
		RemainingTotalSearches: tc.RemainingTotalSearches,
		IssuedAt:               tc.IssuedAtMillis,
	}
}
