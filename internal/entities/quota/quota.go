package quota

import "github.com/benedict-erwin/geo-gateway/pkg/entitlement"

// CheckRequest is the optional body of POST /api/check-token
type CheckRequest struct {
	Token string `json:"token"`
}

// Limits are usage numbers reported to the client
type Limits struct {
	RemainingPremiumTrials int `json:"remaining_premium_trials"`
	RemainingTotalSearches int `json:"remaining_total_searches"`
}

// Status is the check-token answer; it is always sent with HTTP 200
type Status struct {
	OK       bool               `json:"ok"`
	Reason   string             `json:"reason,omitempty"`
	Token    *entitlement.Claim `json:"token,omitempty"`
	Defaults *Limits            `json:"defaults,omitempty"`
}
