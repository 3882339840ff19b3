// Package quota reports usage limits from a client-held token.
//
// Usage is never counted server side: the numbers returned here are the
// budget the client enforces against itself.
package quota

import (
	"strings"

	"github.com/benedict-erwin/geo-gateway/internal/constants"
	quotaEntity "github.com/benedict-erwin/geo-gateway/internal/entities/quota"
	"github.com/benedict-erwin/geo-gateway/pkg/entitlement"
)

// Verifier decodes tokens
type Verifier interface {
	Verify(token string) (*entitlement.Claim, error)
}

// Inspector has no mutable state; Inspect never changes anything
type Inspector struct {
	verifier Verifier
	free     quotaEntity.Limits
}

// NewInspector creates an Inspector with the free-tier defaults
func NewInspector(verifier Verifier, free quotaEntity.Limits) *Inspector {
	return &Inspector{verifier: verifier, free: free}
}

// Inspect decodes token, or reports the free-tier defaults when it is empty
func (i *Inspector) Inspect(token string) quotaEntity.Status {
	token = strings.TrimSpace(token)
	if token == "" {
		defaults := i.free
		return quotaEntity.Status{
			OK:       false,
			Reason:   constants.ReasonNoToken,
			Defaults: &defaults,
		}
	}

	claim, err := i.verifier.Verify(token)
	if err != nil {
		return quotaEntity.Status{OK: false, Reason: constants.ReasonInvalidToken}
	}
	return quotaEntity.Status{OK: true, Token: claim}
}
