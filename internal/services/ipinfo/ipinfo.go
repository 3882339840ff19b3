// Package ipinfo geolocates an IP address, locally when a GeoIP database
// answers and through ipinfo.io otherwise.
package ipinfo

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/benedict-erwin/geo-gateway/internal/apperr"
	"github.com/benedict-erwin/geo-gateway/internal/constants"
	"github.com/benedict-erwin/geo-gateway/pkg/fetch"
	"github.com/benedict-erwin/geo-gateway/pkg/maxmind"
)

// Locator answers from a local database
type Locator interface {
	Lookup(addr netip.Addr) (*maxmind.GeoLocation, bool)
}

// Service is safe for concurrent use
type Service struct {
	fetch   *fetch.Client
	local   Locator
	baseURL string
	token   string
}

// NewService creates an IP lookup; local may be nil
func NewService(f *fetch.Client, local Locator, baseURL, token string) *Service {
	return &Service{
		fetch:   f,
		local:   local,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Lookup returns the geolocation document for ip. Any parseable address is
// forwarded as given; an empty ip asks the provider about the egress address.
func (s *Service) Lookup(ctx context.Context, ip string) (json.RawMessage, error) {
	ip = strings.TrimSpace(ip)

	var addr netip.Addr
	if ip != "" {
		parsed, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, apperr.BadRequest(constants.MsgInvalidIP)
		}
		addr = parsed.Unmap()
	}

	if isPublic(addr) && s.local != nil {
		if loc, ok := s.local.Lookup(addr); ok {
			body, err := json.Marshal(loc)
			if err != nil {
				return nil, apperr.Internal(err)
			}
			return body, nil
		}
	}

	resp, err := s.fetch.JSON(ctx, fetch.Request{URL: s.url(addr)}, nil)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("ipinfo lookup: %w", err))
	}
	return json.RawMessage(resp.Body), nil
}

func (s *Service) url(addr netip.Addr) string {
	u := s.baseURL + "/json"
	if addr.IsValid() {
		u = s.baseURL + "/" + addr.String() + "/json"
	}
	if s.token != "" {
		u += "?token=" + url.QueryEscape(s.token)
	}
	return u
}

// PublicIP returns raw when it is a publicly routable address and "" otherwise
func PublicIP(raw string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil || !isPublic(addr) {
		return ""
	}
	return addr.Unmap().String()
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsMulticast()
}
