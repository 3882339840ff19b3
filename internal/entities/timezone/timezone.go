package timezone

import "github.com/goccy/go-json"

// TimeRequest is the body of POST /api/time: coordinates or a zone name
type TimeRequest struct {
	Lat      *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon      *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	Timezone string   `json:"timezone" validate:"omitempty,max=64"`
}

// HasCoordinates reports whether both lat and lon were sent
func (r TimeRequest) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// TimeResult is the provider-independent time answer
type TimeResult struct {
	Provider  string          `json:"provider"`
	Timezone  string          `json:"timezone"`
	UTCOffset string          `json:"utc_offset"`
	Datetime  string          `json:"datetime"`
	Raw       json.RawMessage `json:"raw"`
}
