package maxmind

import "time"

// SourceMaxMind tags answers served from the local databases
const SourceMaxMind = "maxmind"

// GeoLocation holds geographical information for an IP address
type GeoLocation struct {
	IP          string    `json:"ip"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	City        string    `json:"city"`
	Region      string    `json:"region"`
	PostalCode  string    `json:"postal_code,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timezone    string    `json:"timezone,omitempty"`
	ASN         uint      `json:"asn,omitempty"`
	Org         string    `json:"org,omitempty"`
	Source      string    `json:"source"`
	LookedUpAt  time.Time `json:"looked_up_at"`
}

// ASNInfo holds Autonomous System Number information
type ASNInfo struct {
	IP           string    `json:"ip"`
	ASN          uint      `json:"asn"`
	Organization string    `json:"organization"`
	LookedUpAt   time.Time `json:"looked_up_at"`
}

// DatabaseInfo describes the loaded databases
type DatabaseInfo struct {
	Enabled       bool      `json:"enabled"`
	CityDBPath    string    `json:"city_db_path"`
	CityDBSize    int64     `json:"city_db_size"`
	CityDBModTime time.Time `json:"city_db_modified"`
	CityLoaded    bool      `json:"city_loaded"`
	ASNDBPath     string    `json:"asn_db_path"`
	ASNDBSize     int64     `json:"asn_db_size"`
	ASNDBModTime  time.Time `json:"asn_db_modified"`
	ASNLoaded     bool      `json:"asn_loaded"`
	LoadedAt      time.Time `json:"loaded_at"`
	ReloadCount   int       `json:"reload_count"`
}
