package geocode

// Location is the reshaped first geocoder match
type Location struct {
	DisplayName string    `json:"display_name"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Type        string    `json:"type"`
	OsmID       int64     `json:"osm_id"`
	BoundingBox []float64 `json:"boundingbox"`
}
