package api

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PhantomNodeJSON represents one snapped query result.
type PhantomNodeJSON struct {
	Location       LatLngJSON `json:"location"`
	Name           string     `json:"name,omitempty"`
	ForwardNodeID  *uint32    `json:"forward_node_id,omitempty"`
	ReverseNodeID  *uint32    `json:"reverse_node_id,omitempty"`
	ForwardWeight  int32      `json:"forward_weight"`
	ReverseWeight  int32      `json:"reverse_weight"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
}

// NearestResponse is the JSON response for GET /api/v1/nearest.
type NearestResponse struct {
	Results []PhantomNodeJSON `json:"results"`
}

// LocateResponse is the JSON response for GET /api/v1/locate.
type LocateResponse struct {
	Location LatLngJSON `json:"location"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	Segments          uint64 `json:"segments"`
	TreeNodes         uint32 `json:"tree_nodes"`
	Dequeues          uint64 `json:"queue_dequeues"`
	InspectedMBRs     uint64 `json:"inspected_mbrs"`
	LoadedLeaves      uint64 `json:"loaded_leaves"`
	InspectedSegments uint64 `json:"inspected_segments"`
	PrunedElements    uint64 `json:"pruned_elements"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
