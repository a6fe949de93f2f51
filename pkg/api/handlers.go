package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/lifatov/roadindex/pkg/coord"
	"github.com/lifatov/roadindex/pkg/spatial"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	index *spatial.StaticRTree
	names []string
}

// NewHandlers creates handlers serving the given index. names may be nil
// when no street-name table was loaded.
func NewHandlers(index *spatial.StaticRTree, names []string) *Handlers {
	return &Handlers{index: index, names: names}
}

const (
	defaultZoom = 18
	maxResults  = 100
)

// HandleNearest handles GET /api/v1/nearest: the k nearest phantom nodes
// with their perpendicular distances.
func (h *Handlers) HandleNearest(w http.ResponseWriter, r *http.Request) {
	p, ok := parseCoordinate(w, r)
	if !ok {
		return
	}
	zoom := parseUintParam(r, "zoom", defaultZoom)
	k := int(parseUintParam(r, "k", 1))
	if k < 1 || k > maxResults {
		writeError(w, http.StatusBadRequest, "invalid_request", "k")
		return
	}

	ranked, err := h.index.FindPhantomNodesWithDistance(p, zoom, k, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if len(ranked) == 0 {
		writeError(w, http.StatusNotFound, "no_segment_found", "")
		return
	}

	resp := NearestResponse{Results: make([]PhantomNodeJSON, len(ranked))}
	for i, rp := range ranked {
		resp.Results[i] = h.phantomJSON(rp.Node, &rp.Distance)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleLocate handles GET /api/v1/locate: the closest segment endpoint.
func (h *Handlers) HandleLocate(w http.ResponseWriter, r *http.Request) {
	p, ok := parseCoordinate(w, r)
	if !ok {
		return
	}
	zoom := parseUintParam(r, "zoom", defaultZoom)

	loc, err := h.index.LocateClosestEndpoint(p, zoom)
	if err != nil {
		if errors.Is(err, spatial.ErrNoMatch) {
			writeError(w, http.StatusNotFound, "no_segment_found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LocateResponse{
		Location: LatLngJSON{Lat: loc.LatDeg(), Lng: loc.LonDeg()},
	})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.index.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		Segments:          h.index.ElementCount(),
		TreeNodes:         h.index.NodeCount(),
		Dequeues:          stats.Dequeues,
		InspectedMBRs:     stats.InspectedMBRs,
		LoadedLeaves:      stats.LoadedLeaves,
		InspectedSegments: stats.InspectedSegments,
		PrunedElements:    stats.PrunedElements,
	})
}

func (h *Handlers) phantomJSON(pn spatial.PhantomNode, dist *float64) PhantomNodeJSON {
	out := PhantomNodeJSON{
		Location: LatLngJSON{
			Lat: pn.Location.LatDeg(),
			Lng: pn.Location.LonDeg(),
		},
		ForwardWeight:  pn.ForwardWeight,
		ReverseWeight:  pn.ReverseWeight,
		DistanceMeters: dist,
	}
	if int(pn.NameID) < len(h.names) {
		out.Name = h.names[pn.NameID]
	}
	if pn.ForwardNodeID != spatial.SpecialNodeID {
		id := pn.ForwardNodeID
		out.ForwardNodeID = &id
	}
	if pn.ReverseNodeID != spatial.SpecialNodeID {
		id := pn.ReverseNodeID
		out.ReverseNodeID = &id
	}
	return out
}

func parseCoordinate(w http.ResponseWriter, r *http.Request) (coord.FixedPointCoordinate, bool) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil ||
		math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return coord.FixedPointCoordinate{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return coord.FixedPointCoordinate{}, false
	}
	return coord.FromDegrees(lat, lng), true
}

func parseUintParam(r *http.Request, name string, fallback uint) uint {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return uint(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
