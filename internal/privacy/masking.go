// Package privacy hides sensitive locations on the display side. Nothing here
// touches stored routes or the statistics computed from them.
package privacy

import (
	"errors"
	"math/rand"

	"backend-strideup/internal/shared/geo"
)

// ErrRouteHidden means no displayable route is left once privacy rules apply.
var ErrRouteHidden = errors.New("route hidden by privacy settings")

type Zone struct {
	Center       geo.Point `json:"center"`
	RadiusMeters float64   `json:"radius_meters"`
}

// Masker offsets points onto a ring around their true position. The ring spans
// [0.5R, R] so a masked point is never on top of the real one.
type Masker struct {
	float64Fn func() float64
}

func NewMasker() *Masker {
	return &Masker{float64Fn: rand.Float64}
}

func (m *Masker) OffsetPoint(p geo.Point, radiusM float64) geo.Point {
	if radiusM <= 0 {
		return p
	}
	bearing := m.float64Fn() * 360
	distance := radiusM * (0.5 + 0.5*m.float64Fn())
	return geo.Destination(p, bearing, distance)
}

// TrimCount is how many coordinates are dropped from each end of a route of n
// points when start/end hiding is on.
func TrimCount(n int) int {
	switch {
	case n > 10:
		return max(2, n/20)
	case n >= 5:
		return 1
	default:
		return 0
	}
}

// TrimRoute returns a trimmed copy; the input slice is never modified.
func TrimRoute(route []geo.Point) []geo.Point {
	k := TrimCount(len(route))
	out := make([]geo.Point, 0, len(route)-2*k)
	return append(out, route[k:len(route)-k]...)
}

// FilterZones drops every coordinate within (or on) a zone boundary.
func FilterZones(route []geo.Point, zones []Zone) []geo.Point {
	out := make([]geo.Point, 0, len(route))
	for _, p := range route {
		if !insideAny(p, zones) {
			out = append(out, p)
		}
	}
	return out
}

func insideAny(p geo.Point, zones []Zone) bool {
	for _, z := range zones {
		if geo.Distance(p, z.Center) <= z.RadiusMeters {
			return true
		}
	}
	return false
}

// DisplayRoute trims the ends (when hideStartEnd is set), then removes privacy
// zone coordinates, then enforces the two-point floor.
func DisplayRoute(route []geo.Point, hideStartEnd bool, zones []Zone) ([]geo.Point, error) {
	display := route
	if hideStartEnd {
		display = TrimRoute(route)
	}
	display = FilterZones(display, zones)
	if len(display) < 2 {
		return nil, ErrRouteHidden
	}
	return display, nil
}
