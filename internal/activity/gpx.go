package activity

import (
	"context"
	"errors"

	"backend-strideup/internal/privacy"
	"backend-strideup/internal/shared/geo"

	"github.com/tkrajina/gpxgo/gpx"
)

// ExportGPX renders the viewer's display route as a GPX 1.1 track. Only the
// privacy-filtered coordinates are written, never raw samples or timestamps.
func (s *Service) ExportGPX(ctx context.Context, viewerID, id string) ([]byte, error) {
	a, route, err := s.DisplayRoute(ctx, viewerID, id)
	if err != nil && !errors.Is(err, privacy.ErrRouteHidden) {
		return nil, err
	}
	return renderGPX(a, route)
}

func renderGPX(a Activity, route []geo.Point) ([]byte, error) {
	segment := gpx.GPXTrackSegment{Points: make([]gpx.GPXPoint, 0, len(route))}
	for _, p := range route {
		segment.Points = append(segment.Points, gpx.GPXPoint{
			Point: gpx.Point{Latitude: p.Lat, Longitude: p.Lng},
		})
	}

	doc := gpx.GPX{
		Creator: "StrideUp",
		Name:    a.Title,
		Tracks: []gpx.GPXTrack{{
			Name:     a.Title,
			Type:     string(a.Type),
			Segments: []gpx.GPXTrackSegment{segment},
		}},
	}
	return doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
}
