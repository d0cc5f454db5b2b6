// Package geo holds the spherical-earth math shared by the statistics and
// privacy code. Angles are degrees at the API boundary and radians inside.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// EarthRadiusM is the mean earth radius used by every formula here.
const EarthRadiusM = 6371000.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// ValidateCoordinate rejects latitudes outside [-90,90] and longitudes
// outside [-180,180]. Callers run it before any of the math below.
func ValidateCoordinate(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	return nil
}

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineMeters(lat1, lng1, lat2, lng2) / 1000
}

func Distance(a, b Point) float64 {
	return HaversineMeters(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Destination returns the point reached by travelling distanceM meters from
// origin on the initial bearing (degrees clockwise from north).
func Destination(origin Point, bearingDeg, distanceM float64) Point {
	delta := distanceM / EarthRadiusM
	theta := toRad(bearingDeg)
	phi1 := toRad(origin.Lat)
	lambda1 := toRad(origin.Lng)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	lng := math.Mod(toDeg(lambda2)+540, 360) - 180
	return Point{Lat: toDeg(phi2), Lng: lng}
}

// Bearing is the initial great-circle bearing from a to b in [0,360).
func Bearing(a, b Point) float64 {
	phi1, phi2 := toRad(a.Lat), toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLng)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// RouteLength sums consecutive segment distances along the sequence.
func RouteLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// LineString is the GeoJSON encoding used to move routes in and out of
// PostGIS (ST_GeomFromGeoJSON / ST_AsGeoJSON). Coordinates are [lng, lat].
type LineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func EncodeLineString(points []Point) (string, error) {
	ls := LineString{Type: "LineString", Coordinates: make([][2]float64, len(points))}
	for i, p := range points {
		ls.Coordinates[i] = [2]float64{p.Lng, p.Lat}
	}
	raw, err := json.Marshal(ls)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeLineString(raw string) ([]Point, error) {
	var ls LineString
	if err := json.Unmarshal([]byte(raw), &ls); err != nil {
		return nil, err
	}
	if ls.Type != "LineString" {
		return nil, errors.New("geojson is not a LineString")
	}
	points := make([]Point, len(ls.Coordinates))
	for i, c := range ls.Coordinates {
		points[i] = Point{Lat: c[1], Lng: c[0]}
	}
	return points, nil
}
