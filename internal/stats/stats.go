// Package stats derives activity statistics from raw GPS samples and the
// pause log. Compute is pure: it never reads the clock, the database or a
// random source, so callers decide where the result is persisted.
package stats

import (
	"sort"
	"time"

	"backend-strideup/internal/shared/geo"
)

type ActivityType string

const (
	Run   ActivityType = "run"
	Walk  ActivityType = "walk"
	Cycle ActivityType = "cycle"
	Hike  ActivityType = "hike"
)

// ActivityTypes lists every recognised kind in display order.
var ActivityTypes = []ActivityType{Run, Walk, Cycle, Hike}

func (t ActivityType) Valid() bool {
	switch t {
	case Run, Walk, Cycle, Hike:
		return true
	}
	return false
}

// AssumedBodyMassKg feeds the calorie estimate. It is not calibrated per user.
const AssumedBodyMassKg = 70.0

const defaultMET = 5.0

var metByType = map[ActivityType]float64{
	Run:   9.8,
	Walk:  3.8,
	Cycle: 7.5,
	Hike:  6.0,
}

func MET(t ActivityType) float64 {
	if met, ok := metByType[t]; ok {
		return met
	}
	return defaultMET
}

type Sample struct {
	Point      geo.Point
	Elevation  *float64
	Speed      *float64 // m/s
	RecordedAt time.Time
	// Seq is the insertion order and breaks timestamp ties.
	Seq int64
}

type Pause struct {
	PausedAt  time.Time
	ResumedAt *time.Time
}

// Warning is a non-fatal data quality signal raised while computing.
type Warning string

const (
	WarnTooFewPoints           Warning = "too_few_points"
	WarnNegativeActiveDuration Warning = "negative_active_duration"
	WarnTooFewElevationSamples Warning = "too_few_elevation_samples"
	WarnOpenPause              Warning = "open_pause"
)

type Input struct {
	Type    ActivityType
	Samples []Sample
	Pauses  []Pause
}

// Result carries the derived statistics. Pointer fields stay nil when the
// value is undefined, which is different from zero.
type Result struct {
	Route        []geo.Point
	Start        *geo.Point
	End          *geo.Point
	DistanceM    float64
	ElapsedSec   *float64
	ActiveSec    *float64
	AvgPaceSecKm *float64
	AvgSpeedKmh  *float64
	MaxSpeedKmh  *float64
	ElevGainM    *float64
	ElevLossM    *float64
	Calories     *float64
	Warnings     []Warning
}

// HasRoute reports whether enough samples existed to build a route.
func (r Result) HasRoute() bool { return len(r.Route) >= 2 }

// SortSamples orders samples by timestamp, then insertion order, in place.
func SortSamples(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].RecordedAt.Equal(samples[j].RecordedAt) {
			return samples[i].Seq < samples[j].Seq
		}
		return samples[i].RecordedAt.Before(samples[j].RecordedAt)
	})
}

func Compute(in Input) Result {
	if len(in.Samples) < 2 {
		return Result{Warnings: []Warning{WarnTooFewPoints}}
	}

	samples := append([]Sample(nil), in.Samples...)
	SortSamples(samples)

	var res Result
	res.Route = make([]geo.Point, len(samples))
	for i, s := range samples {
		res.Route[i] = s.Point
	}
	start, end := res.Route[0], res.Route[len(res.Route)-1]
	res.Start, res.End = &start, &end

	res.DistanceM = geo.RouteLength(res.Route)

	elapsed := samples[len(samples)-1].RecordedAt.Sub(samples[0].RecordedAt).Seconds()
	paused := 0.0
	for _, p := range in.Pauses {
		if p.ResumedAt == nil {
			res.Warnings = append(res.Warnings, WarnOpenPause)
			continue
		}
		paused += p.ResumedAt.Sub(p.PausedAt).Seconds()
	}
	active := elapsed - paused
	if active < 0 {
		active = 0
		res.Warnings = append(res.Warnings, WarnNegativeActiveDuration)
	}
	res.ElapsedSec, res.ActiveSec = &elapsed, &active

	distanceKm := res.DistanceM / 1000
	if distanceKm > 0 && active > 0 {
		pace := active / distanceKm
		speed := distanceKm / (active / 3600)
		calories := MET(in.Type) * AssumedBodyMassKg * (active / 3600)
		res.AvgPaceSecKm, res.AvgSpeedKmh, res.Calories = &pace, &speed, &calories
	}

	res.MaxSpeedKmh = maxSpeed(samples)

	gain, loss, ok := elevation(samples)
	if ok {
		res.ElevGainM, res.ElevLossM = &gain, &loss
	} else {
		res.Warnings = append(res.Warnings, WarnTooFewElevationSamples)
	}
	return res
}

// maxSpeed converts the fastest instantaneous sample speed from m/s to km/h.
// Tracks without any speed readings leave it undefined.
func maxSpeed(samples []Sample) *float64 {
	var best *float64
	for _, s := range samples {
		if s.Speed == nil {
			continue
		}
		v := *s.Speed * 3.6
		if best == nil || v > *best {
			best = &v
		}
	}
	return best
}

func elevation(samples []Sample) (gain, loss float64, ok bool) {
	var prev *float64
	n := 0
	for _, s := range samples {
		if s.Elevation == nil {
			continue
		}
		n++
		if prev != nil {
			diff := *s.Elevation - *prev
			if diff > 0 {
				gain += diff
			} else {
				loss -= diff
			}
		}
		prev = s.Elevation
	}
	return gain, loss, n >= 2
}
