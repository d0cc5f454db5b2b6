package stats

import (
	"fmt"
	"math"
	"time"
)

// FormatPace renders seconds per km as "M:SS".
func FormatPace(secPerKm *float64) string {
	if secPerKm == nil || *secPerKm <= 0 {
		return "--:--"
	}
	total := int(*secPerKm)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration renders seconds as "HH:MM:SS".
func FormatDuration(sec *float64) string {
	if sec == nil {
		return "00:00:00"
	}
	total := int(*sec)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func DistanceKm(distanceM float64) float64 {
	return Round(distanceM/1000, 2)
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 17:
		return "Afternoon"
	case hour >= 17 && hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}

func (t ActivityType) Label() string {
	switch t {
	case Run:
		return "Run"
	case Walk:
		return "Walk"
	case Cycle:
		return "Cycle"
	case Hike:
		return "Hike"
	default:
		return "Activity"
	}
}

// AutoTitle names an untitled activity after the time of day it started,
// e.g. "Morning Run".
func AutoTitle(t ActivityType, startedAt time.Time) string {
	return timeOfDay(startedAt.Hour()) + " " + t.Label()
}
