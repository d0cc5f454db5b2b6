package activity

import (
	"time"

	"backend-strideup/internal/shared/geo"
	"backend-strideup/internal/stats"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusDiscarded  Status = "discarded"
)

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityPrivate:
		return true
	}
	return false
}

// DefaultPrivacyRadiusM applies when a start request leaves the radius out.
const DefaultPrivacyRadiusM = 200.0

type Activity struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Type           stats.ActivityType `json:"activity_type"`
	Status         Status             `json:"status"`
	Visibility     Visibility         `json:"visibility"`
	HideStartEnd   bool               `json:"hide_start_end"`
	PrivacyRadiusM float64            `json:"privacy_radius"`

	// Raw and masked endpoints; responses expose one of them via Detail.
	Start       *geo.Point `json:"-"`
	End         *geo.Point `json:"-"`
	MaskedStart *geo.Point `json:"-"`
	MaskedEnd   *geo.Point `json:"-"`

	DistanceM    float64  `json:"distance"`
	ActiveSec    *float64 `json:"duration"`
	ElapsedSec   *float64 `json:"total_elapsed_time"`
	AvgPace      *float64 `json:"average_pace"`
	AvgSpeed     *float64 `json:"average_speed"`
	MaxSpeed     *float64 `json:"max_speed"`
	ElevGain     *float64 `json:"elevation_gain"`
	ElevLoss     *float64 `json:"elevation_loss"`
	Calories     *float64 `json:"calories_burned"`
	QualityFlags []string `json:"quality_flags"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// DisplayStart is the start point shown to viewers: masked when start/end
// hiding is on.
func (a Activity) DisplayStart() *geo.Point {
	if a.HideStartEnd {
		return a.MaskedStart
	}
	return a.Start
}

func (a Activity) DisplayEnd() *geo.Point {
	if a.HideStartEnd {
		return a.MaskedEnd
	}
	return a.End
}

type GPSPoint struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Elevation  *float64  `json:"elevation,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"timestamp"`
}

type Pause struct {
	PausedAt  time.Time  `json:"paused_at"`
	ResumedAt *time.Time `json:"resumed_at"`
}

type StartRequest struct {
	Type           stats.ActivityType `json:"activity_type"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Visibility     Visibility         `json:"visibility"`
	HideStartEnd   bool               `json:"hide_start_end"`
	PrivacyRadiusM *float64           `json:"privacy_radius"`
}

// Edits are the optional field changes accepted while recording and on
// completion. Nil fields are left alone.
type Edits struct {
	Title          *string     `json:"title"`
	Description    *string     `json:"description"`
	Visibility     *Visibility `json:"visibility"`
	HideStartEnd   *bool       `json:"hide_start_end"`
	PrivacyRadiusM *float64    `json:"privacy_radius"`
}

type Summary struct {
	Activity
	DistanceKm        float64 `json:"distance_km"`
	PaceFormatted     string  `json:"pace_formatted"`
	DurationFormatted string  `json:"duration_formatted"`
}

type Detail struct {
	Summary
	StartLocation *geo.Point  `json:"start_location"`
	EndLocation   *geo.Point  `json:"end_location"`
	Route         []geo.Point `json:"route"`
	RouteHidden   bool        `json:"route_hidden"`
	Pauses        []Pause     `json:"pauses"`
}

func summarize(a Activity) Summary {
	return Summary{
		Activity:          a,
		DistanceKm:        stats.DistanceKm(a.DistanceM),
		PaceFormatted:     stats.FormatPace(a.AvgPace),
		DurationFormatted: stats.FormatDuration(a.ActiveSec),
	}
}
