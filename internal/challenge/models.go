package challenge

import (
	"time"

	"backend-strideup/internal/activity"
	"backend-strideup/internal/stats"
)

type Type string

const (
	TypeDistance  Type = "distance"
	TypeDuration  Type = "duration"
	TypeCount     Type = "count"
	TypeElevation Type = "elevation"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDistance, TypeDuration, TypeCount, TypeElevation:
		return true
	}
	return false
}

// Unit is the default target unit for the challenge type.
func (t Type) Unit() string {
	switch t {
	case TypeDistance:
		return "km"
	case TypeDuration:
		return "hours"
	case TypeCount:
		return "activities"
	case TypeElevation:
		return "m"
	}
	return ""
}

type Scope string

const (
	ScopeCollective Scope = "collective"
	ScopeIndividual Scope = "individual"
)

func (s Scope) Valid() bool {
	return s == ScopeCollective || s == ScopeIndividual
}

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DerivedStatus is the status as of now. Cancelled is sticky; everything else
// follows the clock.
func DerivedStatus(stored Status, start, end, now time.Time) Status {
	switch {
	case stored == StatusCancelled:
		return StatusCancelled
	case now.Before(start):
		return StatusUpcoming
	case now.After(end):
		return StatusCompleted
	default:
		return StatusActive
	}
}

type WaypointType string

const (
	WaypointStart      WaypointType = "start"
	WaypointCheckpoint WaypointType = "checkpoint"
	WaypointEnd        WaypointType = "end"
)

// DefaultCaptureRadiusM applies to waypoints created without a radius.
const DefaultCaptureRadiusM = 50.0

type Challenge struct {
	ID            string               `json:"id"`
	CommunityID   string               `json:"community_id"`
	CreatedBy     string               `json:"created_by"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Type          Type                 `json:"challenge_type"`
	Scope         Scope                `json:"contribution_scope"`
	ActivityTypes []stats.ActivityType `json:"activity_types"`
	TargetValue   float64              `json:"target_value"`
	TargetUnit    string               `json:"target_unit"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	Status        Status               `json:"status"`
	CurrentStatus Status               `json:"current_status"`
	IsRoute       bool                 `json:"is_route_challenge"`
	CreatedAt     time.Time            `json:"created_at"`
}

func (c Challenge) Qualifies(t stats.ActivityType) bool {
	for _, at := range c.ActivityTypes {
		if at == t {
			return true
		}
	}
	return false
}

// Percentage is progress toward the target, one decimal, capped at 100.
func (c Challenge) Percentage(total float64) float64 {
	if c.TargetValue <= 0 {
		return 0
	}
	return min(stats.Round(total/c.TargetValue*100, 1), 100)
}

// ContributionValue is the credit an activity earns toward a challenge of
// type t. Zero means nothing is recorded.
func ContributionValue(t Type, a activity.Activity) float64 {
	var v float64
	switch t {
	case TypeDistance:
		v = stats.Round(a.DistanceM/1000, 2)
	case TypeDuration:
		if a.ActiveSec != nil {
			v = stats.Round(*a.ActiveSec/3600, 2)
		}
	case TypeCount:
		v = 1
	case TypeElevation:
		if a.ElevGain != nil {
			v = stats.Round(*a.ElevGain, 1)
		}
	}
	return max(v, 0)
}

type Waypoint struct {
	ID           string       `json:"id"`
	Order        int          `json:"order"`
	Type         WaypointType `json:"waypoint_type"`
	Lat          float64      `json:"latitude"`
	Lng          float64      `json:"longitude"`
	Name         string       `json:"name"`
	RadiusMeters float64      `json:"radius_meters"`
}

type WaypointProgress struct {
	Waypoint
	Captured bool `json:"captured"`
}

type Participant struct {
	ID               string    `json:"id"`
	ChallengeID      string    `json:"challenge_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username,omitempty"`
	TotalContributed float64   `json:"total_contributed"`
	IsCompleted      bool      `json:"is_completed"`
	JoinedAt         time.Time `json:"joined_at"`
}

type Contribution struct {
	ID            string             `json:"id"`
	ParticipantID string             `json:"participant_id"`
	UserID        string             `json:"user_id"`
	Username      string             `json:"username"`
	ActivityID    string             `json:"activity_id"`
	ActivityTitle string             `json:"activity_title"`
	ActivityType  stats.ActivityType `json:"activity_type"`
	Value         float64            `json:"value"`
	ContributedAt time.Time          `json:"contributed_at"`
}

type Progress struct {
	TotalContributed float64   `json:"total_contributed"`
	IsCompleted      bool      `json:"is_completed"`
	JoinedAt         time.Time `json:"joined_at"`
	Percentage       float64   `json:"percentage"`
}

type Listing struct {
	Challenge
	ParticipantsCount  int     `json:"participants_count"`
	TotalProgress      float64 `json:"total_progress"`
	ProgressPercentage float64 `json:"progress_percentage"`
	IsJoined           bool    `json:"is_joined"`
}

type Detail struct {
	Listing
	Leaderboard         []Participant  `json:"leaderboard"`
	MyProgress          *Progress      `json:"my_progress"`
	RecentContributions []Contribution `json:"recent_contributions"`
	Waypoints           []Waypoint     `json:"route_waypoints"`
}

type CreateRequest struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Type          Type                 `json:"challenge_type"`
	Scope         Scope                `json:"contribution_scope"`
	ActivityTypes []stats.ActivityType `json:"activity_types"`
	TargetValue   float64              `json:"target_value"`
	TargetUnit    string               `json:"target_unit"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	Waypoints     []Waypoint           `json:"waypoints"`
}
