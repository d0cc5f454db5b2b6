package report

import (
	"time"

	"backend-strideup/internal/stats"
)

// Window narrows a rollup to one activity type and/or a started_at range.
// Zero fields are ignored.
type Window struct {
	Type stats.ActivityType
	From *time.Time
	To   *time.Time
}

type Totals struct {
	Activities       int      `json:"total_activities"`
	DistanceKm       float64  `json:"total_distance_km"`
	ActiveSec        float64  `json:"total_duration"`
	ElevationGainM   float64  `json:"total_elevation_gain"`
	Calories         float64  `json:"total_calories"`
	AvgDistanceKm    float64  `json:"avg_distance_km"`
	AvgPaceSecKm     *float64 `json:"avg_pace"`
	AvgPaceFormatted string   `json:"avg_pace_formatted"`
	DurationFormat   string   `json:"total_duration_formatted"`
}

type TypeBreakdown struct {
	Type       stats.ActivityType `json:"activity_type"`
	Count      int                `json:"count"`
	DistanceKm float64            `json:"distance_km"`
	ActiveSec  float64            `json:"duration"`
}

type Best struct {
	ActivityID string    `json:"activity_id"`
	Title      string    `json:"title"`
	Value      float64   `json:"value"`
	Formatted  string    `json:"formatted"`
	StartedAt  time.Time `json:"started_at"`
}

type PersonalBests struct {
	LongestDistance *Best `json:"longest_distance"`
	LongestDuration *Best `json:"longest_duration"`
	FastestPace     *Best `json:"fastest_pace"`
}

type UserStats struct {
	Totals
	ThisWeekKm    float64         `json:"this_week_distance_km"`
	ThisMonthKm   float64         `json:"this_month_distance_km"`
	ByType        []TypeBreakdown `json:"by_activity_type"`
	PersonalBests PersonalBests   `json:"personal_bests"`
}

type CommunityStats struct {
	Totals
	ByType       []TypeBreakdown `json:"by_activity_type"`
	MembersCount int             `json:"members_count"`
}
