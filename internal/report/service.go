// Package report computes read-side rollups over completed activities. Nothing
// here is persisted; every figure is recomputed from activities on request.
package report

import (
	"context"
	"strconv"
	"strings"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/community"
	"backend-strideup/internal/db"
	"backend-strideup/internal/stats"
)

type Service struct {
	db   db.Querier
	caps community.Capabilities
	now  func() time.Time
}

func NewService(db db.Querier, caps community.Capabilities) *Service {
	return &Service{db: db, caps: caps, now: time.Now}
}

// filter accumulates WHERE conditions with positional parameters.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(f.args)), 1))
}

func (f *filter) where() string {
	return strings.Join(append([]string{"status = 'completed'"}, f.conds...), " AND ")
}

func (f *filter) window(w Window) {
	if w.Type != "" {
		f.add("activity_type = ?", w.Type)
	}
	if w.From != nil {
		f.add("started_at >= ?", *w.From)
	}
	if w.To != nil {
		f.add("started_at <= ?", *w.To)
	}
}

func userFilter(userID string, w Window) *filter {
	f := &filter{}
	f.add("user_id = ?", userID)
	f.window(w)
	return f
}

func communityFilter(communityID string, w Window) *filter {
	f := &filter{}
	f.add("user_id IN (SELECT user_id FROM community_memberships WHERE community_id = ? AND status = 'active')", communityID)
	f.window(w)
	return f
}

func (s *Service) totals(ctx context.Context, f *filter) (Totals, error) {
	var t Totals
	var distanceM float64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(distance_m), 0), COALESCE(SUM(active_duration_s), 0),
		       COALESCE(SUM(elevation_gain), 0), COALESCE(SUM(calories), 0), AVG(average_pace)
		FROM activities WHERE `+f.where(), f.args...).
		Scan(&t.Activities, &distanceM, &t.ActiveSec, &t.ElevationGainM, &t.Calories, &t.AvgPaceSecKm)
	if err != nil {
		return Totals{}, err
	}
	t.DistanceKm = stats.DistanceKm(distanceM)
	if t.Activities > 0 {
		t.AvgDistanceKm = stats.DistanceKm(distanceM / float64(t.Activities))
	}
	t.ElevationGainM = stats.Round(t.ElevationGainM, 1)
	t.Calories = stats.Round(t.Calories, 0)
	t.AvgPaceFormatted = stats.FormatPace(t.AvgPaceSecKm)
	t.DurationFormat = stats.FormatDuration(&t.ActiveSec)
	return t, nil
}

func (s *Service) byType(ctx context.Context, f *filter) ([]TypeBreakdown, error) {
	rows, err := s.db.Query(ctx, `
		SELECT activity_type, COUNT(*), COALESCE(SUM(distance_m), 0), COALESCE(SUM(active_duration_s), 0)
		FROM activities WHERE `+f.where()+`
		GROUP BY activity_type
		ORDER BY activity_type
	`, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TypeBreakdown{}
	for rows.Next() {
		var b TypeBreakdown
		var distanceM float64
		if err := rows.Scan(&b.Type, &b.Count, &distanceM, &b.ActiveSec); err != nil {
			return nil, err
		}
		b.DistanceKm = stats.DistanceKm(distanceM)
		out = append(out, b)
	}
	return out, rows.Err()
}

// best returns the top activity for column under order, or nil when the user
// has none with that figure.
func (s *Service) best(ctx context.Context, f *filter, column, order string) (*Best, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, `+column+`, started_at
		FROM activities WHERE `+f.where()+` AND `+column+` IS NOT NULL AND `+column+` > 0
		ORDER BY `+column+` `+order+`
		LIMIT 1
	`, f.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var b Best
	if err := rows.Scan(&b.ActivityID, &b.Title, &b.Value, &b.StartedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func startOfWeek(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func (s *Service) UserStats(ctx context.Context, userID string, w Window) (UserStats, error) {
	f := userFilter(userID, w)

	var out UserStats
	var err error
	if out.Totals, err = s.totals(ctx, f); err != nil {
		return UserStats{}, err
	}

	now := s.now()
	var weekM, monthM float64
	if err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(distance_m) FILTER (WHERE started_at >= $2), 0),
		       COALESCE(SUM(distance_m) FILTER (WHERE started_at >= $3), 0)
		FROM activities WHERE user_id = $1 AND status = 'completed'
	`, userID, startOfWeek(now), startOfMonth(now)).Scan(&weekM, &monthM); err != nil {
		return UserStats{}, err
	}
	out.ThisWeekKm, out.ThisMonthKm = stats.DistanceKm(weekM), stats.DistanceKm(monthM)

	if out.ByType, err = s.byType(ctx, f); err != nil {
		return UserStats{}, err
	}

	pb := &out.PersonalBests
	if pb.LongestDistance, err = s.best(ctx, f, "distance_m", "DESC"); err != nil {
		return UserStats{}, err
	}
	if pb.LongestDistance != nil {
		pb.LongestDistance.Formatted = strconv.FormatFloat(stats.DistanceKm(pb.LongestDistance.Value), 'f', 2, 64) + " km"
	}
	if pb.LongestDuration, err = s.best(ctx, f, "active_duration_s", "DESC"); err != nil {
		return UserStats{}, err
	}
	if pb.LongestDuration != nil {
		pb.LongestDuration.Formatted = stats.FormatDuration(&pb.LongestDuration.Value)
	}
	if pb.FastestPace, err = s.best(ctx, f, "average_pace", "ASC"); err != nil {
		return UserStats{}, err
	}
	if pb.FastestPace != nil {
		pb.FastestPace.Formatted = stats.FormatPace(&pb.FastestPace.Value) + " /km"
	}
	return out, nil
}

// CommunityStats rolls up completed activities of the community's active
// members. Only active members may read it.
func (s *Service) CommunityStats(ctx context.Context, viewerID, communityID string, w Window) (CommunityStats, error) {
	member, err := s.caps.IsActiveMember(ctx, viewerID, communityID)
	if err != nil {
		return CommunityStats{}, err
	}
	if !member {
		return CommunityStats{}, apperr.Permission("only community members can view its stats")
	}
	f := communityFilter(communityID, w)

	var out CommunityStats
	if out.Totals, err = s.totals(ctx, f); err != nil {
		return CommunityStats{}, err
	}
	if out.ByType, err = s.byType(ctx, f); err != nil {
		return CommunityStats{}, err
	}
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM community_memberships WHERE community_id = $1 AND status = 'active'
	`, communityID).Scan(&out.MembersCount); err != nil {
		return CommunityStats{}, err
	}
	return out, nil
}
