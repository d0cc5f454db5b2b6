package challenge

import (
	"context"
	"errors"
	"strings"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/community"
	"backend-strideup/internal/db"
	"backend-strideup/internal/logger"
	"backend-strideup/internal/shared/geo"
	"backend-strideup/internal/stats"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	leaderboardSize   = 20
	recentFeedSize    = 10
	maxReportPageSize = 100
)

type Service struct {
	db   db.TxQuerier
	caps community.Capabilities
	log  *logger.Logger
	now  func() time.Time
}

func NewService(db db.TxQuerier, caps community.Capabilities, log *logger.Logger) *Service {
	return &Service{db: db, caps: caps, log: logger.OrNop(log), now: time.Now}
}

const challengeColumns = `
	c.id, c.community_id, COALESCE(c.created_by, ''), c.title, c.description, c.challenge_type, c.contribution_scope,
	c.activity_types, c.target_value, c.target_unit, c.start_date, c.end_date, c.status, c.is_route_challenge, c.created_at`

func scanChallenge(row pgx.Row, extra ...any) (Challenge, error) {
	var c Challenge
	var types []string
	dest := append([]any{
		&c.ID, &c.CommunityID, &c.CreatedBy, &c.Title, &c.Description, &c.Type, &c.Scope,
		&types, &c.TargetValue, &c.TargetUnit, &c.StartDate, &c.EndDate, &c.Status, &c.IsRoute, &c.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Challenge{}, err
	}
	c.ActivityTypes = make([]stats.ActivityType, len(types))
	for i, t := range types {
		c.ActivityTypes[i] = stats.ActivityType(t)
	}
	return c, nil
}

func typeStrings(types []stats.ActivityType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func validate(req *CreateRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return apperr.Validation("title required")
	case !req.Type.Valid():
		return apperr.Validation("unknown challenge_type %q", req.Type)
	case !req.Scope.Valid():
		return apperr.Validation("unknown contribution_scope %q", req.Scope)
	case req.TargetValue <= 0:
		return apperr.Validation("target_value must be positive")
	case !req.EndDate.After(req.StartDate):
		return apperr.Validation("end_date must be after start_date")
	case len(req.ActivityTypes) == 0:
		return apperr.Validation("at least one activity type is required")
	}
	for _, t := range req.ActivityTypes {
		if !t.Valid() {
			return apperr.Validation("invalid activity type %q", t)
		}
	}
	if req.TargetUnit == "" {
		req.TargetUnit = req.Type.Unit()
	}
	for i := range req.Waypoints {
		wp := &req.Waypoints[i]
		if err := geo.ValidateCoordinate(wp.Lat, wp.Lng); err != nil {
			return apperr.Validation("waypoint %d: %v", i, err)
		}
		switch wp.Type {
		case WaypointStart, WaypointCheckpoint, WaypointEnd:
		default:
			return apperr.Validation("waypoint %d: unknown waypoint_type %q", i, wp.Type)
		}
		if wp.RadiusMeters <= 0 {
			wp.RadiusMeters = DefaultCaptureRadiusM
		}
	}
	return nil
}

// Create opens a challenge in a community. Only owners and admins may do so.
func (s *Service) Create(ctx context.Context, userID, communityID string, req CreateRequest) (Challenge, error) {
	role, err := s.caps.RoleOf(ctx, userID, communityID)
	if err != nil {
		return Challenge{}, err
	}
	if !community.CanManageChallenges(role) {
		return Challenge{}, apperr.Permission("only owners and admins can create challenges")
	}
	if err := validate(&req); err != nil {
		return Challenge{}, err
	}

	now := s.now()
	c := Challenge{
		ID:            uuid.NewString(),
		CommunityID:   communityID,
		CreatedBy:     userID,
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Scope:         req.Scope,
		ActivityTypes: req.ActivityTypes,
		TargetValue:   req.TargetValue,
		TargetUnit:    req.TargetUnit,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		IsRoute:       len(req.Waypoints) > 0,
	}
	c.Status = DerivedStatus("", c.StartDate, c.EndDate, now)
	c.CurrentStatus = c.Status

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO challenges (id, community_id, created_by, title, description, challenge_type, contribution_scope,
				activity_types, target_value, target_unit, start_date, end_date, status, is_route_challenge)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			RETURNING created_at
		`, c.ID, c.CommunityID, c.CreatedBy, c.Title, c.Description, c.Type, c.Scope,
			typeStrings(c.ActivityTypes), c.TargetValue, c.TargetUnit, c.StartDate, c.EndDate, c.Status, c.IsRoute)
		if err := row.Scan(&c.CreatedAt); err != nil {
			return err
		}
		for i := range req.Waypoints {
			wp := &req.Waypoints[i]
			wp.ID = uuid.NewString()
			if _, err := tx.Exec(ctx, `
				INSERT INTO challenge_route_waypoints (id, challenge_id, position, waypoint_type, location, name, radius_meters)
				VALUES ($1,$2,$3,$4, ST_SetSRID(ST_MakePoint($5,$6), 4326)::geography, $7, $8)
			`, wp.ID, c.ID, wp.Order, wp.Type, wp.Lng, wp.Lat, wp.Name, wp.RadiusMeters); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Challenge{}, err
	}
	s.log.Info("challenge created", "challenge_id", c.ID, "community_id", communityID, "challenge_type", c.Type)
	return c, nil
}

// Get loads a challenge and brings its stored status in line with the clock.
func (s *Service) Get(ctx context.Context, id string) (Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges c WHERE c.id=$1`, id))
	if err != nil {
		return Challenge{}, apperr.NotFoundIfNoRows(err, "challenge")
	}
	if err := s.refreshStatus(ctx, &c); err != nil {
		return Challenge{}, err
	}
	return c, nil
}

// readable loads a challenge on behalf of viewerID, who has to be an active
// member of the hosting community.
func (s *Service) readable(ctx context.Context, viewerID, id string) (Challenge, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Challenge{}, err
	}
	if err := s.requireMember(ctx, viewerID, c.CommunityID); err != nil {
		return Challenge{}, err
	}
	return c, nil
}

func (s *Service) requireMember(ctx context.Context, userID, communityID string) error {
	member, err := s.caps.IsActiveMember(ctx, userID, communityID)
	if err != nil {
		return err
	}
	if !member {
		return apperr.Permission("only community members can view its challenges")
	}
	return nil
}

func (s *Service) refreshStatus(ctx context.Context, c *Challenge) error {
	c.CurrentStatus = DerivedStatus(c.Status, c.StartDate, c.EndDate, s.now())
	if c.CurrentStatus == c.Status {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE challenges SET status=$2 WHERE id=$1 AND status <> 'cancelled'`, c.ID, c.CurrentStatus)
	if err != nil {
		return err
	}
	c.Status = c.CurrentStatus
	return nil
}

func (s *Service) Cancel(ctx context.Context, userID, id string) (Challenge, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Challenge{}, err
	}
	role, err := s.caps.RoleOf(ctx, userID, c.CommunityID)
	if err != nil {
		return Challenge{}, err
	}
	if !community.CanManageChallenges(role) {
		return Challenge{}, apperr.Permission("only owners and admins can cancel challenges")
	}
	switch c.CurrentStatus {
	case StatusCancelled:
		return Challenge{}, apperr.StateConflict("challenge already cancelled")
	case StatusCompleted:
		return Challenge{}, apperr.StateConflict("challenge already finished")
	}
	if _, err := s.db.Exec(ctx, `UPDATE challenges SET status='cancelled' WHERE id=$1`, id); err != nil {
		return Challenge{}, err
	}
	c.Status, c.CurrentStatus = StatusCancelled, StatusCancelled
	s.log.Info("challenge cancelled", "challenge_id", id, "by", userID)
	return c, nil
}

const listingAggregates = `
	COUNT(p.id), COUNT(p.id) FILTER (WHERE p.is_completed), COALESCE(SUM(p.total_contributed), 0),
	COALESCE(BOOL_OR(p.user_id = $2), false)`

func (s *Service) scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	var completed int
	c, err := scanChallenge(row, &l.ParticipantsCount, &completed, &l.TotalProgress, &l.IsJoined)
	if err != nil {
		return Listing{}, err
	}
	c.CurrentStatus = DerivedStatus(c.Status, c.StartDate, c.EndDate, s.now())
	l.Challenge = c
	l.TotalProgress = stats.Round(l.TotalProgress, 2)
	if c.Scope == ScopeIndividual {
		if l.ParticipantsCount > 0 {
			l.ProgressPercentage = stats.Round(float64(completed)/float64(l.ParticipantsCount)*100, 1)
		}
	} else {
		l.ProgressPercentage = c.Percentage(l.TotalProgress)
	}
	return l, nil
}

// List returns a community's challenges, newest first, with progress rollups
// as seen by viewerID.
func (s *Service) List(ctx context.Context, viewerID, communityID string) ([]Listing, error) {
	if err := s.requireMember(ctx, viewerID, communityID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`,`+listingAggregates+`
		FROM challenges c
		LEFT JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE c.community_id=$1
		GROUP BY c.id
		ORDER BY c.start_date DESC
	`, communityID, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Listing{}
	for rows.Next() {
		l, err := s.scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Join enrolls userID. Only active members may join, and only while the
// challenge is upcoming or running.
func (s *Service) Join(ctx context.Context, userID, id string) (Participant, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Participant{}, err
	}
	if c.CurrentStatus != StatusUpcoming && c.CurrentStatus != StatusActive {
		return Participant{}, apperr.StateConflict("cannot join a challenge that is %s", c.CurrentStatus)
	}
	member, err := s.caps.IsActiveMember(ctx, userID, c.CommunityID)
	if err != nil {
		return Participant{}, err
	}
	if !member {
		return Participant{}, apperr.Permission("only community members can join")
	}

	p := Participant{ID: uuid.NewString(), ChallengeID: id, UserID: userID}
	err = s.db.QueryRow(ctx, `
		INSERT INTO challenge_participants (id, challenge_id, user_id, joined_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (challenge_id, user_id) DO NOTHING
		RETURNING joined_at
	`, p.ID, p.ChallengeID, p.UserID, s.now()).Scan(&p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Participant{}, apperr.StateConflict("already joined")
	}
	if err != nil {
		return Participant{}, err
	}
	return p, nil
}

// Leave removes the participant together with its contributions.
func (s *Service) Leave(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM challenge_participants WHERE challenge_id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("not a participant")
	}
	return nil
}

func (s *Service) Detail(ctx context.Context, viewerID, id string) (Detail, error) {
	c, err := s.readable(ctx, viewerID, id)
	if err != nil {
		return Detail{}, err
	}
	l, err := s.scanListing(s.db.QueryRow(ctx, `
		SELECT `+challengeColumns+`,`+listingAggregates+`
		FROM challenges c
		LEFT JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE c.id=$1
		GROUP BY c.id
	`, id, viewerID))
	if err != nil {
		return Detail{}, apperr.NotFoundIfNoRows(err, "challenge")
	}
	l.Challenge = c

	d := Detail{Listing: l}
	if d.Leaderboard, err = s.leaderboard(ctx, id, leaderboardSize); err != nil {
		return Detail{}, err
	}
	if d.RecentContributions, err = s.recentContributions(ctx, id, recentFeedSize); err != nil {
		return Detail{}, err
	}
	if d.Waypoints, err = s.Waypoints(ctx, id); err != nil {
		return Detail{}, err
	}
	if d.MyProgress, err = s.progressOf(ctx, c, viewerID); err != nil {
		return Detail{}, err
	}
	return d, nil
}

func (s *Service) progressOf(ctx context.Context, c Challenge, userID string) (*Progress, error) {
	var p Progress
	err := s.db.QueryRow(ctx, `
		SELECT total_contributed, is_completed, joined_at
		FROM challenge_participants WHERE challenge_id=$1 AND user_id=$2
	`, c.ID, userID).Scan(&p.TotalContributed, &p.IsCompleted, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Percentage = c.Percentage(p.TotalContributed)
	return &p, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxReportPageSize)
}

// Leaderboard orders participants by running total, highest first.
func (s *Service) Leaderboard(ctx context.Context, viewerID, id string, limit int) ([]Participant, error) {
	if _, err := s.readable(ctx, viewerID, id); err != nil {
		return nil, err
	}
	return s.leaderboard(ctx, id, limit)
}

func (s *Service) leaderboard(ctx context.Context, id string, limit int) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.challenge_id, p.user_id, u.username, p.total_contributed, p.is_completed, p.joined_at
		FROM challenge_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.challenge_id=$1
		ORDER BY p.total_contributed DESC, p.joined_at
		LIMIT $2
	`, id, clampLimit(limit, leaderboardSize))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Participant{}
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.Username, &p.TotalContributed, &p.IsCompleted, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) RecentContributions(ctx context.Context, viewerID, id string, limit int) ([]Contribution, error) {
	if _, err := s.readable(ctx, viewerID, id); err != nil {
		return nil, err
	}
	return s.recentContributions(ctx, id, limit)
}

func (s *Service) recentContributions(ctx context.Context, id string, limit int) ([]Contribution, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.participant_id, p.user_id, u.username, c.activity_id, a.title, a.activity_type, c.value, c.contributed_at
		FROM challenge_contributions c
		JOIN challenge_participants p ON p.id = c.participant_id
		JOIN users u ON u.id = p.user_id
		JOIN activities a ON a.id = c.activity_id
		WHERE c.challenge_id=$1
		ORDER BY c.contributed_at DESC
		LIMIT $2
	`, id, clampLimit(limit, recentFeedSize))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contribution{}
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.ParticipantID, &c.UserID, &c.Username, &c.ActivityID, &c.ActivityTitle, &c.ActivityType, &c.Value, &c.ContributedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) Waypoints(ctx context.Context, id string) ([]Waypoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, position, waypoint_type, ST_Y(location::geometry), ST_X(location::geometry), name, radius_meters
		FROM challenge_route_waypoints WHERE challenge_id=$1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Waypoint{}
	for rows.Next() {
		var wp Waypoint
		if err := rows.Scan(&wp.ID, &wp.Order, &wp.Type, &wp.Lat, &wp.Lng, &wp.Name, &wp.RadiusMeters); err != nil {
			return nil, err
		}
		out = append(out, wp)
	}
	return out, rows.Err()
}

// RouteProgress reports which waypoints userID has passed within their capture
// radius during a completed activity inside the challenge window.
func (s *Service) RouteProgress(ctx context.Context, userID, id string) ([]WaypointProgress, error) {
	c, err := s.readable(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !c.IsRoute {
		return nil, apperr.Validation("challenge has no route")
	}
	rows, err := s.db.Query(ctx, `
		SELECT w.id, w.position, w.waypoint_type, ST_Y(w.location::geometry), ST_X(w.location::geometry), w.name, w.radius_meters,
		       EXISTS (
		           SELECT 1
		           FROM gps_points g
		           JOIN activities a ON a.id = g.activity_id
		           WHERE a.user_id = $2 AND a.status = 'completed'
		             AND g.recorded_at BETWEEN $3 AND $4
		             AND ST_DWithin(g.location, w.location, w.radius_meters)
		       )
		FROM challenge_route_waypoints w
		WHERE w.challenge_id=$1
		ORDER BY w.position
	`, id, userID, c.StartDate, c.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []WaypointProgress{}
	for rows.Next() {
		var wp WaypointProgress
		if err := rows.Scan(&wp.ID, &wp.Order, &wp.Type, &wp.Lat, &wp.Lng, &wp.Name, &wp.RadiusMeters, &wp.Captured); err != nil {
			return nil, err
		}
		out = append(out, wp)
	}
	return out, rows.Err()
}
