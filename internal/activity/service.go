package activity

import (
	"context"
	"errors"
	"strconv"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/db"
	"backend-strideup/internal/events"
	"backend-strideup/internal/logger"
	"backend-strideup/internal/privacy"
	"backend-strideup/internal/shared/geo"
	"backend-strideup/internal/social"
	"backend-strideup/internal/stats"
	"backend-strideup/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CompletionHook runs after a completion has committed. It must be safe to
// call more than once for the same activity.
type CompletionHook interface {
	ActivityCompleted(ctx context.Context, a Activity)
}

type LiveFeed interface {
	Publish(ev stream.Event)
}

type Deps struct {
	Zones   privacy.ZoneSource
	Follows social.FollowChecker
	Hook    CompletionHook
	Events  events.Publisher
	Live    LiveFeed
	Masker  *privacy.Masker
	Log     *logger.Logger
}

type Service struct {
	db      db.TxQuerier
	zones   privacy.ZoneSource
	follows social.FollowChecker
	hook    CompletionHook
	events  events.Publisher
	live    LiveFeed
	masker  *privacy.Masker
	log     *logger.Logger
	now     func() time.Time
}

func NewService(db db.TxQuerier, deps Deps) *Service {
	s := &Service{
		db:      db,
		zones:   deps.Zones,
		follows: deps.Follows,
		hook:    deps.Hook,
		events:  deps.Events,
		live:    deps.Live,
		masker:  deps.Masker,
		log:     logger.OrNop(deps.Log),
		now:     time.Now,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.masker == nil {
		s.masker = privacy.NewMasker()
	}
	return s
}

const activityColumns = `
	id, user_id, title, description, activity_type, status, visibility, hide_start_end, privacy_radius_m,
	ST_Y(start_point::geometry), ST_X(start_point::geometry),
	ST_Y(end_point::geometry), ST_X(end_point::geometry),
	ST_Y(masked_start_point::geometry), ST_X(masked_start_point::geometry),
	ST_Y(masked_end_point::geometry), ST_X(masked_end_point::geometry),
	distance_m, active_duration_s, elapsed_duration_s, average_pace, average_speed, max_speed,
	elevation_gain, elevation_loss, calories, quality_flags,
	started_at, finished_at, created_at, updated_at`

var gpsColumns = []string{"activity_id", "latitude", "longitude", "elevation", "accuracy", "speed", "heading", "recorded_at"}

func scanActivity(row pgx.Row) (Activity, error) {
	var a Activity
	var sLat, sLng, eLat, eLng, msLat, msLng, meLat, meLng *float64
	err := row.Scan(
		&a.ID, &a.UserID, &a.Title, &a.Description, &a.Type, &a.Status, &a.Visibility, &a.HideStartEnd, &a.PrivacyRadiusM,
		&sLat, &sLng, &eLat, &eLng, &msLat, &msLng, &meLat, &meLng,
		&a.DistanceM, &a.ActiveSec, &a.ElapsedSec, &a.AvgPace, &a.AvgSpeed, &a.MaxSpeed,
		&a.ElevGain, &a.ElevLoss, &a.Calories, &a.QualityFlags,
		&a.StartedAt, &a.FinishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Activity{}, err
	}
	a.Start, a.End = pointOf(sLat, sLng), pointOf(eLat, eLng)
	a.MaskedStart, a.MaskedEnd = pointOf(msLat, msLng), pointOf(meLat, meLng)
	return a, nil
}

func pointOf(lat, lng *float64) *geo.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.Point{Lat: *lat, Lng: *lng}
}

// ewkt renders a point for ST_GeogFromText; nil stays NULL.
func ewkt(p *geo.Point) *string {
	if p == nil {
		return nil
	}
	s := "SRID=4326;POINT(" + strconv.FormatFloat(p.Lng, 'f', -1, 64) + " " + strconv.FormatFloat(p.Lat, 'f', -1, 64) + ")"
	return &s
}

func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (Activity, error) {
	if !req.Type.Valid() {
		return Activity{}, apperr.Validation("unknown activity_type %q", req.Type)
	}
	if req.Visibility == "" {
		req.Visibility = VisibilityPublic
	}
	if !req.Visibility.Valid() {
		return Activity{}, apperr.Validation("unknown visibility %q", req.Visibility)
	}
	radius := DefaultPrivacyRadiusM
	if req.PrivacyRadiusM != nil {
		if *req.PrivacyRadiusM <= 0 {
			return Activity{}, apperr.Validation("privacy_radius must be positive")
		}
		radius = *req.PrivacyRadiusM
	}

	now := s.now()
	a := Activity{
		ID:             uuid.NewString(),
		UserID:         userID,
		Title:          req.Title,
		Description:    req.Description,
		Type:           req.Type,
		Status:         StatusInProgress,
		Visibility:     req.Visibility,
		HideStartEnd:   req.HideStartEnd,
		PrivacyRadiusM: radius,
		QualityFlags:   []string{},
		StartedAt:      now,
	}
	if a.Title == "" {
		a.Title = stats.AutoTitle(a.Type, now)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO activities (id, user_id, title, description, activity_type, status, visibility, hide_start_end, privacy_radius_m, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, a.ID, a.UserID, a.Title, a.Description, a.Type, a.Status, a.Visibility, a.HideStartEnd, a.PrivacyRadiusM, a.StartedAt)
	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return Activity{}, err
	}
	s.log.Info("activity started", "activity_id", a.ID, "user_id", userID, "activity_type", a.Type)
	return a, nil
}

// lockOwned loads the activity under a row lock; other users' activities are
// reported as missing.
func (s *Service) lockOwned(ctx context.Context, q db.Querier, userID, id string) (Activity, error) {
	a, err := scanActivity(q.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Activity{}, apperr.NotFoundIfNoRows(err, "activity")
	}
	if a.UserID != userID {
		return Activity{}, apperr.NotFound("activity not found")
	}
	return a, nil
}

func (s *Service) get(ctx context.Context, id string) (Activity, error) {
	a, err := scanActivity(s.db.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=$1`, id))
	if err != nil {
		return Activity{}, apperr.NotFoundIfNoRows(err, "activity")
	}
	return a, nil
}

// UploadPoints appends a batch of samples. The row lock serializes batches for
// one activity so insertion order follows arrival order.
func (s *Service) UploadPoints(ctx context.Context, userID, id string, points []GPSPoint) (int, error) {
	if len(points) == 0 {
		return 0, apperr.Validation("points required")
	}
	for i, p := range points {
		if err := geo.ValidateCoordinate(p.Latitude, p.Longitude); err != nil {
			return 0, apperr.Validation("point %d: %v", i, err)
		}
		if p.RecordedAt.IsZero() {
			return 0, apperr.Validation("point %d: timestamp required", i)
		}
	}

	var accepted int64
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		a, err := s.lockOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if _, err := Transition(a.Status, ActionIngest); err != nil {
			return err
		}
		accepted, err = tx.CopyFrom(ctx, pgx.Identifier{"gps_points"}, gpsColumns, pgx.CopyFromSlice(len(points), func(i int) ([]any, error) {
			p := points[i]
			return []any{id, p.Latitude, p.Longitude, p.Elevation, p.Accuracy, p.Speed, p.Heading, p.RecordedAt}, nil
		}))
		return err
	})
	if err != nil {
		return 0, err
	}

	if s.live != nil {
		// Coordinates only go to the owner's own sessions. Everyone else
		// learns that the track grew.
		s.live.Publish(stream.Event{Type: "points", ActivityID: id, Data: points, OwnerOnly: true})
		s.live.Publish(stream.Event{Type: "progress", ActivityID: id, Data: map[string]int64{"accepted": accepted}})
	}
	return int(accepted), nil
}

func (s *Service) Pause(ctx context.Context, userID, id string) (Activity, error) {
	return s.apply(ctx, userID, id, ActionPause, func(tx pgx.Tx, a *Activity, now time.Time) error {
		_, err := tx.Exec(ctx, `INSERT INTO activity_pauses (activity_id, paused_at) VALUES ($1,$2)`, a.ID, now)
		return err
	})
}

func (s *Service) Resume(ctx context.Context, userID, id string) (Activity, error) {
	return s.apply(ctx, userID, id, ActionResume, func(tx pgx.Tx, a *Activity, now time.Time) error {
		_, err := tx.Exec(ctx, `
			UPDATE activity_pauses SET resumed_at=$2
			WHERE id = (
				SELECT id FROM activity_pauses
				WHERE activity_id=$1 AND resumed_at IS NULL
				ORDER BY paused_at DESC, id DESC
				LIMIT 1
			)
		`, a.ID, now)
		return err
	})
}

func (s *Service) Discard(ctx context.Context, userID, id string) (Activity, error) {
	a, err := s.apply(ctx, userID, id, ActionDiscard, nil)
	if err != nil {
		return Activity{}, err
	}
	s.log.Info("activity discarded", "activity_id", a.ID)
	if s.live != nil {
		s.live.Publish(stream.Event{Type: "discarded", ActivityID: a.ID})
	}
	return a, nil
}

// Update changes descriptive fields while the activity is still recording.
func (s *Service) Update(ctx context.Context, userID, id string, edits Edits) (Activity, error) {
	return s.apply(ctx, userID, id, ActionEdit, func(_ pgx.Tx, a *Activity, _ time.Time) error {
		return applyEdits(a, edits)
	})
}

func (s *Service) apply(ctx context.Context, userID, id string, action Action, fn func(pgx.Tx, *Activity, time.Time) error) (Activity, error) {
	var out Activity
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		a, err := s.lockOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		next, err := Transition(a.Status, action)
		if err != nil {
			return err
		}
		now := s.now()
		if fn != nil {
			if err := fn(tx, &a, now); err != nil {
				return err
			}
		}
		a.Status, a.UpdatedAt = next, now
		_, err = tx.Exec(ctx, `
			UPDATE activities
			SET status=$2, title=$3, description=$4, visibility=$5, hide_start_end=$6, privacy_radius_m=$7, updated_at=$8
			WHERE id=$1
		`, a.ID, a.Status, a.Title, a.Description, a.Visibility, a.HideStartEnd, a.PrivacyRadiusM, a.UpdatedAt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func applyEdits(a *Activity, e Edits) error {
	if e.Visibility != nil && !e.Visibility.Valid() {
		return apperr.Validation("unknown visibility %q", *e.Visibility)
	}
	if e.PrivacyRadiusM != nil && *e.PrivacyRadiusM <= 0 {
		return apperr.Validation("privacy_radius must be positive")
	}
	if e.Title != nil {
		a.Title = *e.Title
	}
	if e.Description != nil {
		a.Description = *e.Description
	}
	if e.Visibility != nil {
		a.Visibility = *e.Visibility
	}
	if e.HideStartEnd != nil {
		a.HideStartEnd = *e.HideStartEnd
	}
	if e.PrivacyRadiusM != nil {
		a.PrivacyRadiusM = *e.PrivacyRadiusM
	}
	return nil
}

// Complete finalizes the activity in a single transaction: open pauses are
// closed, edits applied, statistics computed and written together with the
// status flip. Downstream processing starts only after the commit.
func (s *Service) Complete(ctx context.Context, userID, id string, edits Edits) (Detail, error) {
	var (
		a      Activity
		res    stats.Result
		pauses []Pause
	)
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		a, err = s.lockOwned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		next, err := Transition(a.Status, ActionComplete)
		if err != nil {
			return err
		}
		now := s.now()

		if _, err := tx.Exec(ctx, `
			UPDATE activity_pauses SET resumed_at=$2
			WHERE activity_id=$1 AND resumed_at IS NULL
		`, a.ID, now); err != nil {
			return err
		}
		if err := applyEdits(&a, edits); err != nil {
			return err
		}
		if a.Title == "" {
			a.Title = stats.AutoTitle(a.Type, a.StartedAt)
		}

		samples, err := loadSamples(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		pauses, err = loadPauses(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		res = stats.Compute(stats.Input{Type: a.Type, Samples: samples, Pauses: statsPauses(pauses)})
		s.applyResult(&a, res)
		a.Status, a.FinishedAt, a.UpdatedAt = next, &now, now
		return saveCompletion(ctx, tx, a, res.Route)
	})
	if err != nil {
		return Detail{}, err
	}

	s.afterCompletion(ctx, a)
	return s.buildDetail(ctx, userID, a, res.Route, pauses)
}

func (s *Service) applyResult(a *Activity, res stats.Result) {
	a.Start, a.End = res.Start, res.End
	a.MaskedStart, a.MaskedEnd = nil, nil
	if a.HideStartEnd && res.Start != nil {
		ms := s.masker.OffsetPoint(*res.Start, a.PrivacyRadiusM)
		me := s.masker.OffsetPoint(*res.End, a.PrivacyRadiusM)
		a.MaskedStart, a.MaskedEnd = &ms, &me
	}

	a.DistanceM = res.DistanceM
	a.ActiveSec, a.ElapsedSec = res.ActiveSec, res.ElapsedSec
	a.AvgPace, a.AvgSpeed, a.MaxSpeed = res.AvgPaceSecKm, res.AvgSpeedKmh, res.MaxSpeedKmh
	a.ElevGain, a.ElevLoss = res.ElevGainM, res.ElevLossM
	a.Calories = res.Calories

	a.QualityFlags = make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		a.QualityFlags = append(a.QualityFlags, string(w))
	}
	if len(a.QualityFlags) > 0 {
		s.log.Warn("activity data quality", "activity_id", a.ID, "warnings", a.QualityFlags)
	}
}

func saveCompletion(ctx context.Context, tx pgx.Tx, a Activity, route []geo.Point) error {
	var routeJSON *string
	if len(route) >= 2 {
		encoded, err := geo.EncodeLineString(route)
		if err != nil {
			return err
		}
		routeJSON = &encoded
	}
	_, err := tx.Exec(ctx, `
		UPDATE activities SET
			title=$2, description=$3, visibility=$4, hide_start_end=$5, privacy_radius_m=$6,
			status=$7, finished_at=$8, updated_at=$8,
			route=ST_SetSRID(ST_GeomFromGeoJSON($9::text), 4326)::geography,
			start_point=ST_GeogFromText($10::text), end_point=ST_GeogFromText($11::text),
			masked_start_point=ST_GeogFromText($12::text), masked_end_point=ST_GeogFromText($13::text),
			distance_m=$14, active_duration_s=$15, elapsed_duration_s=$16,
			average_pace=$17, average_speed=$18, max_speed=$19,
			elevation_gain=$20, elevation_loss=$21, calories=$22, quality_flags=$23
		WHERE id=$1
	`, a.ID, a.Title, a.Description, a.Visibility, a.HideStartEnd, a.PrivacyRadiusM,
		a.Status, *a.FinishedAt,
		routeJSON,
		ewkt(a.Start), ewkt(a.End), ewkt(a.MaskedStart), ewkt(a.MaskedEnd),
		a.DistanceM, a.ActiveSec, a.ElapsedSec,
		a.AvgPace, a.AvgSpeed, a.MaxSpeed,
		a.ElevGain, a.ElevLoss, a.Calories, a.QualityFlags)
	return err
}

func (s *Service) afterCompletion(ctx context.Context, a Activity) {
	s.log.Info("activity completed", "activity_id", a.ID, "user_id", a.UserID, "distance_m", a.DistanceM)
	if s.hook != nil {
		s.hook.ActivityCompleted(ctx, a)
	}
	err := s.events.ActivityCompleted(ctx, events.ActivityCompleted{
		ActivityID:   a.ID,
		UserID:       a.UserID,
		ActivityType: string(a.Type),
		DistanceM:    a.DistanceM,
		StartedAt:    a.StartedAt,
		FinishedAt:   *a.FinishedAt,
	})
	if err != nil {
		s.log.Warn("publish activity completed", "activity_id", a.ID, "error", err)
	}
	if s.live != nil {
		s.live.Publish(stream.Event{Type: "completed", ActivityID: a.ID})
	}
}

func loadSamples(ctx context.Context, q db.Querier, activityID string) ([]stats.Sample, error) {
	rows, err := q.Query(ctx, `
		SELECT id, latitude, longitude, elevation, speed, recorded_at
		FROM gps_points WHERE activity_id=$1
		ORDER BY recorded_at, id
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []stats.Sample
	for rows.Next() {
		var smp stats.Sample
		if err := rows.Scan(&smp.Seq, &smp.Point.Lat, &smp.Point.Lng, &smp.Elevation, &smp.Speed, &smp.RecordedAt); err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}

func loadPauses(ctx context.Context, q db.Querier, activityID string) ([]Pause, error) {
	rows, err := q.Query(ctx, `
		SELECT paused_at, resumed_at
		FROM activity_pauses WHERE activity_id=$1
		ORDER BY paused_at, id
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pauses := []Pause{}
	for rows.Next() {
		var p Pause
		if err := rows.Scan(&p.PausedAt, &p.ResumedAt); err != nil {
			return nil, err
		}
		pauses = append(pauses, p)
	}
	return pauses, rows.Err()
}

func statsPauses(pauses []Pause) []stats.Pause {
	out := make([]stats.Pause, len(pauses))
	for i, p := range pauses {
		out[i] = stats.Pause{PausedAt: p.PausedAt, ResumedAt: p.ResumedAt}
	}
	return out
}

func (s *Service) loadRoute(ctx context.Context, id string) ([]geo.Point, error) {
	var raw *string
	if err := s.db.QueryRow(ctx, `SELECT ST_AsGeoJSON(route) FROM activities WHERE id=$1`, id).Scan(&raw); err != nil {
		return nil, apperr.NotFoundIfNoRows(err, "activity")
	}
	if raw == nil {
		return nil, nil
	}
	return geo.DecodeLineString(*raw)
}

// ensureVisible hides activities the viewer may not see behind NotFound.
func (s *Service) ensureVisible(ctx context.Context, viewerID string, a Activity) error {
	if a.UserID == viewerID {
		return nil
	}
	if a.Status == StatusDiscarded {
		return apperr.NotFound("activity not found")
	}
	switch a.Visibility {
	case VisibilityPublic:
		return nil
	case VisibilityFollowers:
		if s.follows != nil && viewerID != "" {
			ok, err := s.follows.IsFollowing(ctx, viewerID, a.UserID)
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
	return apperr.NotFound("activity not found")
}

// zonesFor merges the owner's privacy zones with the viewer's own.
func (s *Service) zonesFor(ctx context.Context, ownerID, viewerID string) ([]privacy.Zone, error) {
	if s.zones == nil {
		return nil, nil
	}
	zones, err := s.zones.ActiveZonesOf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != ownerID {
		viewerZones, err := s.zones.ActiveZonesOf(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		zones = append(zones, viewerZones...)
	}
	return zones, nil
}

func (s *Service) displayRoute(ctx context.Context, viewerID string, a Activity, route []geo.Point) ([]geo.Point, error) {
	if a.Status != StatusCompleted {
		return nil, privacy.ErrRouteHidden
	}
	zones, err := s.zonesFor(ctx, a.UserID, viewerID)
	if err != nil {
		return nil, err
	}
	return privacy.DisplayRoute(route, a.HideStartEnd, zones)
}

func (s *Service) buildDetail(ctx context.Context, viewerID string, a Activity, route []geo.Point, pauses []Pause) (Detail, error) {
	d := Detail{
		Summary:       summarize(a),
		StartLocation: a.DisplayStart(),
		EndLocation:   a.DisplayEnd(),
		Pauses:        pauses,
	}
	if a.Status != StatusCompleted {
		return d, nil
	}
	display, err := s.displayRoute(ctx, viewerID, a, route)
	switch {
	case errors.Is(err, privacy.ErrRouteHidden):
		d.RouteHidden = true
	case err != nil:
		return Detail{}, err
	default:
		d.Route = display
	}
	return d, nil
}

func (s *Service) Detail(ctx context.Context, viewerID, id string) (Detail, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if err := s.ensureVisible(ctx, viewerID, a); err != nil {
		return Detail{}, err
	}
	pauses, err := loadPauses(ctx, s.db, id)
	if err != nil {
		return Detail{}, err
	}
	var route []geo.Point
	if a.Status == StatusCompleted {
		if route, err = s.loadRoute(ctx, id); err != nil {
			return Detail{}, err
		}
	}
	return s.buildDetail(ctx, viewerID, a, route, pauses)
}

// CanWatch decides whether viewerID may follow the activity live. owner
// reports whether the viewer recorded it, which unlocks the raw points feed.
func (s *Service) CanWatch(ctx context.Context, viewerID, id string) (owner bool, err error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.ensureVisible(ctx, viewerID, a); err != nil {
		return false, err
	}
	return a.UserID == viewerID, nil
}

// DisplayRoute returns the privacy-filtered route for viewerID, or
// privacy.ErrRouteHidden when nothing displayable remains.
func (s *Service) DisplayRoute(ctx context.Context, viewerID, id string) (Activity, []geo.Point, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return Activity{}, nil, err
	}
	if err := s.ensureVisible(ctx, viewerID, a); err != nil {
		return Activity{}, nil, err
	}
	if a.Status != StatusCompleted {
		return a, nil, privacy.ErrRouteHidden
	}
	route, err := s.loadRoute(ctx, id)
	if err != nil {
		return Activity{}, nil, err
	}
	display, err := s.displayRoute(ctx, viewerID, a, route)
	return a, display, err
}

func (s *Service) Current(ctx context.Context, userID string) (Detail, error) {
	a, err := scanActivity(s.db.QueryRow(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE user_id=$1 AND status IN ('in_progress', 'paused')
		ORDER BY started_at DESC
		LIMIT 1
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, apperr.NotFound("no active activity")
	}
	if err != nil {
		return Detail{}, err
	}
	pauses, err := loadPauses(ctx, s.db, a.ID)
	if err != nil {
		return Detail{}, err
	}
	return s.buildDetail(ctx, userID, a, nil, pauses)
}

// List returns the caller's activities newest first, discarded ones excluded.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE user_id=$1 AND status <> 'discarded'
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(a))
	}
	return out, rows.Err()
}
