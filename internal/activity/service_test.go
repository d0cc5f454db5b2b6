package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/events"
	"backend-strideup/internal/privacy"
	"backend-strideup/internal/shared/geo"
	"backend-strideup/internal/stats"
	"backend-strideup/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var activityCols = []string{
	"id", "user_id", "title", "description", "activity_type", "status", "visibility", "hide_start_end", "privacy_radius_m",
	"start_lat", "start_lng", "end_lat", "end_lng", "mstart_lat", "mstart_lng", "mend_lat", "mend_lng",
	"distance_m", "active_duration_s", "elapsed_duration_s", "average_pace", "average_speed", "max_speed",
	"elevation_gain", "elevation_loss", "calories", "quality_flags",
	"started_at", "finished_at", "created_at", "updated_at",
}

func latLng(p *geo.Point) (*float64, *float64) {
	if p == nil {
		return (*float64)(nil), (*float64)(nil)
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func activityRows(list ...Activity) *pgxmock.Rows {
	rows := pgxmock.NewRows(activityCols)
	for _, a := range list {
		sLat, sLng := latLng(a.Start)
		eLat, eLng := latLng(a.End)
		msLat, msLng := latLng(a.MaskedStart)
		meLat, meLng := latLng(a.MaskedEnd)
		flags := a.QualityFlags
		if flags == nil {
			flags = []string{}
		}
		rows.AddRow(
			a.ID, a.UserID, a.Title, a.Description, a.Type, a.Status, a.Visibility, a.HideStartEnd, a.PrivacyRadiusM,
			sLat, sLng, eLat, eLng, msLat, msLng, meLat, meLng,
			a.DistanceM, a.ActiveSec, a.ElapsedSec, a.AvgPace, a.AvgSpeed, a.MaxSpeed,
			a.ElevGain, a.ElevLoss, a.Calories, flags,
			a.StartedAt, a.FinishedAt, a.CreatedAt, a.UpdatedAt,
		)
	}
	return rows
}

var morning = time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

func recording(status Status) Activity {
	return Activity{
		ID:             "act-1",
		UserID:         "user-1",
		Type:           stats.Run,
		Status:         status,
		Visibility:     VisibilityPublic,
		PrivacyRadiusM: DefaultPrivacyRadiusM,
		StartedAt:      morning,
		CreatedAt:      morning,
		UpdatedAt:      morning,
	}
}

func completed(route []geo.Point) Activity {
	a := recording(StatusCompleted)
	a.Title = "Morning Run"
	start, end := route[0], route[len(route)-1]
	a.Start, a.End = &start, &end
	a.DistanceM = geo.RouteLength(route)
	finished := morning.Add(time.Hour)
	a.FinishedAt = &finished
	return a
}

func routeRow(t *testing.T, route []geo.Point) *pgxmock.Rows {
	raw, err := geo.EncodeLineString(route)
	if err != nil {
		t.Fatalf("encode route: %v", err)
	}
	return pgxmock.NewRows([]string{"route"}).AddRow(&raw)
}

func line(n int) []geo.Point {
	route := make([]geo.Point, n)
	for i := range route {
		route[i] = geo.Point{Lat: 0, Lng: float64(i) * 0.001}
	}
	return route
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	return mock
}

type hookRecorder struct{ calls []Activity }

func (h *hookRecorder) ActivityCompleted(_ context.Context, a Activity) { h.calls = append(h.calls, a) }

type publisherRecorder struct {
	completed []events.ActivityCompleted
}

func (p *publisherRecorder) ActivityCompleted(_ context.Context, ev events.ActivityCompleted) error {
	p.completed = append(p.completed, ev)
	return nil
}

func (p *publisherRecorder) ContributionCreated(context.Context, events.ContributionCreated) error {
	return nil
}

type liveRecorder struct{ events []stream.Event }

func (l *liveRecorder) Publish(ev stream.Event) { l.events = append(l.events, ev) }

type zonesByUser map[string][]privacy.Zone

func (z zonesByUser) ActiveZonesOf(_ context.Context, userID string) ([]privacy.Zone, error) {
	return z[userID], nil
}

type follows map[string]bool

func (f follows) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	return f[followerID+"->"+followingID], nil
}

func TestStartAppliesDefaults(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	svc := NewService(mock, Deps{})
	svc.now = func() time.Time { return morning }

	mock.ExpectQuery(`INSERT INTO activities`).
		WithArgs(pgxmock.AnyArg(), "user-1", "Morning Run", "", stats.Run, StatusInProgress, VisibilityPublic, false, DefaultPrivacyRadiusM, morning).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(morning, morning))

	a, err := svc.Start(context.Background(), "user-1", StartRequest{Type: stats.Run})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.ID == "" || a.Status != StatusInProgress || a.Title != "Morning Run" {
		t.Fatalf("unexpected activity %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStartValidation(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})

	zero := 0.0
	cases := []StartRequest{
		{Type: "swim"},
		{Type: stats.Run, Visibility: "friends"},
		{Type: stats.Run, PrivacyRadiusM: &zero},
	}
	for _, req := range cases {
		if _, err := svc.Start(context.Background(), "user-1", req); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%+v: expected validation error, got %v", req, err)
		}
	}
}

func TestUploadPointsCopiesBatch(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	live := &liveRecorder{}
	svc := NewService(mock, Deps{Live: live})

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusPaused)))
	mock.ExpectCopyFrom(pgx.Identifier{"gps_points"}, gpsColumns).WillReturnResult(2)
	mock.ExpectCommit()

	points := []GPSPoint{
		{Latitude: 0, Longitude: 0, RecordedAt: morning},
		{Latitude: 0, Longitude: 0.001, RecordedAt: morning.Add(10 * time.Second)},
	}
	n, err := svc.UploadPoints(context.Background(), "user-1", "act-1", points)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 points, got %d", n)
	}
	if len(live.events) != 2 {
		t.Fatalf("expected points and progress events, got %+v", live.events)
	}
	if ev := live.events[0]; ev.Type != "points" || !ev.OwnerOnly {
		t.Fatalf("raw points must be owner only, got %+v", ev)
	}
	if ev := live.events[1]; ev.Type != "progress" || ev.OwnerOnly {
		t.Fatalf("unexpected viewer event %+v", ev)
	}
	if _, leaked := live.events[1].Data.([]GPSPoint); leaked {
		t.Fatalf("viewer event must not carry coordinates")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCanWatch(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{Follows: follows{"fan->user-1": true}})
	ctx := context.Background()

	hidden := recording(StatusInProgress)
	hidden.HideStartEnd = true
	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(hidden))
	owner, err := svc.CanWatch(ctx, "user-1", "act-1")
	if err != nil || !owner {
		t.Fatalf("owner should watch with the raw feed: %v %v", owner, err)
	}

	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(hidden))
	owner, err = svc.CanWatch(ctx, "stranger", "act-1")
	if err != nil || owner {
		t.Fatalf("public activity should be watchable without the raw feed: %v %v", owner, err)
	}

	followersOnly := recording(StatusInProgress)
	followersOnly.Visibility = VisibilityFollowers
	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(followersOnly))
	if _, err := svc.CanWatch(ctx, "fan", "act-1"); err != nil {
		t.Fatalf("follower should watch: %v", err)
	}

	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(followersOnly))
	if _, err := svc.CanWatch(ctx, "stranger", "act-1"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for a stranger, got %v", err)
	}

	private := recording(StatusInProgress)
	private.Visibility = VisibilityPrivate
	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(private))
	if _, err := svc.CanWatch(ctx, "fan", "act-1"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for a private activity, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUploadPointsRejected(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})
	ctx := context.Background()

	if _, err := svc.UploadPoints(ctx, "user-1", "act-1", nil); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for empty batch, got %v", err)
	}
	bad := []GPSPoint{{Latitude: 91, Longitude: 0, RecordedAt: morning}}
	if _, err := svc.UploadPoints(ctx, "user-1", "act-1", bad); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for latitude, got %v", err)
	}
	noTime := []GPSPoint{{Latitude: 1, Longitude: 1}}
	if _, err := svc.UploadPoints(ctx, "user-1", "act-1", noTime); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation for timestamp, got %v", err)
	}

	ok := []GPSPoint{{Latitude: 1, Longitude: 1, RecordedAt: morning}}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(completed(line(3))))
	mock.ExpectRollback()
	if _, err := svc.UploadPoints(ctx, "user-1", "act-1", ok); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected state conflict after completion, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusInProgress)))
	mock.ExpectRollback()
	if _, err := svc.UploadPoints(ctx, "someone-else", "act-1", ok); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusInProgress)))
	mock.ExpectExec(`INSERT INTO activity_pauses`).WithArgs("act-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE activities`).
		WithArgs("act-1", StatusPaused, "", "", VisibilityPublic, false, DefaultPrivacyRadiusM, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := svc.Pause(ctx, "user-1", "act-1")
	if err != nil || a.Status != StatusPaused {
		t.Fatalf("pause: %v %+v", err, a)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusPaused)))
	mock.ExpectRollback()
	if _, err := svc.Pause(ctx, "user-1", "act-1"); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected conflict pausing twice, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusPaused)))
	mock.ExpectExec(`UPDATE activity_pauses SET resumed_at`).WithArgs("act-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE activities`).
		WithArgs("act-1", StatusInProgress, "", "", VisibilityPublic, false, DefaultPrivacyRadiusM, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err = svc.Resume(ctx, "user-1", "act-1")
	if err != nil || a.Status != StatusInProgress {
		t.Fatalf("resume: %v %+v", err, a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAndDiscard(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	live := &liveRecorder{}
	svc := NewService(mock, Deps{Live: live})
	ctx := context.Background()

	title := "Lunch jog"
	private := VisibilityPrivate
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusInProgress)))
	mock.ExpectExec(`UPDATE activities`).
		WithArgs("act-1", StatusInProgress, title, "", private, false, DefaultPrivacyRadiusM, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err := svc.Update(ctx, "user-1", "act-1", Edits{Title: &title, Visibility: &private})
	if err != nil || a.Title != title || a.Visibility != private {
		t.Fatalf("update: %v %+v", err, a)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusInProgress)))
	mock.ExpectExec(`UPDATE activities`).
		WithArgs("act-1", StatusDiscarded, "", "", VisibilityPublic, false, DefaultPrivacyRadiusM, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	a, err = svc.Discard(ctx, "user-1", "act-1")
	if err != nil || a.Status != StatusDiscarded {
		t.Fatalf("discard: %v %+v", err, a)
	}
	if len(live.events) != 1 || live.events[0].Type != "discarded" {
		t.Fatalf("expected discarded live event")
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(completed(line(3))))
	mock.ExpectRollback()
	if _, err := svc.Discard(ctx, "user-1", "act-1"); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected conflict discarding a completed activity, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func sampleRows(points []geo.Point, step time.Duration) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "latitude", "longitude", "elevation", "speed", "recorded_at"})
	for i, p := range points {
		elev := 10.0 + float64(i)
		speed := 2.5
		rows.AddRow(int64(i+1), p.Lat, p.Lng, &elev, &speed, morning.Add(time.Duration(i)*step))
	}
	return rows
}

func expectCompletion(mock pgxmock.PgxPoolIface, a Activity, points []geo.Point) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs(a.ID).
		WillReturnRows(activityRows(a))
	mock.ExpectExec(`UPDATE activity_pauses SET resumed_at`).WithArgs(a.ID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM gps_points WHERE activity_id=\$1`).WithArgs(a.ID).
		WillReturnRows(sampleRows(points, time.Minute))
	mock.ExpectQuery(`FROM activity_pauses WHERE activity_id=\$1`).WithArgs(a.ID).
		WillReturnRows(pgxmock.NewRows([]string{"paused_at", "resumed_at"}))
	mock.ExpectExec(`UPDATE activities SET`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
}

func TestCompleteComputesAndNotifies(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	hook := &hookRecorder{}
	pub := &publisherRecorder{}
	live := &liveRecorder{}
	svc := NewService(mock, Deps{Hook: hook, Events: pub, Live: live})
	svc.now = func() time.Time { return morning.Add(3 * time.Minute) }

	points := line(3)
	expectCompletion(mock, recording(StatusInProgress), points)

	d, err := svc.Complete(context.Background(), "user-1", "act-1", Edits{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.Status != StatusCompleted || d.FinishedAt == nil {
		t.Fatalf("expected completed activity, got %+v", d.Activity)
	}
	if d.Title != "Morning Run" {
		t.Fatalf("expected auto title, got %q", d.Title)
	}
	if d.DistanceM < 222 || d.DistanceM > 223 {
		t.Fatalf("unexpected distance %v", d.DistanceM)
	}
	if d.ActiveSec == nil || *d.ActiveSec != 120 {
		t.Fatalf("unexpected active duration %v", d.ActiveSec)
	}
	if d.ElevGain == nil || *d.ElevGain != 2 {
		t.Fatalf("unexpected elevation gain %v", d.ElevGain)
	}
	if len(d.Route) != 3 || d.RouteHidden {
		t.Fatalf("expected full display route, got %v", d.Route)
	}
	if d.StartLocation == nil || *d.StartLocation != points[0] {
		t.Fatalf("expected raw start location, got %v", d.StartLocation)
	}
	if len(hook.calls) != 1 || hook.calls[0].Status != StatusCompleted {
		t.Fatalf("expected one completion hook call")
	}
	if len(pub.completed) != 1 || pub.completed[0].ActivityType != "run" {
		t.Fatalf("expected one completed event, got %+v", pub.completed)
	}
	if len(live.events) != 1 || live.events[0].Type != "completed" {
		t.Fatalf("expected completed live event")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteMasksEndpoints(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})

	a := recording(StatusPaused)
	a.HideStartEnd = true
	points := line(3)
	expectCompletion(mock, a, points)

	d, err := svc.Complete(context.Background(), "user-1", "act-1", Edits{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.StartLocation == nil || *d.StartLocation == points[0] {
		t.Fatalf("expected masked start, got %v", d.StartLocation)
	}
	off := geo.Distance(*d.StartLocation, points[0])
	if off < 0.5*DefaultPrivacyRadiusM-1 || off > DefaultPrivacyRadiusM+1 {
		t.Fatalf("masked start %.1fm from the real one", off)
	}
	if d.Start == nil || *d.Start != points[0] {
		t.Fatalf("raw start must be kept for statistics")
	}
	// Three points are too few to trim, so the route survives.
	if len(d.Route) != 3 {
		t.Fatalf("expected untrimmed route, got %d points", len(d.Route))
	}
}

func TestCompleteWithoutSamples(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})

	expectCompletion(mock, recording(StatusInProgress), nil)

	d, err := svc.Complete(context.Background(), "user-1", "act-1", Edits{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.DistanceM != 0 || d.Start != nil || d.ActiveSec != nil {
		t.Fatalf("expected empty statistics, got %+v", d.Activity)
	}
	if len(d.QualityFlags) != 1 || d.QualityFlags[0] != string(stats.WarnTooFewPoints) {
		t.Fatalf("expected too-few-points flag, got %v", d.QualityFlags)
	}
	if !d.RouteHidden {
		t.Fatalf("expected hidden route")
	}
}

func TestCompleteTwiceConflicts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	hook := &hookRecorder{}
	svc := NewService(mock, Deps{Hook: hook})

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM activities WHERE id=\$1 FOR UPDATE`).WithArgs("act-1").
		WillReturnRows(activityRows(completed(line(3))))
	mock.ExpectRollback()

	if _, err := svc.Complete(context.Background(), "user-1", "act-1", Edits{}); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(hook.calls) != 0 {
		t.Fatalf("hook must not run on failed completion")
	}
}

func TestDisplayRouteAppliesOwnerAndViewerZones(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	route := line(6)
	zones := zonesByUser{
		"user-1": {{Center: route[0], RadiusMeters: 10}},
		"viewer": {{Center: route[5], RadiusMeters: 10}},
	}
	svc := NewService(mock, Deps{Zones: zones})

	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(completed(route)))
	mock.ExpectQuery(`SELECT ST_AsGeoJSON\(route\)`).WithArgs("act-1").
		WillReturnRows(routeRow(t, route))

	_, display, err := svc.DisplayRoute(context.Background(), "viewer", "act-1")
	if err != nil {
		t.Fatalf("display route: %v", err)
	}
	if len(display) != 4 || display[0] != route[1] || display[3] != route[4] {
		t.Fatalf("expected both zones applied, got %v", display)
	}
}

func TestDisplayRouteHidden(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	route := line(3)
	zones := zonesByUser{"user-1": {{Center: route[1], RadiusMeters: 500}}}
	svc := NewService(mock, Deps{Zones: zones})

	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(completed(route)))
	mock.ExpectQuery(`SELECT ST_AsGeoJSON\(route\)`).WithArgs("act-1").
		WillReturnRows(routeRow(t, route))

	if _, _, err := svc.DisplayRoute(context.Background(), "user-1", "act-1"); !errors.Is(err, privacy.ErrRouteHidden) {
		t.Fatalf("expected hidden route, got %v", err)
	}

	mock.ExpectQuery(`FROM activities WHERE id=\$1`).WithArgs("act-1").
		WillReturnRows(activityRows(recording(StatusInProgress)))
	if _, _, err := svc.DisplayRoute(context.Background(), "user-1", "act-1"); !errors.Is(err, privacy.ErrRouteHidden) {
		t.Fatalf("expected hidden route while recording, got %v", err)
	}
}

func TestVisibility(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{Follows: follows{"fan->user-1": true}})
	ctx := context.Background()

	followersOnly := recording(StatusInProgress)
	followersOnly.Visibility = VisibilityFollowers
	private := recording(StatusInProgress)
	private.Visibility = VisibilityPrivate
	discarded := recording(StatusDiscarded)

	cases := []struct {
		a      Activity
		viewer string
		ok     bool
	}{
		{followersOnly, "fan", true},
		{followersOnly, "stranger", false},
		{private, "fan", false},
		{private, "user-1", true},
		{discarded, "fan", false},
		{recording(StatusInProgress), "stranger", true},
	}
	for _, tc := range cases {
		err := svc.ensureVisible(ctx, tc.viewer, tc.a)
		if tc.ok && err != nil {
			t.Fatalf("%s on %s/%s: %v", tc.viewer, tc.a.Visibility, tc.a.Status, err)
		}
		if !tc.ok && !apperr.Is(err, apperr.KindNotFound) {
			t.Fatalf("%s on %s/%s: expected not found, got %v", tc.viewer, tc.a.Visibility, tc.a.Status, err)
		}
	}
}

func TestCurrentAndList(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	svc := NewService(mock, Deps{})
	ctx := context.Background()

	mock.ExpectQuery(`status IN \('in_progress', 'paused'\)`).WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(activityCols))
	if _, err := svc.Current(ctx, "user-1"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery(`status IN \('in_progress', 'paused'\)`).WithArgs("user-1").
		WillReturnRows(activityRows(recording(StatusPaused)))
	resumed := morning.Add(time.Minute)
	mock.ExpectQuery(`FROM activity_pauses WHERE activity_id=\$1`).WithArgs("act-1").
		WillReturnRows(pgxmock.NewRows([]string{"paused_at", "resumed_at"}).AddRow(morning, &resumed))
	d, err := svc.Current(ctx, "user-1")
	if err != nil || d.Status != StatusPaused || len(d.Pauses) != 1 {
		t.Fatalf("current: %v %+v", err, d)
	}

	done := completed(line(3))
	done.ActiveSec = ptr(300.0)
	done.AvgPace = ptr(330.0)
	mock.ExpectQuery(`status <> 'discarded'`).WithArgs("user-1", 20, 0).
		WillReturnRows(activityRows(done))
	list, err := svc.List(ctx, "user-1", 0, -1)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", err, list)
	}
	if list[0].PaceFormatted != "5:30" || list[0].DurationFormatted != "00:05:00" || list[0].DistanceKm != 0.22 {
		t.Fatalf("unexpected formatting %+v", list[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func ptr(v float64) *float64 { return &v }
