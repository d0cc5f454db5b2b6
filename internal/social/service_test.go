package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-strideup/internal/apperr"

	"github.com/pashagolub/pgxmock/v3"
)

func TestFollowUnfollow(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock)

	mock.ExpectExec(`INSERT INTO user_follows`).WithArgs("user-1", "user-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := svc.Follow(context.Background(), "user-1", "user-2"); err != nil {
		t.Fatalf("follow: %v", err)
	}

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("user-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	ok, err := svc.IsFollowing(context.Background(), "user-1", "user-2")
	if err != nil || !ok {
		t.Fatalf("expected following: %v", err)
	}

	mock.ExpectExec(`DELETE FROM user_follows`).WithArgs("user-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := svc.Unfollow(context.Background(), "user-1", "user-2"); err != nil {
		t.Fatalf("unfollow: %v", err)
	}

	mock.ExpectExec(`DELETE FROM user_follows`).WithArgs("user-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	if err := svc.Unfollow(context.Background(), "user-1", "user-2"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFollowSelf(t *testing.T) {
	err := NewService(nil).Follow(context.Background(), "user-1", "user-1")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error")
	}
}

func TestFollowersFollowingCounts(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock)
	now := time.Now()

	mock.ExpectQuery(`FROM user_follows WHERE following_id=\$1`).WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"follower_id", "following_id", "created_at"}).
			AddRow("user-1", "user-2", now).
			AddRow("user-3", "user-2", now))
	followers, err := svc.Followers(context.Background(), "user-2")
	if err != nil || len(followers) != 2 {
		t.Fatalf("followers: %v", err)
	}

	mock.ExpectQuery(`FROM user_follows WHERE follower_id=\$1`).WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"follower_id", "following_id", "created_at"}))
	following, err := svc.Following(context.Background(), "user-2")
	if err != nil || following == nil || len(following) != 0 {
		t.Fatalf("expected empty following list: %v", err)
	}

	mock.ExpectQuery(`SELECT\s+\(SELECT COUNT`).WithArgs("user-2").
		WillReturnRows(pgxmock.NewRows([]string{"followers", "following"}).AddRow(2, 0))
	counts, err := svc.Counts(context.Background(), "user-2")
	if err != nil || counts.Followers != 2 || counts.Following != 0 {
		t.Fatalf("counts: %+v %v", counts, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFollowersQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM user_follows`).WithArgs("user-2").WillReturnError(errors.New("db error"))
	if _, err := NewService(mock).Followers(context.Background(), "user-2"); err == nil {
		t.Fatalf("expected error")
	}
}
