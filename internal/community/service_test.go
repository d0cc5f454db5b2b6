package community

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-strideup/internal/apperr"

	"github.com/pashagolub/pgxmock/v3"
)

func TestCreateMakesCreatorOwner(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO communities`).
		WithArgs(pgxmock.AnyArg(), "Jakarta Runners", "", "public", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO community_memberships`).
		WithArgs(pgxmock.AnyArg(), "user-1", RoleOwner, "active").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	c, err := NewService(mock).Create(context.Background(), Community{Name: "Jakarta Runners", CreatedBy: "user-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.Visibility != "public" {
		t.Fatalf("unexpected community %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRollsBackOnMembershipError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO communities`).
		WithArgs(pgxmock.AnyArg(), "x", "", "public", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO community_memberships`).
		WithArgs(pgxmock.AnyArg(), "user-1", RoleOwner, "active").
		WillReturnError(errors.New("db error"))
	mock.ExpectRollback()

	if _, err := NewService(mock).Create(context.Background(), Community{Name: "x", CreatedBy: "user-1"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateRequiresName(t *testing.T) {
	if _, err := NewService(nil).Create(context.Background(), Community{}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error")
	}
}

func TestRoleOf(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock)

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(RoleAdmin))
	role, err := svc.RoleOf(context.Background(), "user-1", "c-1")
	if err != nil || role != RoleAdmin {
		t.Fatalf("expected admin, got %v %v", role, err)
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"role"}))
	ok, err := svc.IsActiveMember(context.Background(), "user-2", "c-1")
	if err != nil || ok {
		t.Fatalf("expected non-member: %v", err)
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-3").
		WillReturnError(errors.New("db error"))
	if _, err := svc.RoleOf(context.Background(), "user-3", "c-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJoinAndLeave(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, description, visibility`).WithArgs("c-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "visibility", "created_by", "created_at"}).
			AddRow("c-1", "Runners", "", "public", "user-1", now))
	mock.ExpectQuery(`INSERT INTO community_memberships`).
		WithArgs("c-1", "user-2", RoleMember, "active").
		WillReturnRows(pgxmock.NewRows([]string{"role", "joined_at"}).AddRow(RoleMember, now))

	m, err := svc.Join(context.Background(), "c-1", "user-2")
	if err != nil || m.Role != RoleMember {
		t.Fatalf("join: %v", err)
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-2").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(RoleMember))
	mock.ExpectExec(`UPDATE community_memberships SET status='left'`).WithArgs("c-1", "user-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.Leave(context.Background(), "c-1", "user-2"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(RoleOwner))
	if err := svc.Leave(context.Background(), "c-1", "user-1"); !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected owner leave conflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJoinMissingCommunity(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, description, visibility`).WithArgs("c-x").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "visibility", "created_by", "created_at"}))
	if _, err := NewService(mock).Join(context.Background(), "c-x", "user-2"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetRole(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	svc := NewService(mock)

	if err := svc.SetRole(context.Background(), "user-1", "c-1", "user-2", RoleOwner); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("owner role must not be grantable")
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-3").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(RoleMember))
	if err := svc.SetRole(context.Background(), "user-3", "c-1", "user-2", RoleAdmin); !apperr.Is(err, apperr.KindPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}

	mock.ExpectQuery(`SELECT role FROM community_memberships`).WithArgs("c-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(RoleOwner))
	mock.ExpectExec(`UPDATE community_memberships SET role=\$3`).WithArgs("c-1", "user-2", RoleAdmin).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.SetRole(context.Background(), "user-1", "c-1", "user-2", RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCanManageChallenges(t *testing.T) {
	for role, want := range map[Role]bool{RoleOwner: true, RoleAdmin: true, RoleModerator: false, RoleMember: false, RoleNone: false} {
		if CanManageChallenges(role) != want {
			t.Fatalf("%s: expected %v", role, want)
		}
	}
}
