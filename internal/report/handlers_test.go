package report

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func withUser(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestStatisticsRejectsBadWindow(t *testing.T) {
	mock, svc := newService(t)
	defer mock.Close()

	app := fiber.New()
	RegisterUserRoutes(app.Group("/activities"), svc, withUser("user-1"))
	RegisterCommunityRoutes(app.Group("/communities"), svc, withUser("user-1"))

	for _, path := range []string{
		"/activities/statistics?period=fortnight",
		"/activities/statistics?type=swim",
		"/communities/com-1/stats?from=yesterday",
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil || resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected bad request, got %v %v", path, resp.StatusCode, err)
		}
	}
}

func TestCommunityStatsHandler(t *testing.T) {
	mock, svc := newService(t)
	defer mock.Close()

	app := fiber.New()
	RegisterCommunityRoutes(app.Group("/communities"), svc, withUser("user-1"))

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE`).WithArgs("com-1", pgxmock.AnyArg()).
		WillReturnRows(totalsRow(1, 5000, 1800, 12, 300, nil))
	mock.ExpectQuery(`GROUP BY activity_type`).WithArgs("com-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"type", "count", "distance", "duration"}))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM community_memberships`).WithArgs("com-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/communities/com-1/stats?period=month", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status: %v %v", resp.StatusCode, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommunityStatsHandlerForbidsOutsiders(t *testing.T) {
	mock, svc := newService(t)
	defer mock.Close()
	svc.caps = memberCaps(false)

	app := fiber.New()
	RegisterCommunityRoutes(app.Group("/communities"), svc, withUser("outsider"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/communities/com-1/stats", nil))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %v %v", resp.StatusCode, err)
	}
}
