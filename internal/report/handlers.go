package report

import (
	"time"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"
	"backend-strideup/internal/stats"

	"github.com/gofiber/fiber/v2"
)

// parseWindow reads ?type=, ?period=week|month and ?from=/?to= (RFC 3339).
func parseWindow(c *fiber.Ctx, now time.Time) (Window, error) {
	var w Window
	if t := stats.ActivityType(c.Query("type")); t != "" {
		if !t.Valid() {
			return Window{}, apperr.Validation("unknown activity type %q", t)
		}
		w.Type = t
	}
	switch c.Query("period") {
	case "":
	case "week":
		from := startOfWeek(now)
		w.From = &from
	case "month":
		from := startOfMonth(now)
		w.From = &from
	default:
		return Window{}, apperr.Validation("period must be week or month")
	}
	for key, dst := range map[string]**time.Time{"from": &w.From, "to": &w.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Window{}, apperr.Validation("%s: %v", key, err)
		}
		*dst = &t
	}
	return w, nil
}

// RegisterUserRoutes mounts /statistics on the activities group. It must be
// registered before any /:id route on the same group.
func RegisterUserRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/statistics", authMiddleware, func(c *fiber.Ctx) error {
		w, err := parseWindow(c, svc.now())
		if err != nil {
			return apperr.ToFiber(err)
		}
		out, err := svc.UserStats(c.Context(), auth.UserID(c), w)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(out)
	})
}

func RegisterCommunityRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/:id/stats", authMiddleware, func(c *fiber.Ctx) error {
		w, err := parseWindow(c, svc.now())
		if err != nil {
			return apperr.ToFiber(err)
		}
		out, err := svc.CommunityStats(c.Context(), auth.UserID(c), c.Params("id"), w)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(out)
	})
}
