package geocode

import (
	"context"

	"backend-strideup/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

type Searcher interface {
	Search(ctx context.Context, text string) ([]Place, error)
}

// RegisterRoutes mounts place search. A geocoder outage degrades to an empty
// result set instead of failing the request.
func RegisterRoutes(r fiber.Router, svc Searcher, authMiddleware fiber.Handler) {
	r.Get("/search", authMiddleware, func(c *fiber.Ctx) error {
		places, err := svc.Search(c.Context(), c.Query("q"))
		if apperr.Is(err, apperr.KindExternalDependency) {
			return c.JSON(fiber.Map{"results": []Place{}, "degraded": true})
		}
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"results": places, "degraded": false})
	})
}
