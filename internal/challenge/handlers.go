package challenge

import (
	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// RegisterCommunityRoutes mounts the challenge endpoints nested under a
// community (/communities/:id/challenges).
func RegisterCommunityRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:id/challenges", authMiddleware, func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		ch, err := svc.Create(c.Context(), auth.UserID(c), c.Params("id"), req)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	r.Get("/:id/challenges", authMiddleware, func(c *fiber.Ctx) error {
		list, err := svc.List(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(list)
	})
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/:id", func(c *fiber.Ctx) error {
		d, err := svc.Detail(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(d)
	})

	r.Post("/:id/join", func(c *fiber.Ctx) error {
		p, err := svc.Join(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Delete("/:id/join", func(c *fiber.Ctx) error {
		if err := svc.Leave(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:id/cancel", func(c *fiber.Ctx) error {
		ch, err := svc.Cancel(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(ch)
	})

	r.Get("/:id/leaderboard", func(c *fiber.Ctx) error {
		board, err := svc.Leaderboard(c.Context(), auth.UserID(c), c.Params("id"), c.QueryInt("limit", leaderboardSize))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(board)
	})

	r.Get("/:id/contributions", func(c *fiber.Ctx) error {
		feed, err := svc.RecentContributions(c.Context(), auth.UserID(c), c.Params("id"), c.QueryInt("limit", recentFeedSize))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(feed)
	})

	r.Get("/:id/route/progress", func(c *fiber.Ctx) error {
		progress, err := svc.RouteProgress(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(progress)
	})
}
