package social

import (
	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/follow/:userID", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Follow(c.Context(), auth.UserID(c), c.Params("userID")); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/follow/:userID", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Unfollow(c.Context(), auth.UserID(c), c.Params("userID")); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/users/:userID/followers", func(c *fiber.Ctx) error {
		follows, err := svc.Followers(c.Context(), c.Params("userID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(follows)
	})

	r.Get("/users/:userID/following", func(c *fiber.Ctx) error {
		follows, err := svc.Following(c.Context(), c.Params("userID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(follows)
	})

	r.Get("/users/:userID/counts", func(c *fiber.Ctx) error {
		counts, err := svc.Counts(c.Context(), c.Params("userID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(counts)
	})
}
