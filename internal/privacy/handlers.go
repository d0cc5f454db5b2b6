package privacy

import (
	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, store *Store, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		zones, err := store.List(c.Context(), auth.UserID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(zones)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req UserZone
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.UserID = auth.UserID(c)
		zone, err := store.Create(c.Context(), req)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(zone)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := store.Delete(c.Context(), auth.UserID(c), c.Params("id")); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
