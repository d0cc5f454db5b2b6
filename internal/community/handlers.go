package community

import (
	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Community
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.CreatedBy = auth.UserID(c)
		community, err := svc.Create(c.Context(), req)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(community)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		community, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(community)
	})

	r.Post("/:id/members", authMiddleware, func(c *fiber.Ctx) error {
		m, err := svc.Join(c.Context(), c.Params("id"), auth.UserID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Delete("/:id/members", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Leave(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Put("/:id/members/:userID/role", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Role Role `json:"role"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.SetRole(c.Context(), auth.UserID(c), c.Params("id"), c.Params("userID"), body.Role); err != nil {
			return apperr.ToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:id/members", func(c *fiber.Ctx) error {
		members, err := svc.Members(c.Context(), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(members)
	})
}
