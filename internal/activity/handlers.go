package activity

import (
	"errors"

	"backend-strideup/internal/apperr"
	"backend-strideup/internal/auth"
	"backend-strideup/internal/privacy"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		a, err := svc.Start(c.Context(), auth.UserID(c), req)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(summarize(a))
	})

	r.Get("/", func(c *fiber.Ctx) error {
		list, err := svc.List(c.Context(), auth.UserID(c), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(list)
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		d, err := svc.Current(c.Context(), auth.UserID(c))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(d)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		d, err := svc.Detail(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(d)
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		var edits Edits
		if err := c.BodyParser(&edits); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		a, err := svc.Update(c.Context(), auth.UserID(c), c.Params("id"), edits)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(summarize(a))
	})

	r.Post("/:id/points", func(c *fiber.Ctx) error {
		var body struct {
			Points []GPSPoint `json:"points"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		n, err := svc.UploadPoints(c.Context(), auth.UserID(c), c.Params("id"), body.Points)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"points_added": n})
	})

	transitions := map[string]func(*fiber.Ctx) (Activity, error){
		"pause": func(c *fiber.Ctx) (Activity, error) {
			return svc.Pause(c.Context(), auth.UserID(c), c.Params("id"))
		},
		"resume": func(c *fiber.Ctx) (Activity, error) {
			return svc.Resume(c.Context(), auth.UserID(c), c.Params("id"))
		},
		"discard": func(c *fiber.Ctx) (Activity, error) {
			return svc.Discard(c.Context(), auth.UserID(c), c.Params("id"))
		},
	}
	for name, fn := range transitions {
		fn := fn
		r.Post("/:id/"+name, func(c *fiber.Ctx) error {
			a, err := fn(c)
			if err != nil {
				return apperr.ToFiber(err)
			}
			return c.JSON(summarize(a))
		})
	}

	r.Post("/:id/complete", func(c *fiber.Ctx) error {
		var edits Edits
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&edits); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		d, err := svc.Complete(c.Context(), auth.UserID(c), c.Params("id"), edits)
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(d)
	})

	r.Get("/:id/route", func(c *fiber.Ctx) error {
		_, route, err := svc.DisplayRoute(c.Context(), auth.UserID(c), c.Params("id"))
		if errors.Is(err, privacy.ErrRouteHidden) {
			return c.JSON(fiber.Map{"hidden": true})
		}
		if err != nil {
			return apperr.ToFiber(err)
		}
		return c.JSON(fiber.Map{"hidden": false, "route": route})
	})

	r.Get("/:id/route.gpx", func(c *fiber.Ctx) error {
		doc, err := svc.ExportGPX(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return apperr.ToFiber(err)
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.Send(doc)
	})
}
