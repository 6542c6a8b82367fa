// Package server owns the fiber application: construction, the shared
// middleware, and the infrastructure endpoints that do not belong to any
// one service.
package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/oggyb/matchd/internal/app"
	"github.com/oggyb/matchd/internal/config"
	"github.com/oggyb/matchd/internal/db"
	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/repository"
)

// Registrar is implemented by every service handler that mounts routes.
type Registrar interface {
	Routes(api fiber.Router)
}

// CallerID extracts the authenticated user id injected by the gateway.
// The gateway validates the session token and forwards the identity in
// X-User-ID; this service trusts it.
func CallerID(c *fiber.Ctx) (uint64, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "invalid X-User-ID header")
	}
	return id, nil
}

// New builds the fiber app with the shared error handler, the
// infrastructure endpoints and every registrar's routes mounted under /v1.
func New(appCtx *app.AppContext, registrars ...Registrar) *fiber.App {
	fapp := fiber.New(fiber.Config{
		AppName:               "matchd",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			code := fiber.StatusInternalServerError
			msg := "internal server error"
			if errors.As(err, &fe) {
				code = fe.Code
				msg = fe.Message
			}
			if code >= fiber.StatusInternalServerError {
				appCtx.Logger.Error("request failed", "path", c.Path(), "err", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	fapp.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	fapp.Get("/metrics", adaptor.HTTPHandler(appCtx.Metrics.Handler()))

	logs := repository.NewClientLogRepository(appCtx.DB)
	fapp.Post("/v1/client-logs", func(c *fiber.Ctx) error {
		userID, err := CallerID(c)
		if err != nil {
			return err
		}
		var body struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		entry := &db.ClientLog{UID: userID, Level: body.Level, Message: body.Message}
		if err := logs.Create(c.Context(), entry); err != nil {
			return svcErr.Map(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api := fapp.Group("/v1")
	for _, r := range registrars {
		r.Routes(api)
	}

	return fapp
}

// Start blocks serving the app on the configured address.
func Start(cfg *config.Config, fapp *fiber.App) error {
	return fapp.Listen(cfg.HTTP.Host + ":" + cfg.HTTP.Port)
}
