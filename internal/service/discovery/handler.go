package discovery

import (
	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/matchd/internal/errors"
	"github.com/oggyb/matchd/internal/server"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(api fiber.Router) {
	api.Get("/discovery", h.Candidates)
}

func (h *Handler) Candidates(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	candidates, err := h.svc.Candidates(c.Context(), userID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"profiles": candidates})
}
