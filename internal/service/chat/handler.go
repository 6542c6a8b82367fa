package chat

import (
	"strconv"

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
	api.Post("/messages", h.SendMessage)
	api.Get("/matches/:matchID/messages", h.Messages)
}

func (h *Handler) SendMessage(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var draft Draft
	if err := c.BodyParser(&draft); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	msg, err := h.svc.SendMessage(c.Context(), userID, draft)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handler) Messages(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	matchID, err := strconv.ParseUint(c.Params("matchID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid match id")
	}

	beforeID, _ := strconv.ParseUint(c.Query("beforeId"), 10, 64)
	limit := c.QueryInt("limit")

	msgs, err := h.svc.Messages(c.Context(), userID, matchID, beforeID, limit)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}
