package profile

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
	api.Post("/register", h.Register)
	api.Get("/profile", h.Get)
	api.Put("/profile", h.Update)
	api.Post("/premium", h.SetPremium)
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.svc.Register(c.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	p, err := h.svc.Get(c.Context(), userID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(p)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var update ProfileUpdate
	if err := c.BodyParser(&update); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Update(c.Context(), userID, update)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(p)
}

// SetPremium is called by the payment gateway after a verified purchase,
// never directly by a client.
func (h *Handler) SetPremium(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var body struct {
		Premium bool   `json:"premium"`
		Product string `json:"product"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.SetPremium(c.Context(), userID, body.Premium, body.Product); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
