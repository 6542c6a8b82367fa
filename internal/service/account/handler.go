package account

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
	api.Delete("/matches/:matchID", h.RemoveMatch)
	api.Delete("/account", h.DeleteAccount)
	api.Post("/reports", h.ReportUser)

	admin := api.Group("/admin")
	admin.Delete("/users/:userID", h.DeleteUser)
	admin.Post("/users/:userID/ban", h.BanUser)
	admin.Get("/reports", h.OpenReports)
	admin.Get("/reports/users/:userID", h.ReportedUserDetails)
	admin.Post("/reports/:reportID/close", h.CloseReport)
	admin.Post("/reports/:reportID/delete-photo", h.DeletePhoto)
}

func (h *Handler) RemoveMatch(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	matchID, err := strconv.ParseUint(c.Params("matchID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid match id")
	}

	if err := h.svc.RemoveMatch(c.Context(), userID, matchID); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	if err := h.svc.DeleteAccount(c.Context(), userID); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ReportUser(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var body struct {
		UserID uint64 `json:"userId"`
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	report, err := h.svc.ReportUser(c.Context(), userID, body.UserID, body.Type, body.Reason)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseUint(c.Params("userID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.svc.DeleteUser(c.Context(), adminID, userID); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) BanUser(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseUint(c.Params("userID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.svc.BanUser(c.Context(), adminID, userID); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) OpenReports(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	reports, err := h.svc.OpenReports(c.Context(), adminID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"reports": reports})
}

func (h *Handler) ReportedUserDetails(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseUint(c.Params("userID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	reports, messages, err := h.svc.ReportedUserDetails(c.Context(), adminID, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"reports": reports, "messages": messages})
}

func (h *Handler) CloseReport(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	reportID, err := strconv.ParseUint(c.Params("reportID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid report id")
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := c.BodyParser(&body); err != nil || body.Action == "" {
		return fiber.NewError(fiber.StatusBadRequest, "action is required")
	}

	if err := h.svc.CloseReport(c.Context(), adminID, reportID, body.Action); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) DeletePhoto(c *fiber.Ctx) error {
	adminID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	reportID, err := strconv.ParseUint(c.Params("reportID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid report id")
	}

	var body struct {
		Photo string `json:"photo"`
	}
	if err := c.BodyParser(&body); err != nil || body.Photo == "" {
		return fiber.NewError(fiber.StatusBadRequest, "photo is required")
	}

	if err := h.svc.DeletePhoto(c.Context(), adminID, reportID, body.Photo); err != nil {
		return svcErr.Map(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
