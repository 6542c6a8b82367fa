package match

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
	api.Post("/swipes", h.Swipe)
	api.Post("/matches/list", h.MutualMatches)
	api.Get("/matches/:matchID/profile", h.MatchProfile)
	api.Get("/likers", h.Likers)
	api.Get("/likers/count", h.LikersCount)
}

func (h *Handler) Swipe(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var body struct {
		UserID uint64 `json:"userId"`
		Like   *bool  `json:"like"`
	}
	if err := c.BodyParser(&body); err != nil || body.Like == nil {
		return fiber.NewError(fiber.StatusBadRequest, "userId and like are required")
	}

	result, err := h.svc.ProcessSwipe(c.Context(), userID, body.UserID, *body.Like)
	if err != nil {
		return svcErr.Map(err)
	}

	resp := fiber.Map{
		"matchId": result.Match.ID,
		"state":   string(result.Match.State),
		"mutual":  result.NewlyMutual,
	}
	if result.NewlyMutual {
		// The initiator gets the fresh match inline instead of a push.
		if view, err := h.svc.MatchProfile(c.Context(), userID, result.Match.ID); err == nil {
			resp["profile"] = view
		}
	}
	return c.JSON(resp)
}

func (h *Handler) MutualMatches(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var body struct {
		MatchIDs []uint64 `json:"matchIds"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "matchIds is required")
	}

	views, err := h.svc.MutualMatches(c.Context(), userID, body.MatchIDs)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"matches": views})
}

func (h *Handler) MatchProfile(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}
	matchID, err := strconv.ParseUint(c.Params("matchID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid match id")
	}

	view, err := h.svc.MatchProfile(c.Context(), userID, matchID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(view)
}

func (h *Handler) Likers(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	var token *string
	if t := c.Query("pageToken"); t != "" {
		token = &t
	}
	limit := c.QueryInt("limit")

	views, nextToken, err := h.svc.LikedBy(c.Context(), userID, token, limit)
	if err != nil {
		return svcErr.Map(err)
	}

	resp := fiber.Map{"profiles": views}
	if nextToken != nil {
		resp["nextPageToken"] = *nextToken
	}
	return c.JSON(resp)
}

func (h *Handler) LikersCount(c *fiber.Ctx) error {
	userID, err := server.CallerID(c)
	if err != nil {
		return err
	}

	count, err := h.svc.CountLikedBy(c.Context(), userID)
	if err != nil {
		return svcErr.Map(err)
	}
	return c.JSON(fiber.Map{"count": count})
}
