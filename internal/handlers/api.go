package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/emberchat/ember/internal/models"
)

func (h *Handler) bearerUser(c *fiber.Ctx) (*models.User, error) {
	token := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if token == "" {
		token = c.Query("token")
	}
	return h.Auth.Authenticate(c.Context(), token)
}

// ListConversations GET /api/conversations
func (h *Handler) ListConversations(c *fiber.Ctx) error {
	user, err := h.bearerUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication failed"})
	}
	convs, err := h.Store.Conversations.ListForUser(c.Context(), user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "store unavailable"})
	}
	return c.JSON(convs)
}

// History GET /api/conversations/:id/messages?limit=
func (h *Handler) History(c *fiber.Ctx) error {
	user, err := h.bearerUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication failed"})
	}
	conv, err := h.Store.Conversations.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	if !conv.HasParticipant(user.ID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a participant"})
	}
	msgs, err := h.Store.Messages.History(c.Context(), conv.ID, c.QueryInt("limit", 50))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "store unavailable"})
	}
	return c.JSON(msgs)
}
