package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	"github.com/campushub/helpdesk-service/internal/service"
)

// MessagesHandler serves private one-to-one chat.
type MessagesHandler struct {
	chat      *service.ChatService
	validator *dto.Validator
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(chat *service.ChatService, validator *dto.Validator) *MessagesHandler {
	return &MessagesHandler{chat: chat, validator: validator}
}

// Sidebar GET /messages/users/sidebar lists everyone but the caller.
func (h *MessagesHandler) Sidebar(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.chat.Contacts(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// Chats GET /messages/users/chats.
func (h *MessagesHandler) Chats(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.chat.Conversations(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// Search GET /messages/users/search?q=.
func (h *MessagesHandler) Search(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.chat.Search(c.UserContext(), user, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// History GET /messages/:id.
func (h *MessagesHandler) History(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	msgs, err := h.chat.History(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDirectMessageResponses(msgs)})
}

// Send POST /messages/send/:id.
func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.SendDirectMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	msg, err := h.chat.Send(c.UserContext(), user, c.Params("id"), req.Text, req.Image)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewDirectMessageResponse(msg)})
}
