package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/models"
	"github.com/Ananth-NQI/estoque-backend/internal/services"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// emptyTwiML acknowledges a Twilio webhook without an inline reply. Replies
// go out through the dispatcher.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	store         storage.Store
	engine        *services.Engine
	dispatcher    services.Dispatcher
	defaultUserID string
	logger        *zap.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(store storage.Store, engine *services.Engine, dispatcher services.Dispatcher, defaultUserID string, logger *zap.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		store:         store,
		engine:        engine,
		dispatcher:    dispatcher,
		defaultUserID: defaultUserID,
		logger:        logging.Component(logger, "webhook"),
	}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"` // whatsapp:+5511999990000
	To            string `form:"To"`
	Body          string `form:"Body"`
	NumMedia      string `form:"NumMedia"`
	MessageStatus string `form:"MessageStatus"`
}

// HandleWebhook stores an inbound message and runs it through the engine
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// status callbacks carry no body
	if payload.MessageSid == "" || strings.TrimSpace(payload.Body) == "" {
		return h.ack(c)
	}

	sender, err := utils.NormalizePhone(payload.From)
	if err != nil {
		h.logger.Warn("unusable sender", zap.String("message_id", payload.MessageSid), zap.Error(err))
		return h.ack(c)
	}

	ctx := c.UserContext()
	log := h.logger.With(zap.String("message_id", payload.MessageSid), zap.String("sender", utils.MaskPhone(sender)))

	userID, err := h.resolveUser(ctx, c.Params("userId"), sender)
	if err != nil {
		log.Error("could not resolve user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if userID == "" {
		log.Info("message from unlinked phone")
		if err := h.dispatcher.Send(ctx, sender, services.PhoneNotLinkedMessage); err != nil {
			log.Warn("could not answer unlinked phone", zap.Error(err))
		}
		return h.ack(c)
	}

	created, err := h.store.CreateMessage(ctx, &models.InboundMessage{
		ID:         payload.MessageSid,
		UserID:     userID,
		Sender:     sender,
		Content:    payload.Body,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		// not stored, let Twilio retry
		log.Error("could not store message", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if !created {
		log.Debug("duplicate delivery")
	}

	// a stored message that fails here is answered by the engine or
	// picked up by the recovery sweep
	if err := h.engine.Process(ctx, payload.MessageSid); err != nil {
		log.Error("message processing failed", zap.Error(err))
	}
	return h.ack(c)
}

// resolveUser picks the owner of a message: explicit path parameter, then
// the linked phone table, then the configured default
func (h *WhatsAppHandler) resolveUser(ctx context.Context, pinned, sender string) (string, error) {
	if pinned = strings.TrimSpace(pinned); pinned != "" {
		return pinned, nil
	}
	userID, err := h.store.GetUserByPhone(ctx, sender)
	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, storage.ErrNotFound):
		return h.defaultUserID, nil
	default:
		return "", err
	}
}

func (h *WhatsAppHandler) ack(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Status(fiber.StatusOK).SendString(emptyTwiML)
}

// TestWebhookPayload is the development endpoint's body
type TestWebhookPayload struct {
	UserID  string `json:"user_id"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook processes test WhatsApp messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}
	if strings.TrimSpace(payload.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message is required",
		})
	}

	sender, err := utils.NormalizePhone(payload.From)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid phone number",
		})
	}

	ctx := c.UserContext()
	userID, err := h.resolveUser(ctx, payload.UserID, sender)
	if err != nil {
		h.logger.Error("could not resolve user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
	if userID == "" {
		return c.JSON(fiber.Map{
			"success":  false,
			"response": services.PhoneNotLinkedMessage,
		})
	}

	h.logger.Debug("test webhook", zap.String("user_id", userID), zap.String("sender", utils.MaskPhone(sender)))

	response, err := h.engine.ProcessText(ctx, userID, sender, payload.Message)
	if err != nil {
		h.logger.Error("test message failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":  false,
			"response": response,
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": response,
	})
}
