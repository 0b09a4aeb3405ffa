package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/logging"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// publicBaseURL is the externally visible origin (scheme and host) when the
// service runs behind a proxy; empty means the request's own origin.
func ValidateTwilioSignature(authToken, publicBaseURL string, logger *zap.Logger) fiber.Handler {
	logger = logging.Component(logger, "twilio_auth")
	validator := client.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		signature := c.Get(twilioSignatureHeader)
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		if authToken == "" {
			logger.Error("TWILIO_AUTH_TOKEN not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})

		url := fullURL(c, publicBaseURL)
		if !validator.Validate(url, params, signature) {
			logger.Warn("invalid webhook signature", zap.String("url", url))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// fullURL rebuilds the URL Twilio signed
func fullURL(c *fiber.Ctx, publicBaseURL string) string {
	if publicBaseURL != "" {
		return publicBaseURL + c.OriginalURL()
	}
	return c.BaseURL() + c.OriginalURL()
}
