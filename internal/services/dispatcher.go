package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/config"
	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// Dispatcher delivers a reply to a WhatsApp number. A nil error means the
// provider accepted the message.
type Dispatcher interface {
	Send(ctx context.Context, to, text string) error
}

// NewDispatcher picks the outbound provider named in the configuration
func NewDispatcher(cfg *config.Config, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.WhatsAppProvider {
	case "twilio":
		d, err := NewTwilioDispatcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "cloud":
		d, err := NewCloudAPIDispatcher(cfg.CloudAccessToken, cfg.CloudPhoneNumberID, cfg.CloudAPIVersion, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "log", "":
		return NewLogDispatcher(logger), nil
	default:
		return nil, fmt.Errorf("unknown WHATSAPP_PROVIDER %q", cfg.WhatsAppProvider)
	}
}

// LogDispatcher only logs replies. Used when no provider is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logging.Component(logger, "log_dispatcher")}
}

func (d *LogDispatcher) Send(_ context.Context, to, text string) error {
	d.logger.Info("outbound message", zap.String("to", utils.MaskPhone(to)), zap.String("text", text))
	return nil
}

const cloudAPITimeout = 30 * time.Second

// CloudAPIDispatcher sends text messages through the WhatsApp Cloud API
type CloudAPIDispatcher struct {
	token   string
	url     string
	timeout time.Duration
	logger  *zap.Logger
}

func NewCloudAPIDispatcher(token, phoneNumberID, version string, logger *zap.Logger) (*CloudAPIDispatcher, error) {
	if token == "" || phoneNumberID == "" {
		return nil, fmt.Errorf("WHATSAPP_ACCESS_TOKEN or WHATSAPP_PHONE_NUMBER_ID not set")
	}
	if version == "" {
		version = "v20.0"
	}
	return &CloudAPIDispatcher{
		token:   token,
		url:     fmt.Sprintf("https://graph.facebook.com/%s/%s/messages", version, phoneNumberID),
		timeout: cloudAPITimeout,
		logger:  logging.Component(logger, "cloud_api"),
	}, nil
}

type cloudTextMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             cloudTextInner `json:"text"`
}

type cloudTextInner struct {
	Body string `json:"body"`
}

func (d *CloudAPIDispatcher) Send(ctx context.Context, to, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := d.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(d.url)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+d.token)
	agent.Timeout(timeout)
	agent.JSON(cloudTextMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             cloudTextInner{Body: text},
	})

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("whatsapp api request: %w", errs[0])
	}
	if status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("whatsapp api error: status=%d body=%s", status, string(body))
	}

	d.logger.Debug("whatsapp message sent", zap.String("to", utils.MaskPhone(to)))
	return nil
}
