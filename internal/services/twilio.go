package services

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/estoque-backend/internal/logging"
	"github.com/Ananth-NQI/estoque-backend/internal/utils"
)

// TwilioDispatcher sends replies through the Twilio WhatsApp API
type TwilioDispatcher struct {
	client *twilio.RestClient
	from   string // "whatsapp:+14155238886"
	logger *zap.Logger
}

// NewTwilioDispatcher creates a Twilio sender
func NewTwilioDispatcher(accountSid, authToken, from string, logger *zap.Logger) (*TwilioDispatcher, error) {
	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioDispatcher{
		client: client,
		from:   whatsAppAddress(from),
		logger: logging.Component(logger, "twilio"),
	}, nil
}

// Send delivers a WhatsApp text to a digits-only phone
func (t *TwilioDispatcher) Send(_ context.Context, to, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsAppAddress(to))
	params.SetBody(text)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.logger.Debug("whatsapp message sent", zap.String("sid", sid), zap.String("to", utils.MaskPhone(to)))
	return nil
}

// whatsAppAddress turns "5511999990000" or "+5511999990000" into Twilio's
// "whatsapp:+5511999990000" form
func whatsAppAddress(phone string) string {
	if len(phone) >= 9 && phone[:9] == "whatsapp:" {
		return phone
	}
	if len(phone) > 0 && phone[0] != '+' {
		phone = "+" + phone
	}
	return "whatsapp:" + phone
}
