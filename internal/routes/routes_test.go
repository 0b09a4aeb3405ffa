package routes

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/estoque-backend/internal/config"
	"github.com/Ananth-NQI/estoque-backend/internal/services"
	"github.com/Ananth-NQI/estoque-backend/internal/storage"
)

func newApp(cfg *config.Config) *fiber.App {
	store := storage.NewMemoryStore()
	dispatcher := services.NewLogDispatcher(nil)
	app := fiber.New()
	SetupRoutes(app, Dependencies{
		Config:     cfg,
		Store:      store,
		Engine:     services.NewEngine(store, dispatcher, nil),
		Dispatcher: dispatcher,
	})
	return app
}

func status(t *testing.T, app *fiber.App, method, path, body, contentType string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestSetupRoutes_Production(t *testing.T) {
	app := newApp(&config.Config{Environment: "production", TwilioAuthToken: "tok", WhatsAppProvider: "log"})

	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/", "", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/health", "", ""))
	assert.Equal(t, fiber.StatusOK, status(t, app, "GET", "/api/users/user-1/stock", "", ""))

	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+5511999990001"}, "Body": {"ajuda"}}.Encode()
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "POST", "/webhook/whatsapp", form, fiber.MIMEApplicationForm))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "POST", "/webhook/whatsapp/user-1", form, fiber.MIMEApplicationForm))

	assert.Equal(t, fiber.StatusNotFound, status(t, app, "POST", "/test/whatsapp", `{"from":"5511999990001","message":"ajuda"}`, fiber.MIMEApplicationJSON))
}

func TestSetupRoutes_Development(t *testing.T) {
	app := newApp(&config.Config{Environment: "development", WhatsAppProvider: "log"})

	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+5511999990001"}, "Body": {"ajuda"}}.Encode()
	assert.Equal(t, fiber.StatusOK, status(t, app, "POST", "/webhook/whatsapp/user-1", form, fiber.MIMEApplicationForm))

	assert.Equal(t, fiber.StatusOK, status(t, app, "POST", "/test/whatsapp", `{"user_id":"user-1","from":"5511999990001","message":"ajuda"}`, fiber.MIMEApplicationJSON))
}
