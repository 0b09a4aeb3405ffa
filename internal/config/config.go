package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment
type Config struct {
	Port        string
	Environment string

	// Storage
	UseMemoryStore         bool
	DBDriver               string // "postgres" or "sqlite"
	DBUser                 string
	DBPass                 string
	DBName                 string
	DBHost                 string
	DBPort                 string
	InstanceConnectionName string
	SQLitePath             string

	// Outbound transport
	WhatsAppProvider   string // "twilio", "cloud" or "log"
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
	CloudAccessToken   string
	CloudPhoneNumberID string
	CloudAPIVersion    string

	// Webhook
	DisableWebhookValidation bool
	PublicBaseURL            string
	DefaultUserID            string

	// Engine and jobs
	SessionTTL       time.Duration
	SweepInterval    time.Duration
	SweepMinAge      time.Duration
	SweepConcurrency int
}

// Load reads .env files for local development and then the process environment.
// It returns the names of the files it loaded so main can report them.
func Load() (*Config, []string) {
	var loaded []string
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		for _, path := range []string{".env", "environments/.env.development"} {
			if err := godotenv.Load(path); err == nil {
				loaded = append(loaded, path)
				break
			}
		}
	}

	cfg := &Config{
		Port:        getenv("PORT", "8080"),
		Environment: getenv("ENVIRONMENT", "production"),

		UseMemoryStore:         envBool("USE_MEMORY_STORE", false),
		DBDriver:               strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DBUser:                 getenv("DB_USER", "postgres"),
		DBPass:                 os.Getenv("DB_PASS"),
		DBName:                 getenv("DB_NAME", "estoque"),
		DBHost:                 getenv("DB_HOST", "localhost"),
		DBPort:                 getenv("DB_PORT", "5432"),
		InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
		SQLitePath:             getenv("SQLITE_PATH", "db/estoque.db"),

		WhatsAppProvider:   strings.ToLower(os.Getenv("WHATSAPP_PROVIDER")),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: os.Getenv("TWILIO_WHATSAPP_FROM"),
		CloudAccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		CloudPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		CloudAPIVersion:    getenv("WHATSAPP_API_VERSION", "v20.0"),

		DisableWebhookValidation: envBool("DISABLE_WEBHOOK_VALIDATION", false),
		PublicBaseURL:            strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		DefaultUserID:            strings.TrimSpace(os.Getenv("WEBHOOK_DEFAULT_USER_ID")),

		SessionTTL:       time.Duration(envInt("SESSION_TTL_MINUTES", 60)) * time.Minute,
		SweepInterval:    time.Duration(envInt("SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
		SweepMinAge:      time.Duration(envInt("SWEEP_MIN_AGE_SECONDS", 20)) * time.Second,
		SweepConcurrency: envInt("SWEEP_CONCURRENCY", 4),
	}

	if cfg.WhatsAppProvider == "" {
		cfg.WhatsAppProvider = cfg.detectProvider()
	}
	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = 1
	}

	return cfg, loaded
}

// IsDevelopment reports whether the service runs in a local development setup
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ValidateWebhooks reports whether inbound webhook signatures must be checked
func (c *Config) ValidateWebhooks() bool {
	return !c.IsDevelopment() && !c.DisableWebhookValidation
}

func (c *Config) detectProvider() string {
	switch {
	case c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != "":
		return "twilio"
	case c.CloudAccessToken != "" && c.CloudPhoneNumberID != "":
		return "cloud"
	default:
		return "log"
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
