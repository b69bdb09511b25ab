package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Queues
	MessagesQueueURL     string
	NotificationQueueURL string

	// DynamoDB tables
	BusinessesTable   string
	AppointmentsTable string
	ThreadsTable      string

	// Google Calendar
	GoogleServiceAccountSecret string

	// OpenAI assistant
	OpenAIAPIKey    string
	AssistantID     string
	RunPollInterval time.Duration
	RunTimeout      time.Duration

	// Twilio (WhatsApp channel)
	TwilioAccountSID string
	TwilioAuthToken  string
	WebhookPublicURL string

	// Notification email fallback (SES)
	NotifyFromEmail string
	NotifyFromName  string

	// Webhook dedupe
	RedisAddr     string
	RedisPassword string
	DedupeTTL     time.Duration

	// Admin surface
	AdminJWTSecret string

	// Booking defaults
	DefaultTimezone string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		MessagesQueueURL:     getEnv("MESSAGES_QUEUE_URL", ""),
		NotificationQueueURL: getEnv("APPOINTMENT_CONFIRMED_QUEUE_URL", ""),

		BusinessesTable:   getEnv("BUSINESSES_TABLE", "businesses"),
		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "appointments"),
		ThreadsTable:      getEnv("THREADS_TABLE", "threads"),

		GoogleServiceAccountSecret: getEnv("GOOGLE_SERVICE_ACCOUNT_SECRET", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AssistantID:     getEnv("ASSISTANT_ID", ""),
		RunPollInterval: getEnvAsDuration("RUN_POLL_INTERVAL", 500*time.Millisecond),
		RunTimeout:      getEnvAsDuration("RUN_TIMEOUT", 2*time.Minute),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		WebhookPublicURL: getEnv("WEBHOOK_PUBLIC_URL", ""),

		NotifyFromEmail: getEnv("NOTIFY_FROM_EMAIL", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Citabot"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		DedupeTTL:     getEnvAsDuration("DEDUPE_TTL", 10*time.Minute),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "America/Mexico_City"),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
