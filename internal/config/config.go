package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Chat transport
	ChatProvider       string // line | telegram | memory | auto
	LineChannelSecret  string
	LineChannelToken   string
	LineAPIBaseURL     string
	TelegramBotToken   string
	TelegramAllowFrom  []int64
	DevConsoleEnabled  bool
	AdminToken         string
	ReplyTokenLifetime time.Duration

	// Session store
	SessionBackend string // memory | redis

	// Dispatch
	UseMemoryQueue    bool
	DispatchQueueURL  string
	DispatchJobsTable string
	WorkerCount       int
	DispatchInline    bool

	// Directory store (Google Sheets)
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	SheetsStoresSheet     string
	SheetsRecordsSheet    string

	// Postgres
	DatabaseURL string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Reminders
	ReminderSweepSchedule string
	ReminderCooldown      time.Duration
	ReminderMaxSends      int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Archive
	ArchiveBucket string

	// Ops alerts
	OpsAlertEmail     string
	EmailProvider     string // ses | sendgrid
	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ChatProvider:       strings.ToLower(strings.TrimSpace(getEnv("CHAT_PROVIDER", "auto"))),
		LineChannelSecret:  getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelToken:   getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:     getEnv("LINE_API_BASE_URL", ""),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAllowFrom:  getEnvAsInt64List("TELEGRAM_ALLOW_FROM"),
		DevConsoleEnabled:  getEnvAsBool("DEV_CONSOLE_ENABLED", false),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		ReplyTokenLifetime: getEnvAsDuration("REPLY_TOKEN_LIFETIME", time.Minute),

		SessionBackend: strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),

		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", true),
		DispatchQueueURL:  getEnv("DISPATCH_QUEUE_URL", ""),
		DispatchJobsTable: getEnv("DISPATCH_JOBS_TABLE", ""),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),
		DispatchInline:    getEnvAsBool("DISPATCH_INLINE", false),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: getEnv("SHEETS_CREDENTIALS_JSON", ""),
		SheetsStoresSheet:     getEnv("SHEETS_STORES_SHEET", "店舗登録"),
		SheetsRecordsSheet:    getEnv("SHEETS_RECORDS_SHEET", "応募記録"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ReminderSweepSchedule: getEnv("REMINDER_SWEEP_SCHEDULE", "@every 10m"),
		ReminderCooldown:      getEnvAsDuration("REMINDER_COOLDOWN", time.Hour),
		ReminderMaxSends:      getEnvAsInt("REMINDER_MAX_SENDS", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		OpsAlertEmail:     getEnv("OPS_ALERT_EMAIL", ""),
		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Yakushift"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Yakushift"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
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

// getEnvAsInt64List parses a comma-separated list of int64 values. Malformed
// entries are skipped.
func getEnvAsInt64List(key string) []int64 {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
