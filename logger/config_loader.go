package logger

import (
	"flag"
	"os"
	"strings"
	"time"
)

var (
	logLevelFlag   *string
	webhookURLFlag *string
	appNameFlag    *string
	envFlag        *string
)

// RegisterFlags registers the logger flags on fs. Call it before fs.Parse.
func RegisterFlags(fs *flag.FlagSet) {
	logLevelFlag = fs.String("log_level", "", "Log level (debug, info, warn, error)")
	webhookURLFlag = fs.String("log_webhook_url", "", "Webhook URL receiving buffered logs at exit")
	appNameFlag = fs.String("app_name", "", "Application name reported in logs")
	envFlag = fs.String("env", "", "Environment (development, staging, production)")
}

// EnvVar describes an environment variable read by this package.
type EnvVar struct {
	Name        string
	Description string
}

// GetEnvVarsHelp returns the environment variables understood by LoadConfig.
func GetEnvVarsHelp() []EnvVar {
	return []EnvVar{
		{"LOG_LEVEL", "Log level (debug, info, warn, error)"},
		{"LOG_WEBHOOK_URL", "Webhook URL for logging"},
		{"APP_NAME", "Application name"},
		{"ENV", "Environment (development, staging, production)"},
	}
}

// LoadConfig loads logger config from flags and environment variables.
// Flags take precedence over environment variables.
// The caller must call flag.Parse() before calling this function.
func LoadConfig() (*Config, error) {
	levelStr := flagValue(logLevelFlag)
	webhookURL := flagValue(webhookURLFlag)
	appName := flagValue(appNameFlag)
	envName := flagValue(envFlag)

	if levelStr == "" {
		levelStr = getEnv("LOG_LEVEL", "info")
	}
	if webhookURL == "" {
		webhookURL = os.Getenv("LOG_WEBHOOK_URL")
	}
	if appName == "" {
		appName = getEnv("APP_NAME", "formfill-exporter")
	}
	if envName == "" {
		envName = getEnv("ENV", "development")
	}

	return &Config{
		Level:          ParseLevel(strings.ToLower(levelStr)),
		WebhookURL:     webhookURL,
		WebhookTimeout: 10 * time.Second,
		AppName:        appName,
		Environment:    envName,
		Output:         nil, // Set by caller if needed
	}, nil
}

func flagValue(f *string) string {
	if f == nil {
		return ""
	}
	return *f
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
