package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Choice provider names accepted in CHOICE_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

const (
	defaultNumChoices = 4
	minNumChoices     = 2
	maxNumChoices     = 6

	defaultTimeProgressionRate = 30
	minTimeProgressionRate     = 1
	maxTimeProgressionRate     = 1440
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string

	ChoiceProvider string
	GeminiAPIKey   string
	GeminiModel    string

	AutoGenerateChoices bool
	NumChoices          int
	EnableTimeTracking  bool
	TimeProgressionRate int
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		ChoiceProvider: strings.ToLower(getEnv("CHOICE_PROVIDER", ProviderMock)),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		AutoGenerateChoices: getEnvBool("AUTO_GENERATE_CHOICES", true),
		NumChoices:          getEnvIntClamped("NUM_CHOICES", defaultNumChoices, minNumChoices, maxNumChoices),
		EnableTimeTracking:  getEnvBool("ENABLE_TIME_TRACKING", true),
		TimeProgressionRate: getEnvIntClamped("TIME_PROGRESSION_RATE", defaultTimeProgressionRate, minTimeProgressionRate, maxTimeProgressionRate),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvIntClamped reads an integer and pins it to [min, max]. Unset
// or unparseable values fall back to the default.
func getEnvIntClamped(key string, defaultValue, min, max int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	if parsed < min {
		return min
	}
	if parsed > max {
		return max
	}
	return parsed
}
