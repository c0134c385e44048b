package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"sound-predict/api/internal/inference"
)

type Config struct {
	Port     string
	LogLevel string

	InferenceURL     string
	InferenceTimeout time.Duration
	StrictUniverse   bool

	ImagesDir      string
	SessionTTL     time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	TelegramBotToken string
	WebhookURL       string
	DatabaseURL      string
}

// MustEnv returns the value of k or exits. Only binaries that cannot run
// without a setting call it.
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: bad %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func getBool(k string) bool {
	b, _ := strconv.ParseBool(getEnv(k, "false"))
	return b
}

// Load reads the environment. Every setting has a default so the web
// client boots with nothing set.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		InferenceURL:     getEnv("INFERENCE_URL", inference.DefaultBaseURL),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 0),
		StrictUniverse:   getBool("STRICT_UNIVERSE"),

		ImagesDir:      getEnv("IMAGES_DIR", "public/images"),
		SessionTTL:     getDuration("SESSION_TTL", 30*time.Minute),
		RateLimitRPS:   getInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 10),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
	}
}
