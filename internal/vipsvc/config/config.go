package config

import (
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type Config struct {
	Port               string
	DBUrl              string
	RecaptchaSecret    string
	RecaptchaSiteKey   string
	RecaptchaMinScore  float64
	RecaptchaVerifyURL string
	RateLimitPerMin    int
	JWTSecret          string
}

// Load reads the service configuration from the environment. The
// reCAPTCHA secret/site-key pair is mandatory: without it every
// registration would be accepted blind, so startup stops instead.
func Load() Config {
	cfg := Config{
		Port:               readString("VIP_SERVICE_PORT", "8084"),
		DBUrl:              os.Getenv("POSTGRES_URL"),
		RecaptchaSecret:    os.Getenv("RECAPTCHA_SECRET"),
		RecaptchaSiteKey:   os.Getenv("RECAPTCHA_SITE_KEY"),
		RecaptchaMinScore:  readFloat("RECAPTCHA_MIN_SCORE", 0.3),
		RecaptchaVerifyURL: readString("RECAPTCHA_VERIFY_URL", defaultVerifyURL),
		RateLimitPerMin:    readInt("RATE_LIMIT", 60),
		JWTSecret:          os.Getenv("JWT_SECRET_KEY"),
	}

	if cfg.DBUrl == "" {
		log.Fatal("POSTGRES_URL is required")
	}
	if cfg.RecaptchaSecret == "" || cfg.RecaptchaSiteKey == "" {
		log.Fatal("RECAPTCHA_SECRET and RECAPTCHA_SITE_KEY are required")
	}

	return cfg
}

func readString(key, fallback string) string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	return raw
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}
