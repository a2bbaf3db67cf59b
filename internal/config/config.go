// Package config loads process configuration from the environment, with a
// .env file picked up when present.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type OAuthApp struct {
	AppID       string
	AppSecret   string
	RedirectURI string
}

type Config struct {
	Port      string
	Instagram OAuthApp
	Facebook  OAuthApp

	WhatsApp struct {
		PhoneNumberID string
		VerifyToken   string
	}

	// WebhookVerifyToken guards the Instagram and Messenger handshakes.
	WebhookVerifyToken string

	// DBDSN selects the SQLite backend when set; empty keeps everything
	// in memory.
	DBDSN string

	// MemoryMaxTurns bounds the per-sender WhatsApp transcript.
	MemoryMaxTurns int

	// PublicBaseURL is the externally reachable base used in setup QR
	// codes and OAuth redirect defaults.
	PublicBaseURL string
}

func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	var c Config
	c.Port = getenv("PORT", "10000")
	c.PublicBaseURL = getenv("PUBLIC_BASE_URL", "http://localhost:"+c.Port)

	c.Instagram.AppID = os.Getenv("INSTAGRAM_APP_ID")
	c.Instagram.AppSecret = os.Getenv("INSTAGRAM_APP_SECRET")
	c.Instagram.RedirectURI = getenv("INSTAGRAM_REDIRECT_URI", c.PublicBaseURL+"/auth/instagram/callback")

	c.Facebook.AppID = os.Getenv("FACEBOOK_APP_ID")
	c.Facebook.AppSecret = os.Getenv("FACEBOOK_APP_SECRET")
	c.Facebook.RedirectURI = getenv("FACEBOOK_CALLBACK", c.PublicBaseURL+"/auth/facebook/callback")

	c.WhatsApp.PhoneNumberID = getenv("WHATSAPP_PHONE_NUMBER_ID", "657991800734493")
	c.WhatsApp.VerifyToken = getenv("WHATSAPP_VERIFY_TOKEN", "verify-me")
	c.WebhookVerifyToken = getenv("WEBHOOK_VERIFY_TOKEN", "WORKFLOW_VERIFY_TOKEN")

	c.DBDSN = os.Getenv("DB_DSN")
	c.MemoryMaxTurns = getint("MEMORY_MAX_TURNS", 100)
	return c
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
