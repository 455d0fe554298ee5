package craftlink

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the endpoint configuration shared by the REST client and
// the realtime layer.
type Config struct {
	// APIBaseURL is the REST base, e.g. https://api.craftlink.app.
	APIBaseURL string
	// WSBaseURL is the WebSocket base. When empty it is derived from
	// APIBaseURL by scheme substitution (http -> ws, https -> wss).
	WSBaseURL string
	// RealtimeDisabled turns off the realtime connection entirely,
	// used in local development against backends without the stream.
	RealtimeDisabled bool
}

const defaultAPIBaseURL = "https://api.craftlink.app"

// LoadConfig reads configuration from a .env file (when present) and the
// process environment. Environment variables win over .env values.
func LoadConfig() Config {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := Config{
		APIBaseURL: os.Getenv("CRAFTLINK_API_URL"),
		WSBaseURL:  os.Getenv("CRAFTLINK_WS_URL"),
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if v, err := strconv.ParseBool(os.Getenv("CRAFTLINK_REALTIME_DISABLED")); err == nil {
		cfg.RealtimeDisabled = v
	}
	return cfg
}

// WebSocketBase returns the WebSocket base URL, deriving it from the REST
// base when not configured independently.
func (c Config) WebSocketBase() string {
	if c.WSBaseURL != "" {
		return c.WSBaseURL
	}
	return DeriveWebSocketURL(c.APIBaseURL)
}

// DeriveWebSocketURL converts an http(s) base URL to its ws(s) equivalent.
func DeriveWebSocketURL(apiBase string) string {
	switch {
	case strings.HasPrefix(apiBase, "https://"):
		return "wss://" + strings.TrimPrefix(apiBase, "https://")
	case strings.HasPrefix(apiBase, "http://"):
		return "ws://" + strings.TrimPrefix(apiBase, "http://")
	default:
		return apiBase
	}
}
