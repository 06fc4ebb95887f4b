package config

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const MemoryDSN = "memory"

// Environment holds the defaults read from the process environment. Flags
// override every value.
type Environment struct {
	ServerAddr     string `env:"GO_DM_ADDR,default=localhost:8000"`
	DatabaseDSN    string `env:"GO_DM_DSN"`
	SigningKey     string `env:"GO_DM_SIGNING_KEY"`
	AllowedOrigins string `env:"GO_DM_ALLOWED_ORIGINS,default=http://localhost:5173"`
	MediaDir       string `env:"GO_DM_MEDIA_DIR,default=./media"`
	MediaURL       string `env:"GO_DM_MEDIA_URL,default=/media"`
	AIURL          string `env:"GO_DM_AI_URL"`
	AIAPIKey       string `env:"GO_DM_AI_API_KEY"`
}

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	AllowedOrigins []string
	MediaDir       string
	MediaURL       string
}

// InMemory reports whether the process-local store was selected.
func (c *Config) InMemory() bool {
	return c.DatabaseDSN == MemoryDSN
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty key")
	}
	return key, nil
}

// SplitOrigins parses a comma-separated origin list, dropping blanks.
func SplitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, mediaDir, mediaURL string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if mediaDir == "" {
		return nil, fmt.Errorf("media directory cannot be empty")
	}
	if mediaURL == "" {
		return nil, fmt.Errorf("media URL cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		MediaDir:       mediaDir,
		MediaURL:       strings.TrimRight(mediaURL, "/"),
	}, nil
}
