package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type CLIConfig struct {
	APIBaseURL    string
	DataDir       string
	EnvelopeKey   string // raw key bytes; when empty the key is derived from the passphrase
	EnvelopePass  string
	EnvelopeSalt  string
	EnvelopeIV    string
	PayBaseURL    string
	PayMerchantID string
	PaySecret     string
	SettleDelay   time.Duration
	IsMobile      bool
}

type EmbedConfig struct {
	Addr         string
	APIBaseURL   string
	DataDir      string
	EnvelopeKey  string
	EnvelopePass string
	EnvelopeSalt string
	EnvelopeIV   string
}

func LoadCLIFromEnv() (CLIConfig, error) {
	cfg := CLIConfig{
		APIBaseURL:    strings.TrimRight(envDefault("LKY_API_BASE_URL", "http://localhost:8080"), "/"),
		DataDir:       envDefault("LKY_DATA_DIR", defaultDataDir()),
		EnvelopeKey:   strings.TrimSpace(os.Getenv("LKY_ENVELOPE_KEY")),
		EnvelopePass:  strings.TrimSpace(os.Getenv("LKY_ENVELOPE_PASS")),
		EnvelopeSalt:  envDefault("LKY_ENVELOPE_SALT", "lucky"),
		EnvelopeIV:    strings.TrimSpace(os.Getenv("LKY_ENVELOPE_IV")),
		PayBaseURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("LKY_PAY_BASE_URL")), "/"),
		PayMerchantID: strings.TrimSpace(os.Getenv("LKY_PAY_MERCHANT_ID")),
		PaySecret:     strings.TrimSpace(os.Getenv("LKY_PAY_SECRET")),
		SettleDelay:   envDurationDefault("LKY_SETTLE_DELAY", 100*time.Millisecond),
		IsMobile:      envBoolDefault("LKY_MOBILE", false),
	}
	if err := validateEnvelope(cfg.EnvelopeKey, cfg.EnvelopePass, cfg.EnvelopeIV); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func LoadEmbedFromEnv() (EmbedConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("LKY_EMBED_ADDR", ":8090")
	}
	cfg := EmbedConfig{
		Addr:         addr,
		APIBaseURL:   strings.TrimRight(envDefault("LKY_API_BASE_URL", "http://localhost:8080"), "/"),
		DataDir:      envDefault("LKY_DATA_DIR", defaultDataDir()),
		EnvelopeKey:  strings.TrimSpace(os.Getenv("LKY_ENVELOPE_KEY")),
		EnvelopePass: strings.TrimSpace(os.Getenv("LKY_ENVELOPE_PASS")),
		EnvelopeSalt: envDefault("LKY_ENVELOPE_SALT", "lucky"),
		EnvelopeIV:   strings.TrimSpace(os.Getenv("LKY_ENVELOPE_IV")),
	}
	if err := validateEnvelope(cfg.EnvelopeKey, cfg.EnvelopePass, cfg.EnvelopeIV); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateEnvelope(key, pass, iv string) error {
	if key == "" && pass == "" {
		return fmt.Errorf("LKY_ENVELOPE_KEY or LKY_ENVELOPE_PASS is required")
	}
	if iv == "" {
		return fmt.Errorf("LKY_ENVELOPE_IV is required")
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lky"
	}
	return filepath.Join(home, ".lky")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
