// Package config loads the dashboard configuration: a TOML file layered
// under environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// NtfyConfig holds the settings for new-incident push alerts.
type NtfyConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Topic   string `toml:"topic"`
}

type Config struct {
	// Spreadsheet identity and per-dashboard sheet gids (public gviz reads).
	SpreadsheetID string `toml:"spreadsheet_id"`
	TransfersGID  string `toml:"transfers_gid"`
	IncidentsGID  string `toml:"incidents_gid"`
	MessagesGID   string `toml:"messages_gid"`

	// Status write path: an Apps Script webhook, or direct Sheets API
	// writes when a credentials file is configured.
	StatusWebhookURL string `toml:"status_webhook_url"`
	CredentialsFile  string `toml:"credentials_file"`

	// Sheet names, used by the authenticated transport for reads and for
	// addressing the status cell.
	TransfersSheetName string `toml:"transfers_sheet_name"`
	IncidentsSheetName string `toml:"incidents_sheet_name"`
	MessagesSheetName  string `toml:"messages_sheet_name"`

	RefreshSeconds int    `toml:"refresh_seconds"`
	APIPort        int    `toml:"api_port"`
	DataDir        string `toml:"data_dir"`

	Ntfy NtfyConfig `toml:"ntfy"`
}

// DefaultDataDir returns the directory for persistent local state. Respects
// GRANEL_DATA_DIR.
func DefaultDataDir() string {
	if d := os.Getenv("GRANEL_DATA_DIR"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".granel-dashboard"
	}
	return filepath.Join(home, ".granel-dashboard")
}

func defaults() *Config {
	return &Config{
		TransfersGID:       "0",
		IncidentsGID:       "1",
		MessagesGID:        "2",
		TransfersSheetName: "Transferencias",
		IncidentsSheetName: "Incidencias",
		MessagesSheetName:  "WhatsApp",
		RefreshSeconds:     30,
		APIPort:            8080,
		DataDir:            DefaultDataDir(),
		Ntfy: NtfyConfig{
			URL:   "https://ntfy.sh",
			Topic: "granel-incidents",
		},
	}
}

// Load reads the configuration file at path (default
// <dataDir>/config.toml), then applies environment overrides. A missing
// file is fine; env vars alone can configure everything.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = filepath.Join(DefaultDataDir(), "config.toml")
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = 30
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return nil, fmt.Errorf("invalid api_port %d", cfg.APIPort)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrideString(&cfg.SpreadsheetID, "SPREADSHEET_ID")
	overrideString(&cfg.TransfersGID, "TRANSFERS_GID")
	overrideString(&cfg.IncidentsGID, "INCIDENTS_GID")
	overrideString(&cfg.MessagesGID, "MESSAGES_GID")
	overrideString(&cfg.StatusWebhookURL, "STATUS_WEBHOOK_URL")
	overrideString(&cfg.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	overrideString(&cfg.TransfersSheetName, "TRANSFERS_SHEET_NAME")
	overrideString(&cfg.IncidentsSheetName, "INCIDENTS_SHEET_NAME")
	overrideString(&cfg.MessagesSheetName, "MESSAGES_SHEET_NAME")
	overrideString(&cfg.DataDir, "GRANEL_DATA_DIR")
	overrideInt(&cfg.RefreshSeconds, "REFRESH_SECONDS")
	overrideInt(&cfg.APIPort, "API_PORT")
	overrideString(&cfg.Ntfy.URL, "NTFY_URL")
	overrideString(&cfg.Ntfy.Topic, "NTFY_TOPIC")
	if v := os.Getenv("NTFY_ENABLED"); v != "" {
		cfg.Ntfy.Enabled = v == "true"
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
