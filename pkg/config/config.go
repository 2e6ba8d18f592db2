// Package config loads bridge configuration from a JSON file with
// environment-variable overrides (AMERLINK_* keys).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AdminUserID string           `env:"AMERLINK_ADMIN_USER_ID" json:"admin_user_id"`
	Server      ServerConfig     `json:"server"`
	Channels    ChannelsConfig   `json:"channels"`
	Moderation  ModerationConfig `json:"moderation"`
	Storage     StorageConfig    `json:"storage"`
	Retention   RetentionConfig  `json:"retention"`
}

// ServerConfig controls the HTTP gateway listener.
type ServerConfig struct {
	Host string `env:"AMERLINK_SERVER_HOST" json:"host"`
	Port int    `env:"AMERLINK_SERVER_PORT" json:"port"`
}

type ChannelsConfig struct {
	QQ        OneBotConfig    `json:"qq"`
	Yunhu     YunhuConfig     `json:"yunhu"`
	Minecraft MinecraftConfig `json:"minecraft"`
}

// OneBotConfig connects a QQ group bot speaking OneBot v11 over websocket.
type OneBotConfig struct {
	Enabled           bool   `env:"AMERLINK_CHANNELS_QQ_ENABLED"            json:"enabled"`
	WSUrl             string `env:"AMERLINK_CHANNELS_QQ_WS_URL"             json:"ws_url"`
	AccessToken       string `env:"AMERLINK_CHANNELS_QQ_ACCESS_TOKEN"       json:"access_token"`
	ReconnectInterval int    `env:"AMERLINK_CHANNELS_QQ_RECONNECT_INTERVAL" json:"reconnect_interval"`
}

// YunhuConfig connects the Yunhu bot API (outbound) and webhook (inbound).
type YunhuConfig struct {
	Enabled     bool   `env:"AMERLINK_CHANNELS_YUNHU_ENABLED"      json:"enabled"`
	Token       string `env:"AMERLINK_CHANNELS_YUNHU_TOKEN"        json:"token"`
	APIBase     string `env:"AMERLINK_CHANNELS_YUNHU_API_BASE"     json:"api_base"`
	WebhookPath string `env:"AMERLINK_CHANNELS_YUNHU_WEBHOOK_PATH" json:"webhook_path"`
}

// MinecraftConfig accepts server-hook websocket connections from game
// servers on the gateway listener.
type MinecraftConfig struct {
	Enabled bool   `env:"AMERLINK_CHANNELS_MC_ENABLED" json:"enabled"`
	WSPath  string `env:"AMERLINK_CHANNELS_MC_WS_PATH" json:"ws_path"`
}

type ModerationConfig struct {
	FrequencyThreshold  int                 `env:"AMERLINK_MODERATION_FREQUENCY_THRESHOLD"  json:"frequency_threshold"`
	FrequencyWindowSecs int                 `env:"AMERLINK_MODERATION_FREQUENCY_WINDOW"     json:"frequency_window_seconds"`
	RepetitionThreshold int                 `env:"AMERLINK_MODERATION_REPETITION_THRESHOLD" json:"repetition_threshold"`
	MaskSymbol          string              `env:"AMERLINK_MODERATION_MASK_SYMBOL"          json:"mask_symbol"`
	ReportThreshold     int                 `env:"AMERLINK_MODERATION_REPORT_THRESHOLD"     json:"report_threshold"`
	ReportBanSeconds    int                 `env:"AMERLINK_MODERATION_REPORT_BAN_SECONDS"   json:"report_ban_seconds"`
	BlockedWords        map[string][]string `json:"blocked_words"`
}

type StorageConfig struct {
	SQLitePath string `env:"AMERLINK_STORAGE_SQLITE_PATH" json:"sqlite_path"`
}

// RetentionConfig schedules the message-log eviction sweep. Schedule is a
// standard five-field cron expression.
type RetentionConfig struct {
	Enabled    bool   `env:"AMERLINK_RETENTION_ENABLED"      json:"enabled"`
	Schedule   string `env:"AMERLINK_RETENTION_SCHEDULE"     json:"schedule"`
	MaxAgeDays int    `env:"AMERLINK_RETENTION_MAX_AGE_DAYS" json:"max_age_days"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5888,
		},
		Channels: ChannelsConfig{
			QQ: OneBotConfig{
				ReconnectInterval: 5,
			},
			Yunhu: YunhuConfig{
				APIBase:     "https://chat-go.jwzhd.com",
				WebhookPath: "/yh/webhook",
			},
			Minecraft: MinecraftConfig{
				WSPath: "/mc/ws",
			},
		},
		Moderation: ModerationConfig{
			FrequencyThreshold:  15,
			FrequencyWindowSecs: 30,
			RepetitionThreshold: 10,
			MaskSymbol:          "*",
			ReportThreshold:     3,
			ReportBanSeconds:    600,
			BlockedWords: map[string][]string{
				"abuse":    {"moron", "dumbass", "loser"},
				"ads":      {"limited offer", "click here", "free coins"},
				"gambling": {"casino", "jackpot", "place your bets"},
			},
		},
		Storage: StorageConfig{
			SQLitePath: "amerlink.db",
		},
		Retention: RetentionConfig{
			Enabled:    true,
			Schedule:   "0 4 * * *",
			MaxAgeDays: 7,
		},
	}
}

// LoadConfig reads the JSON config at path, then applies AMERLINK_* env
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
