package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// ChannelPreset is a channel created at startup
type ChannelPreset struct {
	Name  string `yaml:"name" toml:"name" json:"name" validate:"required,startswith=#,excludesall= 0x2C"`
	Topic string `yaml:"topic" toml:"topic" json:"topic"`
}

// Config represents the server configuration
type Config struct {
	// Server settings
	Server struct {
		Name         string `yaml:"name" toml:"name" json:"name" env:"IRCD_SERVER_NAME" validate:"required,excludesall= !@:"`
		Network      string `yaml:"network" toml:"network" json:"network" env:"IRCD_NETWORK"`
		Host         string `yaml:"host" toml:"host" json:"host" env:"IRCD_HOST"`
		Port         int    `yaml:"port" toml:"port" json:"port" env:"IRCD_PORT" validate:"gte=0,lte=65535"`
		Password     string `yaml:"password" toml:"password" json:"password" env:"IRCD_PASSWORD"`
		PasswordHash string `yaml:"password_hash" toml:"password_hash" json:"password_hash" env:"IRCD_PASSWORD_HASH"`
		ReadBuffer   int    `yaml:"read_buffer" toml:"read_buffer" json:"read_buffer" env:"IRCD_READ_BUFFER" validate:"gte=64"`
		PollTimeout  string `yaml:"poll_timeout" toml:"poll_timeout" json:"poll_timeout" env:"IRCD_POLL_TIMEOUT"`
		WriteTimeout string `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"IRCD_WRITE_TIMEOUT"`
	} `yaml:"server" toml:"server" json:"server"`

	// Logging settings
	Logging struct {
		Level  string `yaml:"level" toml:"level" json:"level" env:"IRCD_LOG_LEVEL" validate:"oneof=trace debug info warn warning error fatal panic"`
		Format string `yaml:"format" toml:"format" json:"format" env:"IRCD_LOG_FORMAT" validate:"oneof=text json"`
	} `yaml:"logging" toml:"logging" json:"logging"`

	// Channel settings
	Channels struct {
		AutoCreate bool            `yaml:"auto_create" toml:"auto_create" json:"auto_create" env:"IRCD_CHANNELS_AUTO_CREATE"`
		Preset     []ChannelPreset `yaml:"preset" toml:"preset" json:"preset" validate:"dive"`
	} `yaml:"channels" toml:"channels" json:"channels"`

	// Reply bot settings
	Bot struct {
		Enabled  bool     `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_BOT_ENABLED"`
		Nick     string   `yaml:"nick" toml:"nick" json:"nick" env:"IRCD_BOT_NICK" validate:"required_if=Enabled true,excludesall= #!@:"`
		Channels []string `yaml:"channels" toml:"channels" json:"channels" env:"IRCD_BOT_CHANNELS" validate:"dive,startswith=#"`
	} `yaml:"bot" toml:"bot" json:"bot"`

	// Flood control, zero disables
	Flood struct {
		LinesPerSecond float64 `yaml:"lines_per_second" toml:"lines_per_second" json:"lines_per_second" env:"IRCD_FLOOD_RATE" validate:"gte=0"`
		Burst          int     `yaml:"burst" toml:"burst" json:"burst" env:"IRCD_FLOOD_BURST" validate:"gte=0"`
	} `yaml:"flood" toml:"flood" json:"flood"`

	// Admin HTTP API settings
	Admin struct {
		Enabled bool     `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_ADMIN_ENABLED"`
		Host    string   `yaml:"host" toml:"host" json:"host" env:"IRCD_ADMIN_HOST"`
		Port    int      `yaml:"port" toml:"port" json:"port" env:"IRCD_ADMIN_PORT" validate:"gte=0,lte=65535"`
		Tokens  []string `yaml:"tokens" toml:"tokens" json:"tokens" env:"IRCD_ADMIN_TOKENS"`
	} `yaml:"admin" toml:"admin" json:"admin"`

	// IRC over WebSocket settings
	WebSocket struct {
		Enabled        bool     `yaml:"enabled" toml:"enabled" json:"enabled" env:"IRCD_WS_ENABLED"`
		Host           string   `yaml:"host" toml:"host" json:"host" env:"IRCD_WS_HOST"`
		Port           int      `yaml:"port" toml:"port" json:"port" env:"IRCD_WS_PORT" validate:"gte=0,lte=65535"`
		Path           string   `yaml:"path" toml:"path" json:"path" env:"IRCD_WS_PATH" validate:"startswith=/"`
		AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins" json:"allowed_origins" env:"IRCD_WS_ORIGINS"`
	} `yaml:"websocket" toml:"websocket" json:"websocket"`

	// Configuration source for reloading
	Source string `yaml:"-" toml:"-" json:"-"`
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Name = "ircserv"
	cfg.Server.Network = "ircd"
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 6667
	cfg.Server.ReadBuffer = 512
	cfg.Server.PollTimeout = "1s"
	cfg.Server.WriteTimeout = "5s"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Channels.AutoCreate = true
	cfg.Channels.Preset = []ChannelPreset{{Name: "#welcome", Topic: "Welcome channel"}}

	cfg.Bot.Enabled = true
	cfg.Bot.Nick = "BotServ"
	cfg.Bot.Channels = []string{"#welcome"}

	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 8080

	cfg.WebSocket.Host = "0.0.0.0"
	cfg.WebSocket.Port = 8067
	cfg.WebSocket.Path = "/irc"

	return cfg
}

// Load loads configuration from a file or URL. An empty source yields the
// defaults. Environment variables override either.
func Load(source string) (*Config, error) {
	cfg := Default()

	if source != "" {
		if err := cfg.loadFromSource(source); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Reload reloads the configuration from its current source or a new one
func (c *Config) Reload(newSource string) error {
	source := c.Source
	if newSource != "" {
		source = newSource
	}

	newCfg, err := Load(source)
	if err != nil {
		return err
	}

	*c = *newCfg
	return nil
}

// loadFromSource loads configuration from a file or URL
func (c *Config) loadFromSource(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %w", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// URLs may carry a query string; the extension decides the format
	path := source
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.HasSuffix(path, ".toml"):
		err = toml.Unmarshal(data, c)
	case strings.HasSuffix(path, ".json"):
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	c.Source = source
	return nil
}

// applyEnvOverrides applies IRCD_* environment variables to the configuration
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// PollInterval is how often the event loop wakes when idle
func (c *Config) PollInterval() time.Duration {
	return mustDuration(c.Server.PollTimeout, time.Second)
}

// WriteDeadline bounds one write attempt on a client connection
func (c *Config) WriteDeadline() time.Duration {
	return mustDuration(c.Server.WriteTimeout, 5*time.Second)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetListenAddress returns the formatted listen address for the server
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetAdminListenAddress returns the formatted listen address for the admin API
func (c *Config) GetAdminListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// GetWebSocketListenAddress returns the formatted listen address for IRC over WebSocket
func (c *Config) GetWebSocketListenAddress() string {
	return fmt.Sprintf("%s:%d", c.WebSocket.Host, c.WebSocket.Port)
}
