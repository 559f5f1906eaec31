package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tantawi65/khofogame/internal/game"
)

// Config is the process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Health    HealthConfig    `mapstructure:"health"`
}

// WebSocketConfig configures the player transport.
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	SendQueue       int           `mapstructure:"send_queue"`
}

// HealthConfig configures the gRPC health endpoint.
type HealthConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the match timings.
type GameConfig struct {
	ReactionWindow      time.Duration `mapstructure:"reaction_window"`
	ArrangeTimeout      time.Duration `mapstructure:"arrange_timeout"`
	FollowUpTimeout     time.Duration `mapstructure:"follow_up_timeout"`
	ChooseMummyPosition bool          `mapstructure:"choose_mummy_position"`
	// ReplayDir receives one replay file per finished match. Empty disables
	// recording.
	ReplayDir string `mapstructure:"replay_dir"`
}

// DatabaseConfig configures match result history. An empty URL disables it.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// Load reads path, if it exists, then KHOFO_ prefixed environment
// variables. A missing file is not an error; defaults cover every key.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("KHOFO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.send_queue", 64)
	v.SetDefault("server.health.address", ":9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	defaults := game.DefaultOptions()
	v.SetDefault("game.reaction_window", defaults.ReactionWindow)
	v.SetDefault("game.arrange_timeout", defaults.ArrangeTimeout)
	v.SetDefault("game.follow_up_timeout", defaults.FollowUpTimeout)
	v.SetDefault("game.choose_mummy_position", defaults.ChooseMummyPosition)
	v.SetDefault("game.replay_dir", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 5*time.Second)
}

// Validate rejects settings no match can run with.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"game.reaction_window":   c.Game.ReactionWindow,
		"game.arrange_timeout":   c.Game.ArrangeTimeout,
		"game.follow_up_timeout": c.Game.FollowUpTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Server.WebSocket.Address == "" {
		return fmt.Errorf("server.websocket.address is required")
	}
	if !strings.HasPrefix(c.Server.WebSocket.Path, "/") {
		return fmt.Errorf("server.websocket.path must start with /, got %q", c.Server.WebSocket.Path)
	}
	if c.Server.WebSocket.SendQueue <= 0 {
		return fmt.Errorf("server.websocket.send_queue must be positive")
	}
	if c.Server.WebSocket.PingInterval <= 0 || c.Server.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("server.websocket ping_interval and write_timeout must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Database.Enabled() && c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be positive")
	}
	return nil
}

// GameOptions converts the game section into match options.
func (c *Config) GameOptions() game.Options {
	return game.Options{
		ReactionWindow:      c.Game.ReactionWindow,
		ArrangeTimeout:      c.Game.ArrangeTimeout,
		FollowUpTimeout:     c.Game.FollowUpTimeout,
		ChooseMummyPosition: c.Game.ChooseMummyPosition,
	}
}
