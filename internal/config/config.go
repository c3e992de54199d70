package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "MESHCALL"

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	MeetingLinkBase    string        `mapstructure:"meeting_link_base"`
	BackpressurePolicy string        `mapstructure:"backpressure_policy"`
	JoinRateLimit      int           `mapstructure:"join_rate_limit"`
	JoinRateInterval   time.Duration `mapstructure:"join_rate_interval"`
}

// PeerConfig drives the headless participant.
type PeerConfig struct {
	Server   string   `mapstructure:"server"`
	Room     string   `mapstructure:"room"`
	STUN     []string `mapstructure:"stun"`
	AutoCall bool     `mapstructure:"auto_call"`
	Audio    bool     `mapstructure:"audio"`
	Video    bool     `mapstructure:"video"`
	LogLevel string   `mapstructure:"log_level"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func configFile(name string) string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/%s.%s.yaml", name, env)
}

func readFile(v *viper.Viper, fileName string) {
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
		return
	}
	log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
}

func SetServerDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("meeting_link_base", "http://localhost:5000/join/")
	v.SetDefault("backpressure_policy", "drop")
	v.SetDefault("join_rate_limit", 5)
	v.SetDefault("join_rate_interval", "10s")
}

func SetPeerDefaults(v *viper.Viper) {
	v.SetDefault("server", "ws://localhost:5000/ws")
	v.SetDefault("room", "lobby")
	v.SetDefault("stun", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("auto_call", true)
	v.SetDefault("audio", true)
	v.SetDefault("video", false)
	v.SetDefault("log_level", "info")
}

// Load reads config/config.<CONFIG_ENV>.yaml with MESHCALL_ environment overrides.
func Load() (*Config, error) {
	v := newViper()
	SetServerDefaults(v)
	readFile(v, configFile("config"))
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("server config")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	switch c.BackpressurePolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("unknown backpressure_policy %q", c.BackpressurePolicy)
	}
	return nil
}

// NewPeerViper returns a viper preloaded with peer defaults and the optional
// config/peer.<CONFIG_ENV>.yaml; callers bind their flags on top.
func NewPeerViper() *viper.Viper {
	v := newViper()
	SetPeerDefaults(v)
	return v
}

func LoadPeer(v *viper.Viper) (*PeerConfig, error) {
	readFile(v, configFile("peer"))
	var cfg PeerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse peer config: %w", err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("server url is required")
	}
	if cfg.Room == "" {
		return nil, fmt.Errorf("room is required")
	}
	return &cfg, nil
}

// ParseLevel maps a config level onto zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
