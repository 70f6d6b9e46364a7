package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	TCPAddr  string `mapstructure:"tcp_addr"`
	UDPAddr  string `mapstructure:"udp_addr"`
	HTTPAddr string `mapstructure:"http_addr"`

	DBPath   string `mapstructure:"db_path"`
	AudioDir string `mapstructure:"audio_dir"`

	MaxConnections int           `mapstructure:"max_connections"`
	ReadLimit      int           `mapstructure:"read_limit"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxVoiceNote   int64         `mapstructure:"max_voice_note"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	LoginAttempts  int           `mapstructure:"login_attempts"`
	LoginWindow    time.Duration `mapstructure:"login_window"`
	UDPBuffer      int           `mapstructure:"udp_buffer"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`

	Secret string `mapstructure:"secret"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then CHAT_*
// environment variables, then flags. Later sources win.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("chat-server", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a yaml config file")
	flags.String("tcp-addr", "", "control protocol listen address")
	flags.String("udp-addr", "", "voice relay listen address")
	flags.String("http-addr", "", "ops http listen address")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("tcp_addr", ":12345")
	v.SetDefault("udp_addr", ":12346")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_path", "./data/chat.db")
	v.SetDefault("audio_dir", "./data/audio")
	v.SetDefault("max_connections", 64)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("send_buffer", 256)
	v.SetDefault("write_timeout", "10s")
	v.SetDefault("max_voice_note", 32<<20)
	v.SetDefault("history_limit", 15)
	v.SetDefault("login_attempts", 5)
	v.SetDefault("login_window", "1m")
	v.SetDefault("udp_buffer", 2048)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("secret", "change-me")

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"tcp_addr":  "tcp-addr",
		"udp_addr":  "udp-addr",
		"http_addr": "http-addr",
		"log_level": "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Str("tcp", cfg.TCPAddr).
		Str("udp", cfg.UDPAddr).
		Str("http", cfg.HTTPAddr).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TCPAddr == "" || c.UDPAddr == "" {
		errs = append(errs, errors.New("tcp_addr and udp_addr are required"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, errors.New("max_connections must be positive"))
	}
	if c.ReadLimit < 256 {
		errs = append(errs, errors.New("read_limit must be at least 256"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.MaxVoiceNote < 0 {
		errs = append(errs, errors.New("max_voice_note must not be negative"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history_limit must be positive"))
	}
	if c.UDPBuffer < 64 {
		errs = append(errs, errors.New("udp_buffer must be at least 64"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
