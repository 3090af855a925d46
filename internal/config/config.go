package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vango-dev/flix/pkg/server"
	"github.com/vango-dev/flix/pkg/widget"
)

const (
	// ConfigName is the configuration file name without extension.
	ConfigName = "flix"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "FLIX"

	// EnvFile is the dotenv file loaded from the config directory.
	EnvFile = ".env"
)

// Config is the complete flix configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Builder BuilderConfig `mapstructure:"builder"`
	Archive ArchiveConfig `mapstructure:"archive"`

	// file is the config file that was read, if any.
	file string
}

// ServerConfig configures `flix serve`.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	HistorySize     int           `mapstructure:"history_size"`
	SendQueue       int           `mapstructure:"send_queue"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is text or json.
	Format string `mapstructure:"format"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// BuilderConfig configures every builder.
type BuilderConfig struct {
	QueueSize int             `mapstructure:"queue_size"`
	Animation AnimationConfig `mapstructure:"animation"`
}

// AnimationConfig names the animation of each batch phase.
type AnimationConfig struct {
	Insert string `mapstructure:"insert"`
	Reload string `mapstructure:"reload"`
	Delete string `mapstructure:"delete"`
}

// ArchiveConfig configures snapshot recording.
type ArchiveConfig struct {
	// URL is a directory, file:// or s3:// URL. Empty disables recording.
	URL      string `mapstructure:"url"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	d := server.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            d.Addr,
			WriteTimeout:    d.WriteTimeout,
			PongTimeout:     d.PongTimeout,
			MaxMessageSize:  d.MaxMessageSize,
			HistorySize:     d.HistorySize,
			SendQueue:       d.SendQueue,
			ShutdownTimeout: d.ShutdownTimeout,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "flix",
		},
		Builder: BuilderConfig{
			QueueSize: 64,
			Animation: AnimationConfig{
				Insert: widget.DefaultAnimation.Insert.String(),
				Reload: widget.DefaultAnimation.Reload.String(),
				Delete: widget.DefaultAnimation.Delete.String(),
			},
		},
		Archive: ArchiveConfig{Region: "us-east-1"},
	}
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	dir     string
	file    string
	envFile string
}

// WithDir searches dir for flix.yaml and .env.
func WithDir(dir string) Option {
	return func(l *loader) { l.dir = dir }
}

// WithFile reads an explicit config file. The file must exist.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithEnvFile loads an explicit dotenv file instead of <dir>/.env.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// Load reads the configuration. A missing flix.yaml or .env is not an error;
// a malformed one is.
func Load(opts ...Option) (*Config, error) {
	l := loader{dir: "."}
	for _, opt := range opts {
		opt(&l)
	}

	envFile := l.envFile
	if envFile == "" {
		envFile = filepath.Join(l.dir, EnvFile)
	}
	if _, err := os.Stat(envFile); err == nil {
		// Variables already set in the process environment win.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else if l.envFile != "" {
		return nil, fmt.Errorf("config: %w", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(l.dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.file = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override keys
// absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.pong_timeout", d.Server.PongTimeout)
	v.SetDefault("server.max_message_size", d.Server.MaxMessageSize)
	v.SetDefault("server.history_size", d.Server.HistorySize)
	v.SetDefault("server.send_queue", d.Server.SendQueue)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("builder.queue_size", d.Builder.QueueSize)
	v.SetDefault("builder.animation.insert", d.Builder.Animation.Insert)
	v.SetDefault("builder.animation.reload", d.Builder.Animation.Reload)
	v.SetDefault("builder.animation.delete", d.Builder.Animation.Delete)
	v.SetDefault("archive.url", d.Archive.URL)
	v.SetDefault("archive.region", d.Archive.Region)
	v.SetDefault("archive.endpoint", d.Archive.Endpoint)
}

// File returns the config file that was read, or "" when none was found.
func (c *Config) File() string {
	return c.file
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", c.Log.Format))
	}
	if _, err := c.Animation(); err != nil {
		errs = append(errs, err)
	}
	if c.Builder.QueueSize < 0 {
		errs = append(errs, errors.New("config: builder.queue_size must not be negative"))
	}
	if err := c.ServerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Archive.URL != "" {
		u, err := url.Parse(c.Archive.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: archive.url: %w", err))
		} else if u.Scheme != "" && u.Scheme != "file" && u.Scheme != "s3" {
			errs = append(errs, fmt.Errorf("config: archive.url scheme %q must be file or s3", u.Scheme))
		}
	}
	return errors.Join(errs...)
}

// ServerConfig converts the server section.
func (c *Config) ServerConfig() *server.Config {
	return &server.Config{
		Addr:            c.Server.Addr,
		WriteTimeout:    c.Server.WriteTimeout,
		PongTimeout:     c.Server.PongTimeout,
		MaxMessageSize:  c.Server.MaxMessageSize,
		HistorySize:     c.Server.HistorySize,
		SendQueue:       c.Server.SendQueue,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// Animation parses the builder animation names.
func (c *Config) Animation() (widget.AnimationConfig, error) {
	var out widget.AnimationConfig
	var err error
	if out.Insert, err = widget.ParseAnimation(c.Builder.Animation.Insert); err != nil {
		return out, fmt.Errorf("config: builder.animation.insert: %w", err)
	}
	if out.Reload, err = widget.ParseAnimation(c.Builder.Animation.Reload); err != nil {
		return out, fmt.Errorf("config: builder.animation.reload: %w", err)
	}
	if out.Delete, err = widget.ParseAnimation(c.Builder.Animation.Delete); err != nil {
		return out, fmt.Errorf("config: builder.animation.delete: %w", err)
	}
	return out, nil
}

// Logger builds a slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level %q: %w", s, err)
	}
	return level, nil
}
