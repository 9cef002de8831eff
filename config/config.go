// Package config loads fsascan settings from YAML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/fsa"
	"github.com/gogpu/fsa/compute"
	"github.com/gogpu/fsa/textbuf"
)

// MaxFileSize is the maximum accepted configuration file size (1 MiB).
const MaxFileSize = 1024 * 1024

// Config holds every setting of a scan.
type Config struct {
	// Backend is a registered compute backend name. Empty selects the
	// highest priority registered backend.
	Backend string `yaml:"backend" validate:"omitempty,registered_backend"`

	// Platform and Device are enumeration indices.
	Platform int `yaml:"platform" validate:"gte=0"`
	Device   int `yaml:"device" validate:"gte=0"`

	// Kernel is the kernel source path. Empty uses the embedded kernel.
	Kernel     string `yaml:"kernel"`
	EntryPoint string `yaml:"entry_point" validate:"required"`

	// Workers is the CPU backend lane worker count, 0 for GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	// Jobs is the number of files scanned concurrently.
	Jobs int `yaml:"jobs" validate:"gte=1,lte=256"`

	Text TextConfig `yaml:"text"`
	Log  LogConfig  `yaml:"log"`

	// MetricsFile, when set, receives the Prometheus metrics after a scan.
	MetricsFile string `yaml:"metrics_file"`

	// Trace exports run spans to stderr.
	Trace bool `yaml:"trace"`
}

// TextConfig selects input decoding.
type TextConfig struct {
	Encoding  string `yaml:"encoding"`
	Normalize string `yaml:"normalize" validate:"omitempty,oneof=nfc nfd nfkc nfkd"`
}

// LogConfig selects log output.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("registered_backend", func(fl validator.FieldLevel) bool {
		return compute.IsRegistered(fl.Field().String())
	})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		EntryPoint: fsa.DefaultEntryPoint,
		Jobs:       4,
		Log:        LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected.
func Load(path string) (*Config, error) {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("config: %s is %d bytes (max %d)", path, info.Size(), MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// TextOptions returns the decoding options for input files.
func (c *Config) TextOptions() textbuf.Options {
	return textbuf.Options{Encoding: c.Text.Encoding, Normalize: c.Text.Normalize}
}

// EngineOptions returns the engine options for the configured indices,
// entry point and kernel path.
func (c *Config) EngineOptions(kernelPath string) []fsa.Option {
	return []fsa.Option{
		fsa.WithKernelPath(kernelPath),
		fsa.WithEntryPoint(c.EntryPoint),
		fsa.WithPlatform(c.Platform),
		fsa.WithDevice(c.Device),
	}
}

// NewLogger builds the configured slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
