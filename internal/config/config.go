// Package config loads the formfill configuration from command line
// flags and FORMFILL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeFill  = "fill"
	ModeServe = "serve"

	// Default values
	DefaultLogLevel = "info"
	DefaultLanguage = "eng"
)

// Config holds all configuration for the formfill tool.
type Config struct {
	// Mode is "fill" for a one-shot run or "serve" for the MCP stdio
	// server.
	Mode string

	// Fill-mode inputs
	ImagePath    string
	TemplatePath string
	OutputPath   string
	DataPath     string

	// TemplatesDir points at a library of calibrated templates. When
	// set, automatic template matching is attempted before the explicit
	// template path.
	TemplatesDir string

	// Languages holds OCR language hints.
	Languages []string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	Debug      bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeFill,
		Languages:  []string{DefaultLanguage},
		Version:    "1.0.0",
		ServerName: "formfill",
		LogLevel:   DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths so diagnostics always show where the tool looked.
	cfg.ImagePath = expandPath(cfg.ImagePath)
	cfg.TemplatePath = expandPath(cfg.TemplatePath)
	cfg.OutputPath = expandPath(cfg.OutputPath)
	cfg.DataPath = expandPath(cfg.DataPath)
	cfg.TemplatesDir = expandPath(cfg.TemplatesDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("FORMFILL")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("image", cfg.ImagePath)
	viper.SetDefault("template", cfg.TemplatePath)
	viper.SetDefault("output", cfg.OutputPath)
	viper.SetDefault("data", cfg.DataPath)
	viper.SetDefault("templatesdir", cfg.TemplatesDir)
	viper.SetDefault("lang", cfg.Languages)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("debug", cfg.Debug)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'fill' for a one-shot run, 'serve' for the MCP stdio server")
	pflag.String("image", cfg.ImagePath, "Path to input form image")
	pflag.String("template", cfg.TemplatePath, "Path to template file (JSON or YAML)")
	pflag.String("output", cfg.OutputPath, "Path for output filled form (PNG, JPEG, or PDF)")
	pflag.String("data", cfg.DataPath, "Path to file with data overrides")
	pflag.String("templatesdir", cfg.TemplatesDir, "Template library directory enabling automatic matching")
	pflag.StringSlice("lang", cfg.Languages, "OCR language hints")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Bool("debug", cfg.Debug, "Enable debug mode for OCR processing")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("image", pflag.Lookup("image"))
	_ = viper.BindPFlag("template", pflag.Lookup("template"))
	_ = viper.BindPFlag("output", pflag.Lookup("output"))
	_ = viper.BindPFlag("data", pflag.Lookup("data"))
	_ = viper.BindPFlag("templatesdir", pflag.Lookup("templatesdir"))
	_ = viper.BindPFlag("lang", pflag.Lookup("lang"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("debug", pflag.Lookup("debug"))
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nformfill - Extract data from scanned forms and fill them automatically\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --image form.png --template form.json --output filled.png\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --image form.png --template form.json --output filled.pdf --data values.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --image form.png --template form.json --output filled.png --templatesdir ./library\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=serve --templatesdir ./library\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_MODE          Run mode\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_IMAGE         Input form image path\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_TEMPLATE      Template file path\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_OUTPUT        Output path\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_DATA          Override data file path\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_TEMPLATESDIR  Template library directory\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_LANG          OCR language hints\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_DEBUG         Debug mode\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.ImagePath = viper.GetString("image")
	cfg.TemplatePath = viper.GetString("template")
	cfg.OutputPath = viper.GetString("output")
	cfg.DataPath = viper.GetString("data")
	cfg.TemplatesDir = viper.GetString("templatesdir")
	cfg.Languages = viper.GetStringSlice("lang")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.Debug = viper.GetBool("debug")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if expanded, err := filepath.Abs(path); err == nil {
		return expanded
	}
	return path
}

// Validate checks if the configuration is valid. Existence of the input
// files is not checked here; that is the pipeline's first stage.
func (c *Config) Validate() error {
	if c.Mode != ModeFill && c.Mode != ModeServe {
		return errors.New("mode must be either 'fill' or 'serve'")
	}

	if c.Mode == ModeFill {
		var missing []string
		if c.ImagePath == "" {
			missing = append(missing, "--image")
		}
		if c.TemplatePath == "" {
			missing = append(missing, "--template")
		}
		if c.OutputPath == "" {
			missing = append(missing, "--output")
		}
		if len(missing) > 0 {
			return fmt.Errorf("required flags not set: %s", strings.Join(missing, ", "))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug diagnostics are enabled.
func (c *Config) IsDebug() bool {
	return c.Debug || c.LogLevel == "debug"
}

// IsServeMode returns true if the tool runs as an MCP stdio server.
func (c *Config) IsServeMode() bool {
	return c.Mode == ModeServe
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Image: %s, Template: %s, Output: %s, Data: %s, TemplatesDir: %s, LogLevel: %s, Debug: %t}",
		c.Mode, c.ImagePath, c.TemplatePath, c.OutputPath, c.DataPath, c.TemplatesDir, c.LogLevel, c.Debug)
}
