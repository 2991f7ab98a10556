package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "QUIZ"

type Config struct {
	Env         string        `json:"env" mapstructure:"env"`
	Port        int           `json:"port" mapstructure:"port"`
	OutputDir   string        `json:"outputDir" mapstructure:"output_dir"`
	AssetDir    string        `json:"assetDir" mapstructure:"asset_dir"`
	LogFile     string        `json:"logFile" mapstructure:"log_file"`
	LogLevel    string        `json:"logLevel" mapstructure:"log_level"`
	LogJSON     bool          `json:"logJson" mapstructure:"log_json"`
	CORSOrigins []string      `json:"corsOrigins" mapstructure:"cors_origins"`
	DatabaseURL string        `json:"-" mapstructure:"database_url"`
	Renderer    string        `json:"renderer" mapstructure:"renderer"`
	ChromeURL   string        `json:"chromeUrl" mapstructure:"chrome_url"`
	Generation  Generation    `json:"generation" mapstructure:",squash"`
	Webhook     Webhook       `json:"webhook" mapstructure:",squash"`
	ShutdownIn  time.Duration `json:"shutdownIn" mapstructure:"shutdown_timeout"`
}

// Generation bounds the render retry loop.
type Generation struct {
	MaxRetries int           `json:"maxRetries" mapstructure:"max_generation_retries"`
	Backoff    time.Duration `json:"backoff" mapstructure:"render_backoff"`
}

// Webhook bounds result delivery. Backoff is multiplied by the attempt number.
type Webhook struct {
	Retry   int           `json:"retry" mapstructure:"webhook_retry"`
	Backoff time.Duration `json:"backoff" mapstructure:"webhook_backoff"`
	Timeout time.Duration `json:"timeout" mapstructure:"webhook_timeout"`
	Secret  string        `json:"-" mapstructure:"webhook_secret"`
}

const (
	RendererFPDF     = "fpdf"
	RendererChromedp = "chromedp"
)

func Default() Config {
	return Config{
		Env:         "dev",
		Port:        5000,
		OutputDir:   "generated",
		AssetDir:    "static/archetypes",
		LogFile:     "pdf_logs.log",
		LogLevel:    "info",
		LogJSON:     false,
		CORSOrigins: []string{"*"},
		Renderer:    RendererFPDF,
		Generation: Generation{
			MaxRetries: 3,
			Backoff:    time.Second,
		},
		Webhook: Webhook{
			Retry:   3,
			Backoff: 2 * time.Second,
			Timeout: 5 * time.Second,
		},
		ShutdownIn: 30 * time.Second,
	}
}

// EnvDefaults layers QUIZ_* environment variables over Default.
func EnvDefaults() Config {
	c, err := Load("")
	if err != nil {
		return Default()
	}
	return c
}

// Load reads an optional config file (yaml, json, toml or dotenv, by extension)
// and overlays QUIZ_* environment variables. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c.normalize(), nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("env", d.Env)
	v.SetDefault("port", d.Port)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("asset_dir", d.AssetDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_json", d.LogJSON)
	v.SetDefault("cors_origins", d.CORSOrigins)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("renderer", d.Renderer)
	v.SetDefault("chrome_url", d.ChromeURL)
	v.SetDefault("max_generation_retries", d.Generation.MaxRetries)
	v.SetDefault("render_backoff", d.Generation.Backoff)
	v.SetDefault("webhook_retry", d.Webhook.Retry)
	v.SetDefault("webhook_backoff", d.Webhook.Backoff)
	v.SetDefault("webhook_timeout", d.Webhook.Timeout)
	v.SetDefault("webhook_secret", d.Webhook.Secret)
	v.SetDefault("shutdown_timeout", d.ShutdownIn)
}

// normalize restores defaults for values that would disable a bounded loop.
func (c Config) normalize() Config {
	d := Default()
	if c.Generation.MaxRetries < 1 {
		c.Generation.MaxRetries = d.Generation.MaxRetries
	}
	if c.Webhook.Retry < 1 {
		c.Webhook.Retry = d.Webhook.Retry
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = d.Webhook.Timeout
	}
	if c.Generation.Backoff < 0 {
		c.Generation.Backoff = 0
	}
	if c.Webhook.Backoff < 0 {
		c.Webhook.Backoff = 0
	}
	switch strings.ToLower(strings.TrimSpace(c.Renderer)) {
	case RendererChromedp:
		c.Renderer = RendererChromedp
	default:
		c.Renderer = RendererFPDF
	}
	return c
}
