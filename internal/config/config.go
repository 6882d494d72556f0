// Package config loads voteframe settings from defaults, an optional YAML
// file and VOTEFRAME_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "VOTEFRAME"

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Render    RenderConfig    `mapstructure:"render"`
	Gesture   GestureConfig   `mapstructure:"gesture"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	// Name prefixes export file names.
	Name      string `mapstructure:"name"`
	OutputDir string `mapstructure:"output_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AssetsConfig struct {
	// Source is "dir" or "s3".
	Source  string   `mapstructure:"source"`
	Dir     string   `mapstructure:"dir"`
	Prefix  string   `mapstructure:"prefix"`
	Formats []string `mapstructure:"formats"`
}

type RenderConfig struct {
	Kernel        string `mapstructure:"kernel"`
	PreviewHeight int    `mapstructure:"preview_height"`
}

type GestureConfig struct {
	Sensitivity float64 `mapstructure:"sensitivity"`
}

type SessionConfig struct {
	ResetFrame bool `mapstructure:"reset_frame"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	Exporter     string `mapstructure:"exporter"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

type MetricsConfig struct {
	// Textfile, when set, receives the session registry in Prometheus text
	// format after each command.
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (Config, error) {
	v := New()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Parse(v)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func Parse(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Assets.Formats = splitFormats(cfg.Assets.Formats)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Assets.Source {
	case "dir":
		if strings.TrimSpace(c.Assets.Dir) == "" {
			errs = append(errs, errors.New("assets.dir is required for the dir source"))
		}
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			errs = append(errs, errors.New("storage.bucket is required for the s3 source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported assets.source %q", c.Assets.Source))
	}
	if c.Gesture.Sensitivity <= 0 {
		errs = append(errs, fmt.Errorf("gesture.sensitivity must be positive, got %v", c.Gesture.Sensitivity))
	}
	if c.Render.PreviewHeight < 0 {
		errs = append(errs, fmt.Errorf("render.preview_height must not be negative, got %d", c.Render.PreviewHeight))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vote-frame")
	v.SetDefault("app.output_dir", ".")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("assets.source", "dir")
	v.SetDefault("assets.dir", "./frames")
	v.SetDefault("assets.prefix", "frames")
	v.SetDefault("assets.formats", []string{"png", "jpeg"})

	v.SetDefault("render.kernel", "catmullrom")
	v.SetDefault("render.preview_height", 500)

	v.SetDefault("gesture.sensitivity", 0.4)

	v.SetDefault("session.reset_frame", false)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "minioadmin")
	v.SetDefault("storage.secret_key", "minioadmin")
	v.SetDefault("storage.bucket", "voteframe-assets")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("telemetry.service_name", "voteframe")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)

	v.SetDefault("metrics.textfile", "")
}

// splitFormats accepts both list values and a single comma separated string
// as produced by an environment variable.
func splitFormats(in []string) []string {
	var out []string
	for _, item := range in {
		for _, f := range strings.Split(item, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}
