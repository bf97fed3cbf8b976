// Package config loads camrelay settings from defaults, an optional YAML
// file and CAMRELAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Camera backends.
const (
	BackendGoCV = "gocv"
	BackendV4L2 = "v4l2"
	BackendMock = "mock"
)

// EnvPrefix is prepended to every environment override, e.g.
// CAMRELAY_CAMERA_WIDTH.
const EnvPrefix = "CAMRELAY"

type CameraConfig struct {
	Device   string `mapstructure:"device"`
	Backend  string `mapstructure:"backend"`
	Encoding string `mapstructure:"encoding"`
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	FPS      int    `mapstructure:"fps"`
}

type EngineConfig struct {
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
	EmitInterval    time.Duration `mapstructure:"emit_interval"`
	TeardownTimeout time.Duration `mapstructure:"teardown_timeout"`
}

type DeliveryConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig enables the image file sink when Path is set.
type SnapshotConfig struct {
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full process configuration.
type Config struct {
	Camera   CameraConfig   `mapstructure:"camera"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// DataDir is where the run database lives by default.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "camrelay")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.device", "0")
	v.SetDefault("camera.backend", BackendGoCV)
	v.SetDefault("camera.encoding", "mjpeg")
	v.SetDefault("camera.width", 1024)
	v.SetDefault("camera.height", 1280)
	v.SetDefault("camera.fps", 30)

	v.SetDefault("engine.heartbeat", 500*time.Millisecond)
	v.SetDefault("engine.emit_interval", 30*time.Millisecond)
	v.SetDefault("engine.teardown_timeout", 2*time.Second)

	v.SetDefault("delivery.queue_size", 8)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("store.path", filepath.Join(DataDir(), "camrelay.db"))

	v.SetDefault("snapshot.path", "")
	v.SetDefault("snapshot.interval", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. When file is empty, config.yaml is looked up in
// the working directory, $XDG_CONFIG_HOME/camrelay and /etc/camrelay, and a
// missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, "camrelay"))
		v.AddConfigPath("/etc/camrelay")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Camera.Backend {
	case BackendGoCV, BackendV4L2, BackendMock:
	default:
		return fmt.Errorf("camera.backend: unknown backend %q (want %s, %s or %s)",
			c.Camera.Backend, BackendGoCV, BackendV4L2, BackendMock)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera: invalid resolution %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Engine.Heartbeat <= 0 || c.Engine.EmitInterval <= 0 || c.Engine.TeardownTimeout <= 0 {
		return errors.New("engine: intervals must be positive")
	}
	if c.Delivery.QueueSize <= 0 {
		return fmt.Errorf("delivery.queue_size: must be positive, got %d", c.Delivery.QueueSize)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}
