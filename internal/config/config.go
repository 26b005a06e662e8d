package config

import (
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port              int     `envconfig:"PORT" default:"8080"`
	LogLevel          string  `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL       string  `envconfig:"DATABASE_URL"`
	JWTSecret         string  `envconfig:"JWT_SECRET"`
	ModelDir          string  `envconfig:"MODEL_DIR" default:"./data/models"`
	MapsDir           string  `envconfig:"MAPS_DIR" default:"./data/maps"`
	RedisAddr         string  `envconfig:"REDIS_ADDR"`
	NATSURL           string  `envconfig:"NATS_URL"`
	NATSSubjectPrefix string  `envconfig:"NATS_SUBJECT_PREFIX" default:"viz.measurements"`
	CanvasWidth       float64 `envconfig:"CANVAS_WIDTH" default:"1200"`
	CanvasHeight      float64 `envconfig:"CANVAS_HEIGHT" default:"800"`
	AllowedOrigins    string  `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	CurrentLimitsFile string  `envconfig:"CURRENT_LIMITS_FILE"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Origins splits ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginHosts strips the scheme from each origin, the form websocket origin
// patterns expect.
func (c *Config) OriginHosts() []string {
	origins := c.Origins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
