package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"zonewatch/internal/model"
)

type SourceConfig struct {
	// Input is a camera index ("0") or a path to a video file.
	Input string  `yaml:"input" env:"SOURCE"`
	FPS   float64 `yaml:"fps" env:"SOURCE_FPS"` // used when the stream reports none
}

type DetectorConfig struct {
	ModelPath      string  `yaml:"model_path" env:"MODEL_PATH"`
	ConfigPath     string  `yaml:"config_path" env:"MODEL_CONFIG_PATH"`
	ClassesPath    string  `yaml:"classes_path" env:"CLASSES_PATH"`
	Endpoint       string  `yaml:"endpoint" env:"DETECTION_ENDPOINT"`
	ScoreThreshold float64 `yaml:"score_threshold" env:"DETECTION_SCORE_THRESHOLD"`
	NMSThreshold   float64 `yaml:"nms_threshold" env:"DETECTION_NMS_THRESHOLD"`
}

type AlertingConfig struct {
	ROIEnabled          bool          `yaml:"roi_enabled" env:"ROI_ENABLED"`
	WatchedClasses      []string      `yaml:"watched_classes" env:"ALERT_OBJECTS" envSeparator:","`
	ConfidenceThreshold float64       `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	Cooldown            time.Duration `yaml:"cooldown" env:"ALERT_COOLDOWN"`
	PreEvent            time.Duration `yaml:"pre_event" env:"PRE_EVENT"`
	PostEvent           time.Duration `yaml:"post_event" env:"POST_EVENT"`
	LogOutsideZones     bool          `yaml:"log_outside_zones" env:"LOG_OUTSIDE_ZONES"`
	AnnotateClips       bool          `yaml:"annotate_clips" env:"ANNOTATE_CLIPS"`
}

type EmailConfig struct {
	Enabled   bool   `yaml:"enabled" env:"EMAIL_ENABLED"`
	Host      string `yaml:"host" env:"SMTP_HOST"`
	Port      int    `yaml:"port" env:"SMTP_PORT"`
	Sender    string `yaml:"sender" env:"EMAIL_SENDER"`
	Password  string `yaml:"password" env:"EMAIL_PASSWORD"`
	Recipient string `yaml:"recipient" env:"EMAIL_RECEIVER"`
}

type OutputConfig struct {
	ClipsDir    string `yaml:"clips_dir" env:"CLIPS_DIR"`
	LogsDir     string `yaml:"logs_dir" env:"EVENT_LOG_DIR"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string `yaml:"postgres_dsn" env:"DATABASE_DSN"`
}

type WorkersConfig struct {
	Count           int           `yaml:"count" env:"WORKERS"`
	QueueSize       int           `yaml:"queue_size" env:"WORKER_QUEUE_SIZE"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type HTTPConfig struct {
	Addr  string `yaml:"addr" env:"HTTP_ADDR"`
	Token string `yaml:"token" env:"HTTP_TOKEN"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_ALERT_TOPIC"`
}

type NATSConfig struct {
	URL     string `yaml:"url" env:"NATS_URL"`
	Subject string `yaml:"subject" env:"NATS_ALERT_SUBJECT"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
	Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
}

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Detector DetectorConfig `yaml:"detector"`
	Zones    []model.Zone   `yaml:"zones"`
	Alerting AlertingConfig `yaml:"alerting"`
	Email    EmailConfig    `yaml:"email"`
	Output   OutputConfig   `yaml:"output"`
	Workers  WorkersConfig  `yaml:"workers"`
	HTTP     HTTPConfig     `yaml:"http"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	NATS     NATSConfig     `yaml:"nats"`
	Minio    MinioConfig    `yaml:"minio"`

	LogDirectory string `yaml:"log_directory" env:"LOG_DIR"`
	Debug        bool   `yaml:"debug" env:"DEBUG"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Input: "0",
			FPS:   20,
		},
		Detector: DetectorConfig{
			ModelPath:      filepath.Join(".", "models", "yolov3.weights"),
			ConfigPath:     filepath.Join(".", "models", "yolov3.cfg"),
			ClassesPath:    filepath.Join(".", "models", "coco.names"),
			ScoreThreshold: 0.5,
			NMSThreshold:   0.4,
		},
		Zones: []model.Zone{
			{Name: "Test Zone", X: 400, Y: 100, Width: 250, Height: 350, Color: "#00ff00"},
		},
		Alerting: AlertingConfig{
			WatchedClasses:      []string{"person", "car", "truck"},
			ConfidenceThreshold: 0.5,
			Cooldown:            300 * time.Second,
			PreEvent:            5 * time.Second,
			PostEvent:           10 * time.Second,
			LogOutsideZones:     true,
		},
		Email: EmailConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Output: OutputConfig{
			ClipsDir:   filepath.Join(".", "outputs", "clips"),
			LogsDir:    filepath.Join(".", "outputs", "logs"),
			SQLitePath: filepath.Join(".", "outputs", "events.db"),
		},
		Workers: WorkersConfig{
			Count:           3,
			QueueSize:       100,
			ShutdownTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Kafka: KafkaConfig{
			Topic: "zonewatch.alerts",
		},
		NATS: NATSConfig{
			Subject: "zonewatch.alerts",
		},
		Minio: MinioConfig{
			Bucket: "zonewatch-clips",
		},
		LogDirectory: filepath.Join(".", "logs"),
	}
}

// Load builds the configuration from defaults, a .env file, the YAML file at
// path (optional) and finally the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("ZONEWATCH_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.Alerting.WatchedClasses = normalizeClasses(cfg.Alerting.WatchedClasses)
	return cfg, nil
}

// SetWatchedClasses replaces the watched set from a comma separated list.
func (c *Config) SetWatchedClasses(list string) {
	c.Alerting.WatchedClasses = normalizeClasses(strings.Split(list, ","))
}

func normalizeClasses(classes []string) []string {
	trimmed := lo.Map(classes, func(c string, _ int) string {
		return strings.ToLower(strings.TrimSpace(c))
	})
	return lo.Uniq(lo.Compact(trimmed))
}

// Validate rejects configurations that would leave alerting undefined.
func (c *Config) Validate() error {
	if c.Source.Input == "" {
		return &model.ConfigurationError{Field: "source.input", Reason: "must not be empty"}
	}
	if c.Source.FPS <= 0 {
		return &model.ConfigurationError{Field: "source.fps", Reason: "must be positive"}
	}

	seen := make(map[string]bool, len(c.Zones))
	for i, z := range c.Zones {
		field := fmt.Sprintf("zones[%d]", i)
		if strings.TrimSpace(z.Name) == "" {
			return &model.ConfigurationError{Field: field + ".name", Reason: "must not be empty"}
		}
		if seen[z.Name] {
			return &model.ConfigurationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate zone %q", z.Name)}
		}
		seen[z.Name] = true
		if z.Width <= 0 || z.Height <= 0 {
			return &model.ConfigurationError{Field: field, Reason: "width and height must be positive"}
		}
		if _, _, _, err := z.RGB(); err != nil {
			return &model.ConfigurationError{Field: field + ".color", Reason: err.Error()}
		}
	}

	a := c.Alerting
	if a.ROIEnabled && len(c.Zones) == 0 {
		return &model.ConfigurationError{Field: "zones", Reason: "roi monitoring needs at least one zone"}
	}
	if len(a.WatchedClasses) == 0 {
		return &model.ConfigurationError{Field: "alerting.watched_classes", Reason: "must not be empty"}
	}
	if a.ConfidenceThreshold < 0 || a.ConfidenceThreshold > 1 {
		return &model.ConfigurationError{Field: "alerting.confidence_threshold", Reason: "must be within [0,1]"}
	}
	if a.Cooldown < 0 {
		return &model.ConfigurationError{Field: "alerting.cooldown", Reason: "must not be negative"}
	}
	if a.PreEvent <= 0 || a.PostEvent <= 0 {
		return &model.ConfigurationError{Field: "alerting.pre_event/post_event", Reason: "must be positive"}
	}

	if c.Email.Enabled {
		switch {
		case c.Email.Host == "" || c.Email.Port <= 0:
			return &model.ConfigurationError{Field: "email.host", Reason: "smtp host and port are required"}
		case c.Email.Sender == "":
			return &model.ConfigurationError{Field: "email.sender", Reason: "must not be empty"}
		case c.Email.Recipient == "":
			return &model.ConfigurationError{Field: "email.recipient", Reason: "must not be empty"}
		}
	}

	if c.Output.ClipsDir == "" || c.Output.LogsDir == "" {
		return &model.ConfigurationError{Field: "output", Reason: "clips_dir and logs_dir are required"}
	}
	if c.Workers.Count < 1 || c.Workers.QueueSize < 1 {
		return &model.ConfigurationError{Field: "workers", Reason: "count and queue_size must be at least 1"}
	}
	if c.Workers.ShutdownTimeout <= 0 {
		return &model.ConfigurationError{Field: "workers.shutdown_timeout", Reason: "must be positive"}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return &model.ConfigurationError{Field: "kafka.topic", Reason: "required when brokers are set"}
	}
	if c.Minio.Endpoint != "" && c.Minio.Bucket == "" {
		return &model.ConfigurationError{Field: "minio.bucket", Reason: "required when endpoint is set"}
	}
	return nil
}

// IsWatched reports whether class is in the watched set.
func (c *Config) IsWatched(class string) bool {
	return lo.Contains(c.Alerting.WatchedClasses, strings.ToLower(class))
}
