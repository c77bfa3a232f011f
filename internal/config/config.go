package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RegistrySourceCSV      = "csv"
	RegistrySourceDatabase = "database"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Registry RegistryConfig `mapstructure:"registry"`
	Detector DetectorConfig `mapstructure:"detector"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Output   OutputConfig   `mapstructure:"output"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Events   EventsConfig   `mapstructure:"events"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type HTTPConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RegistryConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

type DetectorConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Confidence float64       `mapstructure:"confidence"`
}

type OCRConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Language string `mapstructure:"language"`
}

type OutputConfig struct {
	Dir        string `mapstructure:"dir"`
	CSVPath    string `mapstructure:"csv_path"`
	SaveFrames bool   `mapstructure:"save_frames"`
}

type AlertConfig struct {
	Bell     bool          `mapstructure:"bell"`
	TonePath string        `mapstructure:"tone_path"`
	Player   string        `mapstructure:"player"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type EventsConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

func (c *Config) DatabaseEnabled() bool {
	return c.Database.DSN != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("registry.source", RegistrySourceCSV)
	v.SetDefault("registry.path", "license_plate_db.csv")
	v.SetDefault("detector.url", "http://localhost:9000/detect")
	v.SetDefault("detector.timeout", 30*time.Second)
	v.SetDefault("detector.confidence", 0.25)
	v.SetDefault("ocr.enabled", false)
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv_path", "license_plate_detections.csv")
	v.SetDefault("output.save_frames", true)
	v.SetDefault("alert.bell", true)
	v.SetDefault("alert.tone_path", "")
	v.SetDefault("alert.player", "")
	v.SetDefault("alert.cooldown", time.Minute)
	v.SetDefault("alert.mqtt.broker", "")
	v.SetDefault("alert.mqtt.topic", "platewatch/alerts")
	v.SetDefault("alert.mqtt.client_id", "platewatch")
	v.SetDefault("alert.mqtt.username", "")
	v.SetDefault("alert.mqtt.password", "")
	v.SetDefault("events.retention_days", 30)
}

// Load reads defaults, then the optional YAML file at path, then
// PLATEWATCH_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PLATEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Detector.URL) == "" {
		errs = append(errs, errors.New("detector.url is required"))
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		errs = append(errs, fmt.Errorf("detector.confidence must be within [0,1], got %v", c.Detector.Confidence))
	}
	switch c.Registry.Source {
	case RegistrySourceCSV:
		if c.Registry.Path == "" {
			errs = append(errs, errors.New("registry.path is required for csv source"))
		}
	case RegistrySourceDatabase:
		if !c.DatabaseEnabled() {
			errs = append(errs, errors.New("database.dsn is required for database registry source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry.source %q", c.Registry.Source))
	}
	if c.Alert.MQTT.Broker != "" && c.Alert.MQTT.Topic == "" {
		errs = append(errs, errors.New("alert.mqtt.topic is required when a broker is set"))
	}
	return errors.Join(errs...)
}
