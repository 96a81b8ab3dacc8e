package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/timmy/transitdw/internal/domain"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	API       APIConfig       `mapstructure:"api"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Export    ExportConfig    `mapstructure:"export"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string     `mapstructure:"mode" validate:"oneof=debug release test"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects and tunes the warehouse connection.
// Driver "sqlite" uses Path; "postgres" uses the host fields.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host     string `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port     int    `mapstructure:"port" validate:"required_if=Driver postgres,max=65535"`
	Name     string `mapstructure:"name" validate:"required_if=Driver postgres"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path" validate:"required_if=Driver sqlite"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level" validate:"omitempty,oneof=silent error warn info"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`

	RetryAttempts  uint64        `mapstructure:"retry_attempts" validate:"max=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// DSN builds the driver specific connection string.
// Parameters: none.
// Returns:
//   - string: postgres keyword/value DSN or sqlite file URI.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.Name, sslmode)
	}
	if strings.Contains(c.Path, "?") {
		return c.Path
	}
	return c.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// APIConfig configures the NYC Open Data (Socrata) client.
type APIConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"omitempty,url"`
	AppToken            string        `mapstructure:"app_token"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	PageSize            int           `mapstructure:"page_size" validate:"min=1,max=50000"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	MinRecords          int           `mapstructure:"min_records" validate:"min=0"`
	FallbackToSynthetic bool          `mapstructure:"fallback_to_synthetic"`
	Datasets            DatasetConfig `mapstructure:"datasets"`
}

// DatasetConfig holds Socrata dataset identifiers.
type DatasetConfig struct {
	Stations    string `mapstructure:"stations"`
	Ridership   string `mapstructure:"ridership"`
	Hourly      string `mapstructure:"hourly"`
	Performance string `mapstructure:"performance"`
	Delays      string `mapstructure:"delays"`
}

type GeneratorConfig struct {
	TargetRecords int    `mapstructure:"target_records" validate:"min=1"`
	Stations      int    `mapstructure:"stations" validate:"min=1"`
	Seed          uint64 `mapstructure:"seed"`
	StartDate     string `mapstructure:"start_date" validate:"datetime=2006-01-02"`
	EndDate       string `mapstructure:"end_date" validate:"datetime=2006-01-02"`
	OutputDir     string `mapstructure:"output_dir"`
}

// Range parses StartDate and EndDate.
func (g GeneratorConfig) Range() (time.Time, time.Time, error) {
	return ParseRange(g.StartDate, g.EndDate)
}

type PipelineConfig struct {
	JobName         string `mapstructure:"job_name"`
	BatchSize       int    `mapstructure:"batch_size" validate:"min=1,max=100000"`
	MaxEntries      int64  `mapstructure:"max_entries" validate:"min=1"`
	MaxDelayMinutes int    `mapstructure:"max_delay_minutes" validate:"min=1"`
	PersistRejects  bool   `mapstructure:"persist_rejects"`
}

type ExportConfig struct {
	Dir     string `mapstructure:"dir" validate:"required"`
	Workers int    `mapstructure:"workers" validate:"min=1,max=32"`
}

// StorageConfig configures optional upload of exports to S3-compatible storage.
type StorageConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Type           string `mapstructure:"type" validate:"omitempty,oneof=s3 r2 minio"`
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	AccessKey      string `mapstructure:"access_key" validate:"required_if=Enabled true"`
	SecretKey      string `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	Bucket         string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Prefix         string `mapstructure:"prefix"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

type ScheduleConfig struct {
	Cron         string `mapstructure:"cron"`
	Source       string `mapstructure:"source" validate:"oneof=api synthetic"`
	LookbackDays int    `mapstructure:"lookback_days" validate:"min=1"`
}

// Load reads configuration from an optional YAML file, .env and the
// environment, then validates it.
// Parameters:
//   - configPath: explicit file path; empty searches ./configs and the working directory.
// Returns:
//   - *Config: loaded configuration.
//   - error: read, decode or ConfigurationError validation failure.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for connection and credential data
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("api.app_token", "NYC_OPEN_DATA_TOKEN")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.region", "S3_REGION")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("server.port", "PORT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mta_transit_db")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "./data/transit.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", "500ms")
	v.SetDefault("database.retry_attempts", 3)
	v.SetDefault("database.retry_base_delay", "200ms")

	v.SetDefault("api.base_url", "https://data.ny.gov/resource")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.page_size", 50000)
	v.SetDefault("api.requests_per_second", 2.0)
	v.SetDefault("api.min_records", 1000)
	v.SetDefault("api.fallback_to_synthetic", true)
	v.SetDefault("api.datasets.stations", "39hk-dx4f")
	v.SetDefault("api.datasets.ridership", "wujg-7c2s")
	v.SetDefault("api.datasets.hourly", "v3ua-egxu")
	v.SetDefault("api.datasets.performance", "y27x-cket")
	v.SetDefault("api.datasets.delays", "7kag-ynmv")

	v.SetDefault("generator.target_records", 100000)
	v.SetDefault("generator.stations", 472)
	v.SetDefault("generator.seed", 42)
	v.SetDefault("generator.start_date", "2025-01-01")
	v.SetDefault("generator.end_date", "2025-12-31")
	v.SetDefault("generator.output_dir", "./data/synthetic")

	v.SetDefault("pipeline.job_name", "mta_etl")
	v.SetDefault("pipeline.batch_size", 5000)
	v.SetDefault("pipeline.max_entries", 1000000)
	v.SetDefault("pipeline.max_delay_minutes", 1440)
	v.SetDefault("pipeline.persist_rejects", true)

	v.SetDefault("export.dir", "./data/exports")
	v.SetDefault("export.workers", 4)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.prefix", "exports")
	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("schedule.cron", "0 2 * * *")
	v.SetDefault("schedule.source", "api")
	v.SetDefault("schedule.lookback_days", 1)
}

// Validate checks struct tags and cross-field rules.
// Parameters: none.
// Returns:
//   - error: *domain.ConfigurationError naming the first invalid field, or nil.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ConfigurationError{
				Field:  strings.ToLower(fe.Namespace()),
				Reason: fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &domain.ConfigurationError{Err: err}
	}
	if _, _, err := c.Generator.Range(); err != nil {
		return err
	}
	return nil
}

// ParseRange parses an inclusive YYYY-MM-DD date range.
// Returns a ConfigurationError for malformed dates and InvalidRangeError when
// start is after end.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(domain.DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ConfigurationError{Field: "start_date", Err: err}
	}
	e, err := time.Parse(domain.DateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.ConfigurationError{Field: "end_date", Err: err}
	}
	if s.After(e) {
		return time.Time{}, time.Time{}, &domain.InvalidRangeError{Start: s, End: e}
	}
	return s, e, nil
}
