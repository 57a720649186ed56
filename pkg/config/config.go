package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Demas       DemasConfig
	ETL         ETLConfig
	Backfill    BackfillConfig
	Geolocation GeolocationConfig
	KeepAlive   KeepAliveConfig
	OTEL        OTELConfig
}

// EnvDevelopment is the APP_ENV value that enables console logging and the mock geocoder
const EnvDevelopment = "development"

// AppConfig holds process-wide settings
type AppConfig struct {
	Env        string
	LogLevel   string
	Timezone   string
	AdminToken string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int

	// AllowedOrigins is a comma-separated CORS allow list; empty allows any origin
	AllowedOrigins string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// DemasConfig holds settings for the DEMAS open-data stock endpoint
type DemasConfig struct {
	BaseURL           string
	RegionCode        string
	MunicipalityCode  string
	PageSize          int
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
}

// ETLConfig holds the stock refresh job settings
type ETLConfig struct {
	Schedule          string
	ProbeDays         int
	SkipIfUpToDate    bool
	ClassifyLocations bool
}

// BackfillConfig holds the coordinate backfill job settings
type BackfillConfig struct {
	Schedule string
	PageSize int
	Pause    time.Duration
}

// GeolocationConfig holds geolocation provider configuration
type GeolocationConfig struct {
	Provider string
	APIKey   string
	Timeout  time.Duration
}

// KeepAliveConfig holds the self-ping settings. An empty URL disables the pinger.
type KeepAliveConfig struct {
	URL      string
	Interval time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:        getEnv("APP_ENV", "production"),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
			Timezone:   getEnv("SCHEDULER_TIMEZONE", "America/Sao_Paulo"),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "medstock"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Demas: DemasConfig{
			BaseURL:           getEnv("DEMAS_BASE_URL", "https://apidadosabertos.saude.gov.br"),
			RegionCode:        getEnv("DEMAS_REGION_CODE", "23"),
			MunicipalityCode:  getEnvAllowEmpty("DEMAS_MUNICIPALITY_CODE", "230240"),
			PageSize:          getEnvAsInt("DEMAS_PAGE_SIZE", 50),
			Timeout:           getEnvAsDuration("DEMAS_TIMEOUT", 30*time.Second),
			MaxAttempts:       getEnvAsInt("DEMAS_MAX_ATTEMPTS", 3),
			RequestsPerSecond: getEnvAsFloat("DEMAS_REQUESTS_PER_SECOND", 5),
		},
		ETL: ETLConfig{
			Schedule:          getEnv("ETL_SCHEDULE", "04:00"),
			ProbeDays:         getEnvAsInt("ETL_PROBE_DAYS", 30),
			SkipIfUpToDate:    getEnvAsBool("ETL_SKIP_IF_UP_TO_DATE", true),
			ClassifyLocations: getEnvAsBool("ETL_CLASSIFY_LOCATIONS", true),
		},
		Backfill: BackfillConfig{
			Schedule: getEnv("BACKFILL_SCHEDULE", "04:20"),
			PageSize: getEnvAsInt("BACKFILL_PAGE_SIZE", 100),
			Pause:    getEnvAsDuration("BACKFILL_PAUSE", 50*time.Millisecond),
		},
		Geolocation: GeolocationConfig{
			Provider: getEnv("GEOLOCATION_PROVIDER", "google"),
			APIKey:   getEnv("GEOLOCATION_API_KEY", ""),
			Timeout:  getEnvAsDuration("GEOLOCATION_TIMEOUT", 8*time.Second),
		},
		KeepAlive: KeepAliveConfig{
			URL:      getEnv("KEEPALIVE_URL", ""),
			Interval: getEnvAsDuration("KEEPALIVE_INTERVAL", 100*time.Second),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medstock-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late, inside a scheduled run
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid SCHEDULER_TIMEZONE %q: %w", c.App.Timezone, err)
	}
	if _, _, err := ParseClock(c.ETL.Schedule); err != nil {
		return fmt.Errorf("invalid ETL_SCHEDULE: %w", err)
	}
	if _, _, err := ParseClock(c.Backfill.Schedule); err != nil {
		return fmt.Errorf("invalid BACKFILL_SCHEDULE: %w", err)
	}
	if c.Demas.PageSize <= 0 {
		return fmt.Errorf("DEMAS_PAGE_SIZE must be positive, got %d", c.Demas.PageSize)
	}
	if c.Demas.MaxAttempts <= 0 {
		return fmt.Errorf("DEMAS_MAX_ATTEMPTS must be positive, got %d", c.Demas.MaxAttempts)
	}
	if c.ETL.ProbeDays <= 0 {
		return fmt.Errorf("ETL_PROBE_DAYS must be positive, got %d", c.ETL.ProbeDays)
	}
	if c.Backfill.PageSize <= 0 {
		return fmt.Errorf("BACKFILL_PAGE_SIZE must be positive, got %d", c.Backfill.PageSize)
	}
	return nil
}

// Location returns the scheduler time zone. Validate guarantees it loads.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses a wall-clock time of day in HH:MM form
func ParseClock(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty treats a variable that is set to "" as an explicit empty value
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
