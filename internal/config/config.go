// internal/config/config.go
package config

import (
	"runtime"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Schedule ScheduleConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	URL      string
}

type AppConfig struct {
	Name      string
	Env       string
	LogLevel  string
	LogFormat string
}

type CacheConfig struct {
	Enabled           bool
	RedisURL          string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string
	SummaryTTLSeconds int
	PatternTTLSeconds int
}

// StorageConfig points at the S3-compatible bucket that archives job results.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// EngineConfig holds the replenishment math knobs.
type EngineConfig struct {
	SafetyStockMultiplier  float64
	DaysOfCoverPremium     int
	DaysOfCoverStandard    int
	DaysOfCoverBasic       int
	CadenceLookbackDays    int
	TriggerLookbackDays    int
	Workers                int
	ReviewMode             string
	SuggestionValidityDays int
	CostWeight             float64
	LeadTimeWeight         float64
	SLAWeight              float64
	StoreTimeoutSeconds    int
}

// ScheduleConfig sets cadence fire times. Clock times are "HH:MM" in TimeZone.
type ScheduleConfig struct {
	Enabled            bool
	TimeZone           string
	NightlyAt          string
	WeeklyDay          string
	WeeklyAt           string
	MonthlyDay         int
	MonthlyAt          string
	TriggerPollSeconds int
}

// Location resolves the schedule time zone, UTC when invalid.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil || s.TimeZone == "" {
		return time.UTC
	}
	return loc
}

// TriggerPollInterval returns the trigger polling interval.
func (s ScheduleConfig) TriggerPollInterval() time.Duration {
	if s.TriggerPollSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.TriggerPollSeconds) * time.Second
}

// ManualReview reports whether suggestions are stored for review instead of
// being batched straight into orders.
func (e EngineConfig) ManualReview() bool {
	return strings.EqualFold(strings.TrimSpace(e.ReviewMode), "manual")
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = build()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "replenishment")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("APP_NAME", "replenishment-engine")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_KEY_PREFIX", "replenishment")
	viper.SetDefault("CACHE_SUMMARY_TTL_SECONDS", 60)
	viper.SetDefault("CACHE_PATTERN_TTL_SECONDS", 86400)
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_ACCESS_KEY", "")
	viper.SetDefault("STORAGE_SECRET_KEY", "")
	viper.SetDefault("STORAGE_BUCKET", "replenishment-audit")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_PREFIX", "job-results")
	viper.SetDefault("ENGINE_SAFETY_STOCK_MULTIPLIER", 1.5)
	viper.SetDefault("ENGINE_DAYS_OF_COVER_PREMIUM", 45)
	viper.SetDefault("ENGINE_DAYS_OF_COVER_STANDARD", 30)
	viper.SetDefault("ENGINE_DAYS_OF_COVER_BASIC", 21)
	viper.SetDefault("ENGINE_CADENCE_LOOKBACK_DAYS", 90)
	viper.SetDefault("ENGINE_TRIGGER_LOOKBACK_DAYS", 30)
	viper.SetDefault("ENGINE_WORKERS", runtime.NumCPU())
	viper.SetDefault("ENGINE_REVIEW_MODE", "auto")
	viper.SetDefault("ENGINE_SUGGESTION_VALIDITY_DAYS", 7)
	viper.SetDefault("ENGINE_COST_WEIGHT", 0.5)
	viper.SetDefault("ENGINE_LEAD_TIME_WEIGHT", 0.3)
	viper.SetDefault("ENGINE_SLA_WEIGHT", 0.2)
	viper.SetDefault("ENGINE_STORE_TIMEOUT_SECONDS", 300)
	viper.SetDefault("SCHEDULE_ENABLED", true)
	viper.SetDefault("SCHEDULE_TIMEZONE", "UTC")
	viper.SetDefault("SCHEDULE_NIGHTLY_AT", "02:00")
	viper.SetDefault("SCHEDULE_WEEKLY_DAY", "sunday")
	viper.SetDefault("SCHEDULE_WEEKLY_AT", "03:00")
	viper.SetDefault("SCHEDULE_MONTHLY_DAY", 1)
	viper.SetDefault("SCHEDULE_MONTHLY_AT", "04:00")
	viper.SetDefault("SCHEDULE_TRIGGER_POLL_SECONDS", 60)
}

func build() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			URL:      viper.GetString("DATABASE_URL"),
		},
		App: AppConfig{
			Name:      viper.GetString("APP_NAME"),
			Env:       viper.GetString("APP_ENV"),
			LogLevel:  viper.GetString("LOG_LEVEL"),
			LogFormat: viper.GetString("LOG_FORMAT"),
		},
		Cache: CacheConfig{
			Enabled:           viper.GetBool("CACHE_ENABLED"),
			RedisURL:          viper.GetString("REDIS_URL"),
			RedisHost:         viper.GetString("REDIS_HOST"),
			RedisPort:         viper.GetString("REDIS_PORT"),
			RedisPassword:     viper.GetString("REDIS_PASSWORD"),
			RedisDB:           viper.GetInt("REDIS_DB"),
			KeyPrefix:         viper.GetString("CACHE_KEY_PREFIX"),
			SummaryTTLSeconds: viper.GetInt("CACHE_SUMMARY_TTL_SECONDS"),
			PatternTTLSeconds: viper.GetInt("CACHE_PATTERN_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			Prefix:    viper.GetString("STORAGE_PREFIX"),
		},
		Engine: EngineConfig{
			SafetyStockMultiplier:  viper.GetFloat64("ENGINE_SAFETY_STOCK_MULTIPLIER"),
			DaysOfCoverPremium:     viper.GetInt("ENGINE_DAYS_OF_COVER_PREMIUM"),
			DaysOfCoverStandard:    viper.GetInt("ENGINE_DAYS_OF_COVER_STANDARD"),
			DaysOfCoverBasic:       viper.GetInt("ENGINE_DAYS_OF_COVER_BASIC"),
			CadenceLookbackDays:    viper.GetInt("ENGINE_CADENCE_LOOKBACK_DAYS"),
			TriggerLookbackDays:    viper.GetInt("ENGINE_TRIGGER_LOOKBACK_DAYS"),
			Workers:                viper.GetInt("ENGINE_WORKERS"),
			ReviewMode:             viper.GetString("ENGINE_REVIEW_MODE"),
			SuggestionValidityDays: viper.GetInt("ENGINE_SUGGESTION_VALIDITY_DAYS"),
			CostWeight:             viper.GetFloat64("ENGINE_COST_WEIGHT"),
			LeadTimeWeight:         viper.GetFloat64("ENGINE_LEAD_TIME_WEIGHT"),
			SLAWeight:              viper.GetFloat64("ENGINE_SLA_WEIGHT"),
			StoreTimeoutSeconds:    viper.GetInt("ENGINE_STORE_TIMEOUT_SECONDS"),
		},
		Schedule: ScheduleConfig{
			Enabled:            viper.GetBool("SCHEDULE_ENABLED"),
			TimeZone:           viper.GetString("SCHEDULE_TIMEZONE"),
			NightlyAt:          viper.GetString("SCHEDULE_NIGHTLY_AT"),
			WeeklyDay:          viper.GetString("SCHEDULE_WEEKLY_DAY"),
			WeeklyAt:           viper.GetString("SCHEDULE_WEEKLY_AT"),
			MonthlyDay:         viper.GetInt("SCHEDULE_MONTHLY_DAY"),
			MonthlyAt:          viper.GetString("SCHEDULE_MONTHLY_AT"),
			TriggerPollSeconds: viper.GetInt("SCHEDULE_TRIGGER_POLL_SECONDS"),
		},
	}
}
