package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Aggregate policies for students with fewer graded subjects than the aggregate count.
const (
	AggregatePolicyPartial = "partial"
	AggregatePolicyStrict  = "strict"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Grading  GradingConfig
	Events   EventsConfig
	CORS     CORSConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig tunes the grade computation pipeline.
type GradingConfig struct {
	// FinalTermNumber is the term of the academic year that triggers promotion decisions.
	FinalTermNumber        int
	AggregatePolicy        string
	IncrementalRankRefresh bool
	ConfigCacheTTL         time.Duration
	BatchSize              int
}

// CORSConfig lists browser origins allowed to call the API. Empty allows any.
type CORSConfig struct {
	AllowedOrigins []string
}

// EventsConfig controls publication of recalculation events to Kafka.
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	batchSize := v.GetInt("GRADING_BATCH_SIZE")
	if batchSize <= 0 {
		batchSize = 500
	}
	cfg.Grading = GradingConfig{
		FinalTermNumber:        v.GetInt("GRADING_FINAL_TERM_NUMBER"),
		AggregatePolicy:        normalisePolicy(v.GetString("GRADING_AGGREGATE_POLICY")),
		IncrementalRankRefresh: v.GetBool("GRADING_INCREMENTAL_RANK_REFRESH"),
		ConfigCacheTTL:         parseDuration(v.GetString("GRADING_CONFIG_CACHE_TTL"), 5*time.Minute),
		BatchSize:              batchSize,
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("EVENTS_ENABLED"),
		Brokers: splitAndTrim(v.GetString("EVENTS_KAFKA_BROKERS")),
		Topic:   v.GetString("EVENTS_TOPIC"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS"))}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_gradebook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_FINAL_TERM_NUMBER", 3)
	v.SetDefault("GRADING_AGGREGATE_POLICY", AggregatePolicyPartial)
	v.SetDefault("GRADING_INCREMENTAL_RANK_REFRESH", false)
	v.SetDefault("GRADING_CONFIG_CACHE_TTL", "5m")
	v.SetDefault("GRADING_BATCH_SIZE", 500)

	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENTS_KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("EVENTS_TOPIC", "grading.recalculated")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func normalisePolicy(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), AggregatePolicyStrict) {
		return AggregatePolicyStrict
	}
	return AggregatePolicyPartial
}

// isMissingFile covers viper returning a bare fs error when SetConfigFile points at an absent .env.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
