package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Board    BoardConfig
	Quiz     QuizConfig
	Grading  GradingConfig
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
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BoardConfig controls caching of the per-year grade board.
type BoardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// QuizConfig sizes the background regrade worker pool.
type QuizConfig struct {
	RegradeWorkers    int
	RegradeRetries    int
	RegradeRetryDelay time.Duration
}

// GradingConfig carries the cohort thresholds and exam weights of the
// national grading rules. Weights are percentages.
type GradingConfig struct {
	FlatExamWeightCohort int
	WeightedCFSCohort    int
	FlatExamWeight       string
	BiennialExamWeight   string
	TriennialExamWeight  string
	BasicoExamWeight     string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Board = BoardConfig{
		CacheEnabled: v.GetBool("ENABLE_BOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("BOARD_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Quiz = QuizConfig{
		RegradeWorkers:    v.GetInt("QUIZ_REGRADE_WORKERS"),
		RegradeRetries:    v.GetInt("QUIZ_REGRADE_RETRIES"),
		RegradeRetryDelay: parseDuration(v.GetString("QUIZ_REGRADE_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Grading = GradingConfig{
		FlatExamWeightCohort: v.GetInt("GRADING_FLAT_EXAM_WEIGHT_COHORT"),
		WeightedCFSCohort:    v.GetInt("GRADING_WEIGHTED_CFS_COHORT"),
		FlatExamWeight:       v.GetString("GRADING_EXAM_WEIGHT_FLAT"),
		BiennialExamWeight:   v.GetString("GRADING_EXAM_WEIGHT_BIENNIAL"),
		TriennialExamWeight:  v.GetString("GRADING_EXAM_WEIGHT_TRIENNIAL"),
		BasicoExamWeight:     v.GetString("GRADING_BASICO_EXAM_WEIGHT"),
	}

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
	v.SetDefault("DB_NAME", "grade_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_BOARD_CACHE", false)
	v.SetDefault("BOARD_CACHE_TTL", "2m")

	v.SetDefault("QUIZ_REGRADE_WORKERS", 2)
	v.SetDefault("QUIZ_REGRADE_RETRIES", 3)
	v.SetDefault("QUIZ_REGRADE_RETRY_DELAY", "2s")

	v.SetDefault("GRADING_FLAT_EXAM_WEIGHT_COHORT", 2023)
	v.SetDefault("GRADING_WEIGHTED_CFS_COHORT", 2025)
	v.SetDefault("GRADING_EXAM_WEIGHT_FLAT", "25")
	v.SetDefault("GRADING_EXAM_WEIGHT_BIENNIAL", "25")
	v.SetDefault("GRADING_EXAM_WEIGHT_TRIENNIAL", "30")
	v.SetDefault("GRADING_BASICO_EXAM_WEIGHT", "30")
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
