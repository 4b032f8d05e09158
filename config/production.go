// Package config provides production configuration management with environment variable support
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/linkdms/linkdms/utils"
)

// ProductionConfig holds all production configuration settings
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	Agent     AgentConfig     `json:"agent"`
	TextGen   TextGenConfig   `json:"textgen"`
	Throttle  ThrottleConfig  `json:"throttle"`
	Engine    EngineConfig    `json:"engine"`
	Scheduler SchedulerConfig `json:"scheduler"`
	JWT       JWTConfig       `json:"jwt"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	RunTimeout      time.Duration `json:"run_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Version         string        `json:"version"`
}

// CacheConfig holds Redis settings used by the safety throttle counters
type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	RedisURL string `json:"redis_url"`
	RedisDB  int    `json:"redis_db"`
}

// AgentConfig holds browser agent service settings
type AgentConfig struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key"`
	ProjectID string        `json:"project_id"`
	Timeout   time.Duration `json:"timeout"`
}

// TextGenConfig holds text generation model settings
type TextGenConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// ThrottleConfig holds safety limit settings
type ThrottleConfig struct {
	UserDailyCap     int           `json:"user_daily_cap"`
	FollowUpHourly   int           `json:"follow_up_hourly"`
	FollowUpDaily    int           `json:"follow_up_daily"`
	FollowUpSpacing  time.Duration `json:"follow_up_spacing"`
	FollowUpDelay    time.Duration `json:"follow_up_delay"`
	CounterRetention time.Duration `json:"counter_retention"`
}

// EngineConfig holds campaign execution pacing settings
type EngineConfig struct {
	PauseMin time.Duration `json:"pause_min"`
	PauseMax time.Duration `json:"pause_max"`
}

// SchedulerConfig holds background scheduler settings
type SchedulerConfig struct {
	Enabled   bool          `json:"enabled"`
	Interval  time.Duration `json:"interval"`
	RunBudget time.Duration `json:"run_budget"`
	LogPath   string        `json:"log_path"`
}

// JWTConfig holds service token settings
type JWTConfig struct {
	SecretKey string        `json:"secret_key"`
	Issuer    string        `json:"issuer"`
	Audience  string        `json:"audience"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	FilePath string `json:"file_path"`
}

// LoadProductionConfig loads configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "linkdms"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			RunTimeout:      getEnvDuration("SERVER_RUN_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			Version:         getEnvString("APP_VERSION", "dev"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			RedisURL: getEnvString("REDIS_URL", "redis://localhost:6379"),
			RedisDB:  getEnvInt("REDIS_DB", 0),
		},
		Agent: AgentConfig{
			BaseURL:   getEnvString("AGENT_BASE_URL", ""),
			APIKey:    getEnvString("AGENT_API_KEY", ""),
			ProjectID: getEnvString("AGENT_PROJECT_ID", ""),
			Timeout:   getEnvDuration("AGENT_TIMEOUT", 120*time.Second),
		},
		TextGen: TextGenConfig{
			APIKey: getEnvString("TEXTGEN_API_KEY", ""),
			Model:  getEnvString("TEXTGEN_MODEL", "gemini-2.0-flash"),
		},
		Throttle: ThrottleConfig{
			UserDailyCap:     getEnvInt("THROTTLE_USER_DAILY_CAP", utils.UserDailyConnectionCap),
			FollowUpHourly:   getEnvInt("THROTTLE_FOLLOWUP_HOURLY_CAP", utils.FollowUpHourlyCap),
			FollowUpDaily:    getEnvInt("THROTTLE_FOLLOWUP_DAILY_CAP", utils.FollowUpDailyCap),
			FollowUpSpacing:  getEnvDuration("THROTTLE_FOLLOWUP_SPACING", utils.DefaultFollowUpSpacing),
			FollowUpDelay:    getEnvDuration("THROTTLE_FOLLOWUP_DELAY", utils.DefaultFollowUpDelay),
			CounterRetention: getEnvDuration("THROTTLE_COUNTER_RETENTION", 48*time.Hour),
		},
		Engine: EngineConfig{
			PauseMin: getEnvDuration("ENGINE_PAUSE_MIN", 2*time.Second),
			PauseMax: getEnvDuration("ENGINE_PAUSE_MAX", 6*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getEnvBool("SCHEDULER_ENABLED", true),
			Interval:  getEnvDuration("SCHEDULER_INTERVAL", 1*time.Minute),
			RunBudget: getEnvDuration("SCHEDULER_RUN_BUDGET", 20*time.Minute),
			LogPath:   getEnvString("SCHEDULER_LOG_PATH", ""),
		},
		JWT: JWTConfig{
			SecretKey: getEnvString("JWT_SECRET_KEY", ""),
			Issuer:    getEnvString("JWT_ISSUER", "linkdms"),
			Audience:  getEnvString("JWT_AUDIENCE", "linkdms-api"),
			TokenTTL:  getEnvDuration("JWT_TOKEN_TTL", 1*time.Hour),
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvStringSlice("ALLOWED_ORIGINS", []string{"https://app.linkdms.io"}),
		},
		Logging: LoggingConfig{
			FilePath: getEnvString("LOG_FILE_PATH", ""),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from a .env file when present
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	return scanner.Err()
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if cfg.Agent.BaseURL == "" {
		errors = append(errors, "AGENT_BASE_URL is required")
	}
	if cfg.Agent.APIKey == "" {
		errors = append(errors, "AGENT_API_KEY is required")
	}

	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) > 0 && len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters")
	}

	if cfg.Throttle.UserDailyCap <= 0 {
		errors = append(errors, "THROTTLE_USER_DAILY_CAP must be positive")
	}
	if cfg.Engine.PauseMax < cfg.Engine.PauseMin {
		errors = append(errors, "ENGINE_PAUSE_MAX must not be below ENGINE_PAUSE_MIN")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
