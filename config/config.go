package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	HTTP       ServerConfig
	GRPC       ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Auth       AuthConfig
	Password   PasswordConfig
	Email      EmailConfig
	RateLimit  RateLimitConfig
	Summarizer SummarizerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	AutoMigrate  bool
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type AuthConfig struct {
	// Enabled=false replaces every caller with the anonymous identity.
	Enabled       bool
	PublicBaseURL string
	BcryptCost    int
}

type PasswordConfig struct {
	Policy PasswordPolicy
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	FromName string
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type SummarizerConfig struct {
	BaseURL         string
	DefaultModel    string
	DefaultLanguage string
	MaxInputLength  int
	Timeout         time.Duration
	// Models prefixed with "gpt" go to the OpenAI backend instead of Ollama.
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

type LogConfig struct {
	Level  string
	Format string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	accessTTL, err := getMinutesEnv("JWT_ACCESS_TOKEN_TTL", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getMinutesEnv("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	dsn := os.Getenv("DB_DSN")
	switch driver {
	case DriverMySQL:
		if dsn == "" {
			return nil, errors.New("DB_DSN environment variable is required for the mysql driver")
		}
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:breviobot.db"
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	cfg := &Config{
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		Database: DatabaseConfig{
			Driver:       driver,
			DSN:          dsn,
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 10),
			AutoMigrate:  getBoolEnv("DB_AUTO_MIGRATE", driver == DriverSQLite),
		},
		JWT: JWTConfig{
			Secret:          jwtSecret,
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
		},
		Auth: AuthConfig{
			Enabled:       getBoolEnv("AUTH_ENABLED", true),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			BcryptCost:    getIntEnv("BCRYPT_COST", 12),
		},
		Password: PasswordConfig{
			Policy: loadPasswordPolicy(),
		},
		Email: EmailConfig{
			SMTPHost: os.Getenv("SMTP_HOST"),
			SMTPPort: getIntEnv("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@breviobot.local"),
			FromName: getEnv("SMTP_FROM_NAME", "BrevioBot"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 10),
			Burst:             getIntEnv("RATE_LIMIT_BURST", 10),
		},
		Summarizer: SummarizerConfig{
			BaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			DefaultModel:    getEnv("SUMMARIZER_MODEL", "llama3.2"),
			DefaultLanguage: getEnv("SUMMARIZER_LANGUAGE", "English"),
			MaxInputLength:  getIntEnv("SUMMARIZER_MAX_INPUT_LENGTH", 4000),
			Timeout:         getDurationEnv("SUMMARIZER_TIMEOUT", 2*time.Minute),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values that would otherwise be silently replaced at runtime.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret must not be empty")
	}
	if c.JWT.AccessTokenTTL <= 0 {
		return errors.New("JWT_ACCESS_TOKEN_TTL must be a positive number of minutes")
	}
	if c.JWT.RefreshTokenTTL <= 0 {
		return errors.New("JWT_REFRESH_TOKEN_TTL must be a positive number of minutes")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

// getMinutesEnv is the strict form of getDurationEnv: only an unset value
// falls back to the default.
func getMinutesEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number of minutes, got %q", key, value)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 6),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", false),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
