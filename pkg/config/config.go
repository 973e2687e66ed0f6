package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	TokenGateway TokenGatewayConfig
	PayTech      PayTechConfig
	Pricing      PricingConfig
	Redis        RedisConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port        string
	AppEnv      string
	CORSOrigins string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// TokenGatewayConfig configures the gateway queried by payment token (pull flow).
type TokenGatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PayTechConfig configures the gateway that pushes IPN callbacks (push flow).
type PayTechConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
	// CheckIPNKeys requires api_key_sha256/api_secret_sha256 on incoming IPNs.
	CheckIPNKeys bool
}

// PricingConfig holds server-side prices in integer currency units.
type PricingConfig struct {
	Currency     string
	ReportPrice  int64
	MonthlyPrice int64
	YearlyPrice  int64
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	RateLimit  int64
	RateWindow time.Duration
}

type LogConfig struct {
	Level string
}

func Load() *Config {
	godotenv.Load() // .env is optional, process env wins

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "3000"),
			AppEnv:      getEnv("APP_ENV", "prod"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "listings"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getDuration("JWT_TTL", 24*time.Hour),
		},
		TokenGateway: TokenGatewayConfig{
			BaseURL: getEnv("TOKEN_GATEWAY_URL", ""),
			APIKey:  getEnv("TOKEN_GATEWAY_API_KEY", ""),
			Timeout: getDuration("TOKEN_GATEWAY_TIMEOUT", 10*time.Second),
		},
		PayTech: PayTechConfig{
			BaseURL:      getEnv("PAYTECH_API_URL", "https://paytech.sn/api"),
			APIKey:       getEnv("PAYTECH_API_KEY", ""),
			APISecret:    getEnv("PAYTECH_API_SECRET", ""),
			Timeout:      getDuration("PAYTECH_TIMEOUT", 10*time.Second),
			CheckIPNKeys: getBool("PAYTECH_CHECK_IPN_KEYS", false),
		},
		Pricing: PricingConfig{
			Currency:     getEnv("PRICE_CURRENCY", "XOF"),
			ReportPrice:  getInt("PRICE_REPORT", 6500),
			MonthlyPrice: getInt("PRICE_PLAN_MONTHLY", 5000),
			YearlyPrice:  getInt("PRICE_PLAN_YEARLY", 50000),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         int(getInt("REDIS_DB", 0)),
			RateLimit:  getInt("VERIFY_RATE_LIMIT", 20),
			RateWindow: getDuration("VERIFY_RATE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.DBName)
}

func (s ServerConfig) IsDev() bool {
	return s.AppEnv == "dev"
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.TokenGateway.BaseURL == "" {
		missing = append(missing, "TOKEN_GATEWAY_URL")
	}
	if c.PayTech.APIKey == "" || c.PayTech.APISecret == "" {
		missing = append(missing, "PAYTECH_API_KEY/PAYTECH_API_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
