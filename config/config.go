package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendModeREST  = "rest"
	BackendModeLocal = "local"

	SessionStoreFile  = "file"
	SessionStoreRedis = "redis"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Checkout  CheckoutConfig
	Payment   PaymentConfig
	S3        S3Config
	Geocode   GeocodeConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
	LogLevel    string
}

// BackendConfig selects the data/auth backend the shell talks to.
type BackendConfig struct {
	Mode    string // rest | local
	BaseURL string
	APIKey  string // sent as apikey header when set
	Timeout time.Duration
}

type DatabaseConfig struct {
	Driver     string // postgres | sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Store    string // file | redis
	FilePath string
	DeviceID string // redis key suffix
}

// JWTConfig is only used by the embedded backend.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type CheckoutConfig struct {
	TaxRate        decimal.Decimal
	Currency       string
	DefaultCountry string
}

type PaymentConfig struct {
	Razorpay RazorpayConfig
}

type RazorpayConfig struct {
	KeyID        string
	KeySecret    string
	BaseURL      string
	MerchantName string
	Description  string
	ThemeColor   string
	// ConfirmPayments looks each payment up after the signature check.
	ConfirmPayments bool
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
	MaxUploadBytes  int64
}

type GeocodeConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

type SchedulerConfig struct {
	ReconciliationReportSpec string
	ReportDir                string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	taxRate, err := decimal.NewFromString(getEnv("CHECKOUT_TAX_RATE", "0.10"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHECKOUT_TAX_RATE: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", ""),
		},
		Backend: BackendConfig{
			Mode:    strings.ToLower(getEnv("BACKEND_MODE", BackendModeLocal)),
			BaseURL: strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
			APIKey:  getEnv("BACKEND_API_KEY", ""),
			Timeout: parseDuration(getEnv("BACKEND_TIMEOUT", "15s"), 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "admin"),
			Password:   getEnv("DB_PASSWORD", "1234"),
			DBName:     getEnv("DB_NAME", "storefront"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "storefront.db"),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Session: SessionConfig{
			Store:    strings.ToLower(getEnv("SESSION_STORE", SessionStoreFile)),
			FilePath: getEnv("SESSION_FILE", ".storefront/session.json"),
			DeviceID: getEnv("SESSION_DEVICE_ID", "default"),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry: parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "24h"), 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Checkout: CheckoutConfig{
			TaxRate:        taxRate,
			Currency:       strings.ToUpper(getEnv("CHECKOUT_CURRENCY", "USD")),
			DefaultCountry: getEnv("CHECKOUT_DEFAULT_COUNTRY", "USA"),
		},
		Payment: PaymentConfig{
			Razorpay: RazorpayConfig{
				KeyID:        getEnv("RAZORPAY_KEY_ID", ""),
				KeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
				BaseURL:      getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
				MerchantName: getEnv("RAZORPAY_MERCHANT_NAME", "Storefront"),
				Description:  getEnv("RAZORPAY_DESCRIPTION", "Order payment"),
				ThemeColor:   getEnv("RAZORPAY_THEME_COLOR", "#18181b"),

				ConfirmPayments: parseBool(getEnv("RAZORPAY_CONFIRM_PAYMENTS", "true")),
			},
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-south-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "storefront-uploads"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
			MaxUploadBytes:  int64(parseInt(getEnv("UPLOAD_MAX_BYTES", "5242880"), 5<<20)),
		},
		Geocode: GeocodeConfig{
			BaseURL:   strings.TrimRight(getEnv("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"), "/"),
			UserAgent: getEnv("GEOCODE_USER_AGENT", "Storefront-Ecommerce-App"),
			Timeout:   parseDuration(getEnv("GEOCODE_TIMEOUT", "10s"), 10*time.Second),
		},
		Scheduler: SchedulerConfig{
			ReconciliationReportSpec: getEnv("RECONCILIATION_REPORT_CRON", "0 9 * * *"),
			ReportDir:                getEnv("RECONCILIATION_REPORT_DIR", "reports"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects combinations the shell cannot start with.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendModeREST, BackendModeLocal:
	default:
		return fmt.Errorf("invalid BACKEND_MODE %q (want rest or local)", c.Backend.Mode)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (want postgres or sqlite)", c.Database.Driver)
	}
	switch c.Session.Store {
	case SessionStoreFile:
	case SessionStoreRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("invalid SESSION_STORE %q (want file or redis)", c.Session.Store)
	}
	if c.Checkout.TaxRate.IsNegative() {
		return fmt.Errorf("CHECKOUT_TAX_RATE must not be negative")
	}
	if len(c.Checkout.Currency) != 3 {
		return fmt.Errorf("CHECKOUT_CURRENCY must be an ISO 4217 code")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
