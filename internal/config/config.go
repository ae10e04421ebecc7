package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	GRPC        GRPCConfig
	Postgres    PostgresConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Mongo       MongoConfig
	Kafka       KafkaConfig
	Razorpay    RazorpayConfig
	Auth        AuthConfig
	Timeouts    TimeoutConfig
}

type HTTPConfig struct {
	Port               string
	MaxRequestBodySize int64
	MaxUploadSize      int64
	// TrustProxy honours X-Forwarded-For. Leave off unless a proxy rewrites it.
	TrustProxy bool
}

// GRPCConfig is the ops port serving gRPC health checks and reflection.
type GRPCConfig struct {
	Port string
}

type PostgresConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

type SQLiteConfig struct {
	Path              string
	MigrationsDirPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MongoConfig struct {
	URI      string
	Database string
	Bucket   string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RazorpayConfig holds the gateway credentials. An empty KeyID switches the
// storefront to the in-process sandbox gateway.
type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	StoreName string
	LogoURL   string
	Theme     string
}

type AuthConfig struct {
	SessionKey   []byte
	CookieSecure bool
	AdminEmails  []string
	BaseURL      string
	MagicLinkTTL time.Duration
}

type TimeoutConfig struct {
	Request  time.Duration
	Gateway  time.Duration
	Shutdown time.Duration
	// SessionIdle is how long an untouched cart or checkout stays in memory.
	SessionIdle time.Duration
}

func Load() (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load(".env")

	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("GRPC_PORT", "50060")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	dbPort, err := strconv.Atoi(getEnvOrViper("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnvOrViper("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	magicLinkTTL, err := time.ParseDuration(getEnvOrViper("MAGIC_LINK_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAGIC_LINK_TTL: %w", err)
	}
	requestTimeout, err := time.ParseDuration(getEnvOrViper("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	gatewayTimeout, err := time.ParseDuration(getEnvOrViper("GATEWAY_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}
	sessionIdle, err := time.ParseDuration(getEnvOrViper("SESSION_IDLE_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TTL: %w", err)
	}

	cfg := &Config{
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Port:               getEnvOrViper("HTTP_PORT", "8080"),
			MaxRequestBodySize: 1 << 20,  // 1MB
			MaxUploadSize:      50 << 20, // product videos
			TrustProxy:         getEnvOrViper("TRUST_PROXY", "false") == "true",
		},
		GRPC: GRPCConfig{
			Port: getEnvOrViper("GRPC_PORT", "50060"),
		},
		Postgres: PostgresConfig{
			Host:              getEnvOrViper("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnvOrViper("DB_USER", "postgres"),
			Password:          getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:            getEnvOrViper("DB_NAME", "jungli"),
			SSLMode:           getEnvOrViper("DB_SSLMODE", "disable"),
			MigrationsDirPath: getEnvOrViper("ORDERS_MIGRATIONS_PATH", "./internal/repository/orders/migrations"),
		},
		SQLite: SQLiteConfig{
			Path:              getEnvOrViper("CATALOG_DB_PATH", "./catalog.db"),
			MigrationsDirPath: getEnvOrViper("CATALOG_MIGRATIONS_PATH", "./internal/repository/products/migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrViper("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Mongo: MongoConfig{
			URI:      getEnvOrViper("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnvOrViper("MONGO_DB_NAME", "jungli"),
			Bucket:   getEnvOrViper("MEDIA_BUCKET", "sneaker-assets"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrViper("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnvOrViper("ORDER_EVENTS_TOPIC", "order-events"),
		},
		Razorpay: RazorpayConfig{
			BaseURL:   strings.TrimSpace(getEnvOrViper("RAZORPAY_BASE_URL", "https://api.razorpay.com")),
			KeyID:     strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_ID", "")),
			KeySecret: strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_SECRET", "")),
			StoreName: getEnvOrViper("STORE_NAME", "JUNGLI STORE"),
			LogoURL:   getEnvOrViper("STORE_LOGO_URL", "/logo.svg"),
			Theme:     getEnvOrViper("CHECKOUT_THEME_COLOR", "#FF5F1F"),
		},
		Auth: AuthConfig{
			CookieSecure: getEnvOrViper("COOKIE_SECURE", "false") == "true",
			AdminEmails:  splitList(getEnvOrViper("ADMIN_EMAILS", "")),
			BaseURL:      strings.TrimRight(getEnvOrViper("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			MagicLinkTTL: magicLinkTTL,
		},
		Timeouts: TimeoutConfig{
			Request:     requestTimeout,
			Gateway:     gatewayTimeout,
			Shutdown:    10 * time.Second,
			SessionIdle: sessionIdle,
		},
	}

	sessionKey, err := decodeKey(getEnvOrViper("SESSION_KEY", ""))
	if err != nil {
		return nil, err
	}
	cfg.Auth.SessionKey = sessionKey

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != "production" {
		return nil
	}
	if len(c.Auth.SessionKey) == 0 {
		return fmt.Errorf("SESSION_KEY is required in production")
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required in production")
	}
	if len(c.Auth.AdminEmails) == 0 {
		return fmt.Errorf("ADMIN_EMAILS is required in production")
	}
	return nil
}

// UseSandboxGateway reports whether payments go to the in-process sandbox.
func (c *Config) UseSandboxGateway() bool {
	return c.Razorpay.KeyID == ""
}

func decodeKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("SESSION_KEY must be base64: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("SESSION_KEY must decode to at least 32 bytes, got %d", len(key))
	}
	return key, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}
