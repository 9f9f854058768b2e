package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	StreamToken StreamTokenConfig
	FCM         FCMConfig
	Expo        ExpoConfig
	Transport   TransportConfig
	Notify      NotifyConfig
	CORS        CORSConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode
}

// URL returns the PostgreSQL connection URL (for golang-migrate)
func (d DBConfig) URL() string {
	return "postgres://" + d.User + ":" + d.Password +
		"@" + d.Host + ":" + d.Port +
		"/" + d.Name + "?sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// StreamTokenConfig configures the server-issued chat transport tokens.
// Clients never mint their own credentials; they exchange their identity
// for a signed token via POST /api/stream-token.
type StreamTokenConfig struct {
	Secret string
	Expiry time.Duration
}

type FCMConfig struct {
	CredentialsFile string
}

// ExpoConfig configures the Expo push gateway used for the local-fallback
// notification path.
type ExpoConfig struct {
	BaseURL string
}

// TransportConfig points at the external chat transport.
type TransportConfig struct {
	WSURL        string // websocket endpoint of the chat transport
	TokenURL     string // token-exchange endpoint (may be this server itself)
	DialTimeout  time.Duration
	MaxReconnect time.Duration // cap on reconnect backoff
}

// NotifyConfig tunes the notification dispatcher.
type NotifyConfig struct {
	// AllowMockTokens permits registering fabricated "mock" tokens.
	// Only ever true in development/test configs; registering fake tokens
	// in production would be a correctness bug.
	AllowMockTokens   bool
	PermissionTimeout time.Duration
	HTTPTimeout       time.Duration
}

type CORSConfig struct {
	Origins []string
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading from environment variables")
	}

	tokenExpiry, err := time.ParseDuration(getEnv("STREAM_TOKEN_EXPIRY", "24h"))
	if err != nil {
		tokenExpiry = 24 * time.Hour
	}

	return &Config{
		App: AppConfig{
			Env:  getEnv("APP_ENV", "development"),
			Port: getEnv("APP_PORT", "8080"),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "coachlink"),
			Password: getEnv("DB_PASSWORD", "coachlink"),
			Name:     getEnv("DB_NAME", "coachlink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		StreamToken: StreamTokenConfig{
			Secret: getEnv("STREAM_TOKEN_SECRET", "default-secret"),
			Expiry: tokenExpiry,
		},
		FCM: FCMConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Expo: ExpoConfig{
			BaseURL: getEnv("EXPO_PUSH_URL", "https://exp.host/api/v2/push/send"),
		},
		Transport: TransportConfig{
			WSURL:        getEnv("CHAT_TRANSPORT_WS_URL", "ws://localhost:8081/ws"),
			TokenURL:     getEnv("CHAT_TOKEN_URL", "http://localhost:8080/api/stream-token"),
			DialTimeout:  getDuration("CHAT_DIAL_TIMEOUT", 10*time.Second),
			MaxReconnect: getDuration("CHAT_MAX_RECONNECT", 30*time.Second),
		},
		Notify: NotifyConfig{
			AllowMockTokens:   getEnv("NOTIFY_ALLOW_MOCK_TOKENS", "false") == "true",
			PermissionTimeout: getDuration("NOTIFY_PERMISSION_TIMEOUT", 10*time.Second),
			HTTPTimeout:       getDuration("NOTIFY_HTTP_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			Origins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
