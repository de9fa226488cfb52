package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const maxBatchSize = 10

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Encryption EncryptionConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
	Ingestion  IngestionConfig
	Gemini     GeminiConfig
	Gmail      GmailConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

type EncryptionConfig struct {
	// Key seals stored mailbox refresh tokens. Optional; mailbox polling is off without it.
	Key string
}

type SchedulerConfig struct {
	Enabled bool
	// Interval between polling rounds. When zero, ScheduleTimes is used instead.
	Interval      time.Duration
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	// MessagesFile overrides the built-in push notification texts.
	MessagesFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Format string
}

type IngestionConfig struct {
	// WebhookSecret guards the ingest endpoints. Checked per request, not at startup.
	WebhookSecret    string
	SenderDomains    []string
	BodyLimit        int
	BatchSize        int
	MinContentLength int
	StaleAfter       time.Duration
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
}

type GmailConfig struct {
	ClientID        string
	ClientSecret    string
	SubjectKeywords []string
}

// DefaultSenderDomains are the bank alert domains accepted when BANK_SENDER_DOMAINS is unset.
var DefaultSenderDomains = []string{
	"gtbank.com", "accessbankplc.com", "zenithbank.com", "firstbanknigeria.com",
	"ubagroup.com", "opay-nigeria.com", "moniepoint.com", "kuda.com", "palmpay.com",
}

// Load reads an optional .env file (ENV_FILE, default ".env") and then the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getIntEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durEnv := func(key string, def time.Duration) time.Duration {
		v, err := getDurationEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS", nil),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         intEnv("DB_PORT", 5432),
			User:         getEnv("DB_USER", "payalert"),
			Password:     getEnv("DB_PASSWORD", ""),
			DBName:       getEnv("DB_NAME", "payalert"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: intEnv("DB_MAX_OPEN_CONNS", 25),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			Interval:      durEnv("SCHEDULER_INTERVAL", 5*time.Minute),
			ScheduleTimes: getListEnv("SCHEDULER_TIMES", nil),
			WorkerCount:   intEnv("SCHEDULER_WORKERS", 3),
			JobDelay:      durEnv("SCHEDULER_JOB_DELAY", time.Second),
			QueueSize:     intEnv("SCHEDULER_QUEUE_SIZE", 100),
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "payalert-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Ingestion: IngestionConfig{
			WebhookSecret:    getEnv("WEBHOOK_SECRET", ""),
			SenderDomains:    getListEnv("BANK_SENDER_DOMAINS", DefaultSenderDomains),
			BodyLimit:        intEnv("INGEST_BODY_LIMIT", 3000),
			BatchSize:        intEnv("INGEST_BATCH_SIZE", maxBatchSize),
			MinContentLength: intEnv("INGEST_MIN_CONTENT_LENGTH", 10),
			StaleAfter:       durEnv("INGEST_STALE_AFTER", 15*time.Minute),
		},
		Gemini: GeminiConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			MaxOutputTokens: intEnv("GEMINI_MAX_OUTPUT_TOKENS", 256),
			Timeout:         durEnv("GEMINI_TIMEOUT", 30*time.Second),
		},
		Gmail: GmailConfig{
			ClientID:        getEnv("GMAIL_CLIENT_ID", ""),
			ClientSecret:    getEnv("GMAIL_CLIENT_SECRET", ""),
			SubjectKeywords: getListEnv("GMAIL_SUBJECT_KEYWORDS", nil),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.Encryption.Key != "" && len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	if cfg.Scheduler.Enabled && cfg.Scheduler.Interval <= 0 && len(cfg.Scheduler.ScheduleTimes) == 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL or SCHEDULER_TIMES is required when SCHEDULER_ENABLED=true")
	}

	if cfg.Ingestion.BatchSize < 1 {
		cfg.Ingestion.BatchSize = 1
	}
	if cfg.Ingestion.BatchSize > maxBatchSize {
		cfg.Ingestion.BatchSize = maxBatchSize
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getListEnv splits a comma-separated variable, dropping blanks.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
