package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Firebase   FirebaseConfig   `mapstructure:"firebase"`
	Storage    StorageConfig    `mapstructure:"storage"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Email      EmailConfig      `mapstructure:"email"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Audit      AuditConfig      `mapstructure:"audit"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Log        LogConfig        `mapstructure:"log"`
	Operators  []OperatorConfig `mapstructure:"operators"`
	Secrets    Secrets          `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type StoreConfig struct {
	// Driver is either "firestore" or "memory".
	Driver string `mapstructure:"driver"`
}

type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type OCRConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	PDFTimeout      time.Duration `mapstructure:"pdf_timeout"`
	TempPrefix      string        `mapstructure:"temp_prefix"`
}

type OpenAIConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type EmailConfig struct {
	Provider     string `mapstructure:"provider"`
	From         string `mapstructure:"from"`
	FromName     string `mapstructure:"from_name"`
	SendGridHost string `mapstructure:"sendgrid_host"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
}

type AppConfig struct {
	MessageLinkBase string `mapstructure:"message_link_base"`
	FrontendURL     string `mapstructure:"frontend_url"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	// LockTTL bounds the cross-replica dispatcher lease. Zero disables it.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type WorkerConfig struct {
	MessageInterval     time.Duration `mapstructure:"message_interval"`
	CertificateInterval time.Duration `mapstructure:"certificate_interval"`
	// Embedded runs the workers inside the API process.
	Embedded bool `mapstructure:"embedded"`
	// MetricsPort serves /metrics and health probes of the worker binary.
	MetricsPort int `mapstructure:"metrics_port"`
}

type OutboxConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Channel    string        `mapstructure:"channel"`
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type JWTConfig struct {
	ExpiryHours int `mapstructure:"expiry_hours"`
}

type StripeConfig struct {
	SuccessPath string `mapstructure:"success_path"`
	CancelPath  string `mapstructure:"cancel_path"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type OperatorConfig struct {
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Secrets never live in config.yaml. They are read from SOY_-prefixed
// environment variables.
type Secrets struct {
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	SendGridAPIKey      string `envconfig:"SENDGRID_API_KEY"`
	SMTPPassword        string `envconfig:"SMTP_PASSWORD"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripePriceID       string `envconfig:"STRIPE_PRICE_ID"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	JWTSecret           string `envconfig:"JWT_SECRET"`
	DatabasePassword    string `envconfig:"DATABASE_PASSWORD"`
}

func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WorkflowTimeout is the request budget for certificate routes: the regular
// timeout plus the longest PDF OCR wait.
func (c *Config) WorkflowTimeout() time.Duration {
	return c.Server.Timeout() + c.OCR.PDFTimeout
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("store.driver", "firestore")
	v.SetDefault("ocr.pdf_timeout", 5*time.Minute)
	v.SetDefault("ocr.temp_prefix", "ocr/tmp")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("email.provider", "sendgrid")
	v.SetDefault("email.from_name", "Soy")
	v.SetDefault("email.sendgrid_host", "https://api.sendgrid.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("app.message_link_base", "https://tuapp.com/view-message")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("worker.message_interval", time.Minute)
	v.SetDefault("worker.certificate_interval", 5*time.Minute)
	v.SetDefault("worker.embedded", false)
	v.SetDefault("worker.metrics_port", 8081)
	v.SetDefault("outbox.interval", 5*time.Second)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retries", 3)
	v.SetDefault("outbox.channel", "soy.events")
	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", 24*time.Hour)
	v.SetDefault("rate_limit.rps", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("jwt.expiry_hours", 12)
	v.SetDefault("stripe.success_path", "/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("stripe.cancel_path", "/cancel")
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from the working directory or ./config, lets
// plain environment variables override any key and overlays the secrets.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("soy", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	if cfg.Secrets.DatabasePassword != "" {
		cfg.Database.Password = cfg.Secrets.DatabasePassword
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "firestore":
		if c.Firebase.ProjectID == "" {
			return fmt.Errorf("firebase.project_id is required for the firestore driver")
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the firestore driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Email.Provider {
	case "sendgrid", "smtp":
	default:
		return fmt.Errorf("unknown email.provider %q", c.Email.Provider)
	}
	return nil
}
