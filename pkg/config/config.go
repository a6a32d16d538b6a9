package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ARENA_APP_ENV" required:"true"`
	Port         string `envconfig:"ARENA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ARENA_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ARENA_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ARENA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// ConsoleLogs reports whether log output should be human readable.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ARENA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ARENA_DB_DSN"`
	Driver string `envconfig:"ARENA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ARENA_DB_HOST"`
	LegacyPort     int    `envconfig:"ARENA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ARENA_DB_USER"`
	LegacyPassword string `envconfig:"ARENA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ARENA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ARENA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ARENA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ARENA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ARENA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ARENA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	ConnectTimeout  time.Duration `envconfig:"ARENA_DB_CONNECT_TIMEOUT" default:"30s"`

	SlowQuery  time.Duration `envconfig:"ARENA_DB_SLOW_QUERY" default:"500ms"`
	LogQueries bool          `envconfig:"ARENA_DB_LOG_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ARENA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ARENA_REDIS_ADDR"`
	Password     string        `envconfig:"ARENA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ARENA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ARENA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ARENA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ARENA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ARENA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ARENA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for tokens minted by the
// external identity provider. The API never issues tokens itself.
type JWTConfig struct {
	Secret string `envconfig:"ARENA_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"ARENA_JWT_ISSUER" required:"true"`
}

// BillingConfig tunes the invoice allocator and the booking transaction.
type BillingConfig struct {
	TxMaxAttempts    int           `envconfig:"ARENA_BILLING_TX_MAX_ATTEMPTS" default:"5"`
	TxInitialBackoff time.Duration `envconfig:"ARENA_BILLING_TX_INITIAL_BACKOFF" default:"25ms"`
	TxMaxBackoff     time.Duration `envconfig:"ARENA_BILLING_TX_MAX_BACKOFF" default:"500ms"`

	FacilityInvoicePrefix string `envconfig:"ARENA_BILLING_FACILITY_INVOICE_PREFIX" default:"INV"`
	AcademyInvoicePrefix  string `envconfig:"ARENA_BILLING_ACADEMY_INVOICE_PREFIX" default:"INV"`
	ManualReferencePrefix string `envconfig:"ARENA_BILLING_MANUAL_REFERENCE_PREFIX" default:"MAN"`

	// Timezone decides which calendar year is stamped on an invoice number.
	Timezone string `envconfig:"ARENA_BILLING_TIMEZONE" default:"UTC"`
}

// Location resolves the configured billing timezone, falling back to UTC.
func (b BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(b.Timezone))
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

func (b BillingConfig) validate() error {
	if b.TxMaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvBillingTxMaxAttempts)
	}
	if strings.TrimSpace(b.FacilityInvoicePrefix) == "" || strings.TrimSpace(b.AcademyInvoicePrefix) == "" {
		return fmt.Errorf("invoice prefixes must not be blank")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(b.Timezone)); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBillingTimezone, err)
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ARENA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"ARENA_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"ARENA_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"ARENA_GCP_CREDENTIALS_JSON"`
}

// PubSubConfig names the topics the outbox publisher writes to. Payment and
// subscription events go to BillingTopic; payer and facility lifecycle events
// go to DirectoryTopic, or BillingTopic when it is unset.
type PubSubConfig struct {
	BillingTopic   string `envconfig:"ARENA_PUBSUB_BILLING_TOPIC" default:"arena-billing-events"`
	DirectoryTopic string `envconfig:"ARENA_PUBSUB_DIRECTORY_TOPIC"`
}

// DirectoryTopicOrDefault resolves the directory topic fallback.
func (p PubSubConfig) DirectoryTopicOrDefault() string {
	if t := strings.TrimSpace(p.DirectoryTopic); t != "" {
		return t
	}
	return p.BillingTopic
}

// Topics lists the distinct configured topics, billing first.
func (p PubSubConfig) Topics() []string {
	topics := []string{p.BillingTopic}
	if dir := p.DirectoryTopicOrDefault(); dir != p.BillingTopic {
		topics = append(topics, dir)
	}
	return topics
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ARENA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"ARENA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"ARENA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"ARENA_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"ARENA_CRON_INTERVAL" default:"1h"`
	JobTimeout time.Duration `envconfig:"ARENA_CRON_JOB_TIMEOUT" default:"10m"`
}

type RateLimitConfig struct {
	WriteWindow time.Duration `envconfig:"ARENA_RATE_LIMIT_WRITE_WINDOW" default:"1m"`
	WriteLimit  int           `envconfig:"ARENA_RATE_LIMIT_WRITE_LIMIT" default:"120"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ARENA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
