package config

// EnvPrefix is handed to envconfig; every field also carries its full name as
// an alternate key so the prefixed nested lookups resolve to the names below.
const EnvPrefix = "ARENA"

const (
	AppEnvDev   = "dev"
	AppEnvProd  = "prod"
	AppEnvStage = "stage"
)

const (
	EnvAppEnv       = "ARENA_APP_ENV"
	EnvPort         = "ARENA_APP_PORT"
	EnvLogLevel     = "ARENA_LOG_LEVEL"
	EnvLogWarnStack = "ARENA_LOG_WARN_STACK"
	EnvServiceKind  = "ARENA_SERVICE_KIND"

	EnvDBDSN             = "ARENA_DB_DSN"
	EnvDBDriver          = "ARENA_DB_DRIVER"
	EnvDBHost            = "ARENA_DB_HOST"
	EnvDBPort            = "ARENA_DB_PORT"
	EnvDBUser            = "ARENA_DB_USER"
	EnvDBPassword        = "ARENA_DB_PASSWORD"
	EnvDBName            = "ARENA_DB_NAME"
	EnvDBSSLMode         = "ARENA_DB_SSLMODE"
	EnvDBMaxOpenConns    = "ARENA_DB_MAX_OPEN_CONNS"
	EnvDBMaxIdleConns    = "ARENA_DB_MAX_IDLE_CONNS"
	EnvDBConnMaxLifetime = "ARENA_DB_CONN_MAX_LIFETIME"
	EnvDBConnMaxIdleTime = "ARENA_DB_CONN_MAX_IDLE_TIME"
	EnvDBConnectTimeout  = "ARENA_DB_CONNECT_TIMEOUT"

	EnvRedisURL      = "ARENA_REDIS_URL"
	EnvRedisAddr     = "ARENA_REDIS_ADDR"
	EnvRedisPassword = "ARENA_REDIS_PASSWORD"
	EnvRedisDB       = "ARENA_REDIS_DB"

	EnvJWTSecret = "ARENA_JWT_SECRET"
	EnvJWTIssuer = "ARENA_JWT_ISSUER"

	EnvBillingTxMaxAttempts    = "ARENA_BILLING_TX_MAX_ATTEMPTS"
	EnvBillingTxInitialBackoff = "ARENA_BILLING_TX_INITIAL_BACKOFF"
	EnvBillingTxMaxBackoff     = "ARENA_BILLING_TX_MAX_BACKOFF"
	EnvBillingFacilityPrefix   = "ARENA_BILLING_FACILITY_INVOICE_PREFIX"
	EnvBillingAcademyPrefix    = "ARENA_BILLING_ACADEMY_INVOICE_PREFIX"
	EnvBillingManualRefPrefix  = "ARENA_BILLING_MANUAL_REFERENCE_PREFIX"
	EnvBillingTimezone         = "ARENA_BILLING_TIMEZONE"

	EnvAutoMigrate = "ARENA_AUTO_MIGRATE"

	EnvIdempotencyTTL = "ARENA_IDEMPOTENCY_TTL"

	EnvGCPProjectID       = "ARENA_GCP_PROJECT_ID"
	EnvGCPCredentialsJSON = "ARENA_GCP_CREDENTIALS_JSON"

	EnvPubSubBillingTopic   = "ARENA_PUBSUB_BILLING_TOPIC"
	EnvPubSubDirectoryTopic = "ARENA_PUBSUB_DIRECTORY_TOPIC"

	EnvOutboxBatchSize      = "ARENA_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollIntervalMS = "ARENA_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts    = "ARENA_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxRetention      = "ARENA_OUTBOX_RETENTION"

	EnvCronInterval   = "ARENA_CRON_INTERVAL"
	EnvCronJobTimeout = "ARENA_CRON_JOB_TIMEOUT"

	EnvCORSAllowedOrigins = "ARENA_CORS_ALLOWED_ORIGINS"

	EnvRateLimitWriteWindow = "ARENA_RATE_LIMIT_WRITE_WINDOW"
	EnvRateLimitWriteLimit  = "ARENA_RATE_LIMIT_WRITE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
