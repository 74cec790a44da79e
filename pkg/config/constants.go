package config

const EnvPrefix = "VG"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "VG_APP_ENV"
	EnvPort     = "VG_APP_PORT"
	EnvLogLevel = "VG_LOG_LEVEL"

	EnvDBDSN    = "VG_DB_DSN"
	EnvDBDriver = "VG_DB_DRIVER"
	EnvDBHost   = "VG_DB_HOST"
	EnvDBUser   = "VG_DB_USER"
	EnvDBName   = "VG_DB_NAME"

	EnvRedisURL = "VG_REDIS_URL"

	EnvPaystackBaseURL         = "VG_PAYSTACK_BASE_URL"
	EnvPaystackSecretKey       = "VG_PAYSTACK_SECRET_KEY"
	EnvPaystackRedirectURL     = "VG_PAYSTACK_REDIRECT_URL"
	EnvPaystackNotificationURL = "VG_PAYSTACK_NOTIFICATION_URL"

	EnvCORSOrigin = "VG_CORS_ORIGIN"

	EnvResendAPIKey = "VG_RESEND_API_KEY"
	EnvResendFrom   = "VG_RESEND_FROM"
	EnvContactTo    = "VG_CONTACT_TO"

	EnvRateLimitWindow = "VG_RATE_LIMIT_WINDOW"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
