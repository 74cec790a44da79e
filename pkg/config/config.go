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
	DB           DBConfig
	Redis        RedisConfig
	Paystack     PaystackConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Mail         MailConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VG_APP_ENV" required:"true"`
	Port         string `envconfig:"VG_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"VG_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VG_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VG_DB_DSN"`
	Driver string `envconfig:"VG_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VG_DB_HOST"`
	Port     int    `envconfig:"VG_DB_PORT" default:"5432"`
	User     string `envconfig:"VG_DB_USER"`
	Password string `envconfig:"VG_DB_PASSWORD"`
	Name     string `envconfig:"VG_DB_NAME"`
	SSLMode  string `envconfig:"VG_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VG_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VG_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VG_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VG_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the database driver is sqlite (local runs only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"VG_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VG_REDIS_ADDR"`
	Password     string        `envconfig:"VG_REDIS_PASSWORD"`
	DB           int           `envconfig:"VG_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VG_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VG_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VG_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VG_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VG_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaystackConfig holds the payment provider credentials. None of the fields
// are required at boot; the payment endpoints report a configuration error
// when they are missing.
type PaystackConfig struct {
	BaseURL         string        `envconfig:"VG_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	SecretKey       string        `envconfig:"VG_PAYSTACK_SECRET_KEY"`
	RedirectURL     string        `envconfig:"VG_PAYSTACK_REDIRECT_URL"`
	NotificationURL string        `envconfig:"VG_PAYSTACK_NOTIFICATION_URL"`
	ReferencePrefix string        `envconfig:"VG_PAYSTACK_REFERENCE_PREFIX" default:"VG"`
	Currency        string        `envconfig:"VG_PAYSTACK_CURRENCY" default:"GHS"`
	Timeout         time.Duration `envconfig:"VG_PAYSTACK_TIMEOUT" default:"10s"`
}

// Missing returns the names of the settings required to initialize a charge.
func (p PaystackConfig) Missing() []string {
	missing := []string{}
	if strings.TrimSpace(p.BaseURL) == "" {
		missing = append(missing, EnvPaystackBaseURL)
	}
	if strings.TrimSpace(p.SecretKey) == "" {
		missing = append(missing, EnvPaystackSecretKey)
	}
	if strings.TrimSpace(p.RedirectURL) == "" {
		missing = append(missing, EnvPaystackRedirectURL)
	}
	return missing
}

type RateLimitConfig struct {
	Window          time.Duration `envconfig:"VG_RATE_LIMIT_WINDOW" default:"15m"`
	APILimit        int           `envconfig:"VG_RATE_LIMIT_API" default:"300"`
	OrdersLimit     int           `envconfig:"VG_RATE_LIMIT_ORDERS" default:"20"`
	InitializeLimit int           `envconfig:"VG_RATE_LIMIT_PAYMENT_INITIALIZE" default:"30"`
	VerifyLimit     int           `envconfig:"VG_RATE_LIMIT_PAYMENT_VERIFY" default:"120"`
	ContactLimit    int           `envconfig:"VG_RATE_LIMIT_CONTACT" default:"10"`

	// TrustedProxyHops counts the proxies that append to X-Forwarded-For
	// (1 behind a single load balancer). Zero keys limits on the peer address.
	TrustedProxyHops int `envconfig:"VG_TRUSTED_PROXY_HOPS" default:"0"`
}

type CORSConfig struct {
	AllowedOrigins string `envconfig:"VG_CORS_ORIGIN" default:"http://localhost:5173"`
}

// Origins splits the comma separated origin list.
func (c CORSConfig) Origins() []string {
	out := []string{}
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

type MailConfig struct {
	ResendBaseURL string `envconfig:"VG_RESEND_BASE_URL" default:"https://api.resend.com"`
	ResendAPIKey  string `envconfig:"VG_RESEND_API_KEY"`
	From          string `envconfig:"VG_RESEND_FROM"`
	ContactTo     string `envconfig:"VG_CONTACT_TO"`
}

func (m MailConfig) Configured() bool {
	return strings.TrimSpace(m.ResendAPIKey) != "" &&
		strings.TrimSpace(m.From) != "" &&
		strings.TrimSpace(m.ContactTo) != ""
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VG_AUTO_MIGRATE" default:"false"`
	SeedCatalog bool `envconfig:"VG_SEED_CATALOG" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"VG_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VG_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VG_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VG_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"VG_PUBSUB_ORDERS_TOPIC" default:"vg-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VG_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VG_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VG_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// MetricsAddr is where the relay serves /metrics; empty disables it.
	MetricsAddr string `envconfig:"VG_OUTBOX_METRICS_ADDR" default:":9102"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:vitalgreen.db?cache=shared"
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
