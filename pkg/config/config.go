package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Gateway      GatewayConfig
	Payout       PayoutConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PACKFINDERZ_APP_ENV" required:"true"`
	Port         string   `envconfig:"PACKFINDERZ_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PACKFINDERZ_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"PACKFINDERZ_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"PACKFINDERZ_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PACKFINDERZ_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKFINDERZ_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKFINDERZ_DB_DSN"`
	Driver string `envconfig:"PACKFINDERZ_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKFINDERZ_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKFINDERZ_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKFINDERZ_DB_USER"`
	LegacyPassword string `envconfig:"PACKFINDERZ_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKFINDERZ_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKFINDERZ_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKFINDERZ_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKFINDERZ_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKFINDERZ_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL            string        `envconfig:"PACKFINDERZ_REDIS_URL" required:"true"`
	Address        string        `envconfig:"PACKFINDERZ_REDIS_ADDR"`
	Password       string        `envconfig:"PACKFINDERZ_REDIS_PASSWORD"`
	DB             int           `envconfig:"PACKFINDERZ_REDIS_DB" default:"0"`
	PoolSize       int           `envconfig:"PACKFINDERZ_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns   int           `envconfig:"PACKFINDERZ_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout    time.Duration `envconfig:"PACKFINDERZ_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout    time.Duration `envconfig:"PACKFINDERZ_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout   time.Duration `envconfig:"PACKFINDERZ_REDIS_WRITE_TIMEOUT" default:"5s"`
	IdempotencyTTL time.Duration `envconfig:"PACKFINDERZ_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret string `envconfig:"PACKFINDERZ_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PACKFINDERZ_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PACKFINDERZ_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PACKFINDERZ_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	GatewayCallbackTTL time.Duration `envconfig:"PACKFINDERZ_EVENTING_GATEWAY_CALLBACK_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PACKFINDERZ_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PayoutsTopic string `envconfig:"PACKFINDERZ_PUBSUB_PAYOUTS_TOPIC" default:"pf-payout-events"`
	GatewayTopic string `envconfig:"PACKFINDERZ_PUBSUB_GATEWAY_TOPIC" default:"pf-payout-transfers"`
	// Endpoint overrides the Pub/Sub API host, e.g. a regional endpoint.
	Endpoint string `envconfig:"PACKFINDERZ_PUBSUB_ENDPOINT"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PACKFINDERZ_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PACKFINDERZ_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PACKFINDERZ_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PACKFINDERZ_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetention   int `envconfig:"PACKFINDERZ_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type GatewayConfig struct {
	Name          string `envconfig:"PACKFINDERZ_GATEWAY_NAME" default:"bank-transfer"`
	WebhookSecret string `envconfig:"PACKFINDERZ_GATEWAY_WEBHOOK_SECRET"`
}

// PayoutConfig carries the business rules used to price and schedule payouts.
// Rates are percentages.
type PayoutConfig struct {
	DefaultCommissionRate decimal.Decimal   `envconfig:"PACKFINDERZ_PAYOUT_DEFAULT_COMMISSION_RATE" default:"10"`
	TierRates             map[string]string `envconfig:"PACKFINDERZ_PAYOUT_TIER_RATES"`
	CommissionGSTRate     decimal.Decimal   `envconfig:"PACKFINDERZ_PAYOUT_COMMISSION_GST_RATE" default:"18"`
	TDSRate               decimal.Decimal   `envconfig:"PACKFINDERZ_PAYOUT_TDS_RATE" default:"1"`
	TDSRateNoPAN          decimal.Decimal   `envconfig:"PACKFINDERZ_PAYOUT_TDS_RATE_NO_PAN" default:"5"`
	ReturnFee             decimal.Decimal   `envconfig:"PACKFINDERZ_PAYOUT_RETURN_FEE" default:"150.00"`
	ReturnWindowDays      int               `envconfig:"PACKFINDERZ_PAYOUT_RETURN_WINDOW_DAYS" default:"30"`
	SkipWeekends          bool              `envconfig:"PACKFINDERZ_PAYOUT_SKIP_WEEKENDS" default:"false"`
	ProcessingSLA         time.Duration     `envconfig:"PACKFINDERZ_PAYOUT_PROCESSING_SLA" default:"72h"`
	ReconcileLookbackDays int               `envconfig:"PACKFINDERZ_PAYOUT_RECONCILE_LOOKBACK_DAYS" default:"30"`
}

// TierRate returns the configured commission rate for a vendor tier.
func (p PayoutConfig) TierRate(tier string) (decimal.Decimal, bool) {
	raw, ok := p.TierRates[strings.ToLower(strings.TrimSpace(tier))]
	if !ok {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return rate, true
}

func (p *PayoutConfig) validate() error {
	hundred := decimal.NewFromInt(100)
	rates := map[string]decimal.Decimal{
		EnvPayoutDefaultCommission: p.DefaultCommissionRate,
		EnvPayoutCommissionGSTRate: p.CommissionGSTRate,
		EnvPayoutTDSRate:           p.TDSRate,
		EnvPayoutTDSRateNoPAN:      p.TDSRateNoPAN,
	}
	for env, rate := range rates {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return fmt.Errorf("%s must be between 0 and 100", env)
		}
	}
	normalized := make(map[string]string, len(p.TierRates))
	for tier, raw := range p.TierRates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: invalid rate for tier %q", EnvPayoutTierRates, tier)
		}
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return fmt.Errorf("%s: rate for tier %q must be between 0 and 100", EnvPayoutTierRates, tier)
		}
		normalized[strings.ToLower(strings.TrimSpace(tier))] = raw
	}
	p.TierRates = normalized
	if p.ReturnFee.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvPayoutReturnFee)
	}
	if p.ReturnWindowDays < 0 {
		return fmt.Errorf("%s must not be negative", EnvPayoutReturnWindowDays)
	}
	return nil
}

// CronConfig sets the worker tick and how often each job may run.
// The processing SLA check runs on every tick.
type CronConfig struct {
	Interval       time.Duration `envconfig:"PACKFINDERZ_CRON_INTERVAL" default:"5m"`
	LockTTL        time.Duration `envconfig:"PACKFINDERZ_CRON_LOCK_TTL" default:"4m"`
	JobTimeout     time.Duration `envconfig:"PACKFINDERZ_CRON_JOB_TIMEOUT" default:"2m"`
	ReconcileEvery time.Duration `envconfig:"PACKFINDERZ_CRON_RECONCILE_EVERY" default:"24h"`
	IntegrityEvery time.Duration `envconfig:"PACKFINDERZ_CRON_INTEGRITY_EVERY" default:"6h"`
	RetentionEvery time.Duration `envconfig:"PACKFINDERZ_CRON_RETENTION_EVERY" default:"24h"`
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
