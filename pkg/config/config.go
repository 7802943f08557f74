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
	Scheduler    SchedulerConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	Billing      BillingConfig
	Messaging    MessagingConfig
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
	Env          string `envconfig:"PERSONAPATH_APP_ENV" required:"true"`
	Port         string `envconfig:"PERSONAPATH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PERSONAPATH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PERSONAPATH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PERSONAPATH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PERSONAPATH_DB_DSN"`
	Driver string `envconfig:"PERSONAPATH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PERSONAPATH_DB_HOST"`
	LegacyPort     int    `envconfig:"PERSONAPATH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PERSONAPATH_DB_USER"`
	LegacyPassword string `envconfig:"PERSONAPATH_DB_PASSWORD"`
	LegacyName     string `envconfig:"PERSONAPATH_DB_NAME"`
	LegacySSLMode  string `envconfig:"PERSONAPATH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PERSONAPATH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PERSONAPATH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PERSONAPATH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PERSONAPATH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PERSONAPATH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PERSONAPATH_REDIS_ADDR"`
	Password     string        `envconfig:"PERSONAPATH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERSONAPATH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERSONAPATH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERSONAPATH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERSONAPATH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERSONAPATH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PERSONAPATH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"PERSONAPATH_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PERSONAPATH_JWT_ISSUER" required:"true"`
}

// SchedulerConfig authenticates external scheduler invocations of the
// periodic jobs.
type SchedulerConfig struct {
	Secret string `envconfig:"PERSONAPATH_SCHEDULER_SECRET" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PERSONAPATH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PERSONAPATH_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PERSONAPATH_STRIPE_API_KEY"`
	Secret string `envconfig:"PERSONAPATH_STRIPE_SECRET"`
	Env    string `envconfig:"PERSONAPATH_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"PERSONAPATH_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"PERSONAPATH_SENDGRID_FROM_EMAIL"`
}

// BillingConfig carries the price catalog and the eligibility windows used
// by the billing jobs. Amounts are minor currency units.
type BillingConfig struct {
	EarlyBirdPriceID    string `envconfig:"PERSONAPATH_STRIPE_EARLY_BIRD_PRICE_ID"`
	RegularPriceID      string `envconfig:"PERSONAPATH_STRIPE_REGULAR_PRICE_ID"`
	AddonPackPriceID    string `envconfig:"PERSONAPATH_STRIPE_ADDON_PACK_PRICE_ID"`
	EarlyBirdPriceCents int64  `envconfig:"PERSONAPATH_BILLING_EARLY_BIRD_CENTS" default:"2900"`
	RegularPriceCents   int64  `envconfig:"PERSONAPATH_BILLING_REGULAR_CENTS" default:"4900"`
	PromoLimit          int    `envconfig:"PERSONAPATH_BILLING_PROMO_LIMIT" default:"30"`
	PromoPhaseDays      int    `envconfig:"PERSONAPATH_BILLING_PROMO_PHASE_DAYS" default:"365"`
	ExpiryReminderDays  int    `envconfig:"PERSONAPATH_BILLING_EXPIRY_REMINDER_DAYS" default:"7"`
	PriceNoticeDays     int    `envconfig:"PERSONAPATH_BILLING_PRICE_NOTICE_DAYS" default:"30"`
}

// MessagingConfig gates the drip and assessment reminder jobs.
type MessagingConfig struct {
	ReminderMaxCount  int    `envconfig:"PERSONAPATH_REMINDER_MAX_COUNT" default:"3"`
	ReminderDelayDays int    `envconfig:"PERSONAPATH_REMINDER_DELAY_DAYS" default:"3"`
	AssessmentURL     string `envconfig:"PERSONAPATH_ASSESSMENT_URL"`
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
