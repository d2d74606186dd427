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
	Dispatch     DispatchConfig
	Scoring      ScoringConfig
	Payouts      PayoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	GoogleMaps   GoogleMapsConfig
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
	Env          string `envconfig:"PIERSIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"PIERSIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PIERSIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIERSIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PIERSIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PIERSIDE_DB_DSN"`
	Driver string `envconfig:"PIERSIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PIERSIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"PIERSIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PIERSIDE_DB_USER"`
	LegacyPassword string `envconfig:"PIERSIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PIERSIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PIERSIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PIERSIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIERSIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIERSIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIERSIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIERSIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PIERSIDE_REDIS_ADDR"`
	Password     string        `envconfig:"PIERSIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIERSIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIERSIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIERSIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIERSIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIERSIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIERSIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PIERSIDE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PIERSIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PIERSIDE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// DispatchConfig carries the knobs for offer windows and automatic assignment.
type DispatchConfig struct {
	OfferTTL           time.Duration `envconfig:"PIERSIDE_DISPATCH_OFFER_TTL" default:"30s"`
	PreparationGrace   time.Duration `envconfig:"PIERSIDE_DISPATCH_PREPARATION_GRACE" default:"10m"`
	MaxAssignAttempts  int           `envconfig:"PIERSIDE_DISPATCH_MAX_ASSIGN_ATTEMPTS" default:"5"`
	RetryDelay         time.Duration `envconfig:"PIERSIDE_DISPATCH_RETRY_DELAY" default:"5s"`
	SweepInterval      time.Duration `envconfig:"PIERSIDE_DISPATCH_SWEEP_INTERVAL" default:"5s"`
	LateDeliverySlack  time.Duration `envconfig:"PIERSIDE_DISPATCH_LATE_SLACK" default:"15m"`
	OfferLockTTL       time.Duration `envconfig:"PIERSIDE_DISPATCH_OFFER_LOCK_TTL" default:"45s"`
	PendingQueueDepth  int           `envconfig:"PIERSIDE_DISPATCH_PENDING_QUEUE_DEPTH" default:"256"`
	AvailabilityWindow time.Duration `envconfig:"PIERSIDE_DISPATCH_AVAILABILITY_WINDOW" default:"2m"`
}

// ScoringConfig carries the efficiency point rules.
type ScoringConfig struct {
	PointsPerAcceptance         int     `envconfig:"PIERSIDE_POINTS_PER_ACCEPTANCE" default:"2"`
	PointsPerPenalizedRejection int     `envconfig:"PIERSIDE_POINTS_PER_PENALIZED_REJECTION" default:"-5"`
	BonusThresholdPercent       float64 `envconfig:"PIERSIDE_BONUS_THRESHOLD_PERCENT" default:"70"`
	BonusAmountPerOrder         string  `envconfig:"PIERSIDE_BONUS_AMOUNT_PER_ORDER" default:"1.00"`
}

// PayoutConfig controls the weekly payout cadence.
type PayoutConfig struct {
	PayoutWeekday int `envconfig:"PIERSIDE_PAYOUT_WEEKDAY" default:"6"` // 6 = Saturday
	PayoutHourUTC int `envconfig:"PIERSIDE_PAYOUT_HOUR_UTC" default:"9"`
}

// RateLimitConfig throttles the API per client IP. Zero values leave
// the middleware as a passthrough.
type RateLimitConfig struct {
	Window  time.Duration `envconfig:"PIERSIDE_RATE_LIMIT_WINDOW" default:"0"`
	IPLimit int           `envconfig:"PIERSIDE_RATE_LIMIT_IP_LIMIT" default:"0"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PIERSIDE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PIERSIDE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PIERSIDE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PIERSIDE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PIERSIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"PIERSIDE_PUBSUB_EVENTS_TOPIC" default:"pierside-realtime-events"`
	EventsSubscription string `envconfig:"PIERSIDE_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PIERSIDE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PIERSIDE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PIERSIDE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PIERSIDE_OUTBOX_RETENTION_DAYS" default:"14"`
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"PIERSIDE_GOOGLE_MAPS_API_KEY"`
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
