package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Credits       CreditsConfig
	Upload        UploadConfig
	Gemini        GeminiConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"DEALBRIEF_APP_ENV" required:"true"`
	Port         string `envconfig:"DEALBRIEF_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEALBRIEF_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEALBRIEF_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DEALBRIEF_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DEALBRIEF_DB_DSN"`
	Driver string `envconfig:"DEALBRIEF_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DEALBRIEF_DB_HOST"`
	LegacyPort     int    `envconfig:"DEALBRIEF_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DEALBRIEF_DB_USER"`
	LegacyPassword string `envconfig:"DEALBRIEF_DB_PASSWORD"`
	LegacyName     string `envconfig:"DEALBRIEF_DB_NAME"`
	LegacySSLMode  string `envconfig:"DEALBRIEF_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEALBRIEF_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEALBRIEF_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEALBRIEF_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEALBRIEF_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEALBRIEF_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEALBRIEF_REDIS_ADDR"`
	Password     string        `envconfig:"DEALBRIEF_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEALBRIEF_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEALBRIEF_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEALBRIEF_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEALBRIEF_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEALBRIEF_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEALBRIEF_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"DEALBRIEF_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"DEALBRIEF_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"DEALBRIEF_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"DEALBRIEF_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DEALBRIEF_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DEALBRIEF_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"DEALBRIEF_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"DEALBRIEF_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DEALBRIEF_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"DEALBRIEF_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEALBRIEF_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEALBRIEF_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"DEALBRIEF_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// CreditsConfig holds the credit economy constants. Changing a value here
// alters future rewards and charges only; recorded ledger entries keep the
// amounts they were written with.
type CreditsConfig struct {
	SignupBonus    int `envconfig:"DEALBRIEF_SIGNUP_BONUS" default:"25"`
	UploadReward   int `envconfig:"DEALBRIEF_UPLOAD_REWARD" default:"10"`
	DownloadCost   int `envconfig:"DEALBRIEF_DOWNLOAD_COST" default:"5"`
	MinBountyStake int `envconfig:"DEALBRIEF_MIN_BOUNTY_STAKE" default:"1"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"DEALBRIEF_MAX_UPLOAD_MB" default:"50"`
}

// MaxUploadBytes returns the request body cap for report uploads.
func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadMB) << 20
}

type GeminiConfig struct {
	APIKey      string        `envconfig:"DEALBRIEF_GEMINI_API_KEY"`
	Model       string        `envconfig:"DEALBRIEF_GEMINI_MODEL" default:"gemini-1.5-flash"`
	Timeout     time.Duration `envconfig:"DEALBRIEF_GEMINI_TIMEOUT" default:"45s"`
	MaxAttempts int           `envconfig:"DEALBRIEF_GEMINI_MAX_ATTEMPTS" default:"3"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DEALBRIEF_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"DEALBRIEF_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DEALBRIEF_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"DEALBRIEF_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"DEALBRIEF_GCS_DOWNLOAD_URL_EXPIRY" default:"15m"`
}

type PubSubConfig struct {
	DomainTopic               string `envconfig:"DEALBRIEF_PUBSUB_DOMAIN_TOPIC" default:"dbf-domain-events"`
	NotificationsSubscription string `envconfig:"DEALBRIEF_PUBSUB_NOTIFICATIONS_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription     string `envconfig:"DEALBRIEF_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"DEALBRIEF_BIGQUERY_DATASET" default:"dealbrief"`
	MarketplaceEventsTable string `envconfig:"DEALBRIEF_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DEALBRIEF_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DEALBRIEF_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DEALBRIEF_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
