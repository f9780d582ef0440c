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
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Invites      InvitesConfig
	Eventing     EventingConfig
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
	Env          string `envconfig:"GUIDELY_APP_ENV" required:"true"`
	Port         string `envconfig:"GUIDELY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GUIDELY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GUIDELY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"GUIDELY_DB_DSN"`

	Host     string `envconfig:"GUIDELY_DB_HOST"`
	Port     int    `envconfig:"GUIDELY_DB_PORT" default:"5432"`
	User     string `envconfig:"GUIDELY_DB_USER"`
	Password string `envconfig:"GUIDELY_DB_PASSWORD"`
	Name     string `envconfig:"GUIDELY_DB_NAME"`
	SSLMode  string `envconfig:"GUIDELY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GUIDELY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GUIDELY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GUIDELY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GUIDELY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GUIDELY_REDIS_URL"`
	Address      string        `envconfig:"GUIDELY_REDIS_ADDR"`
	Password     string        `envconfig:"GUIDELY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GUIDELY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GUIDELY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GUIDELY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GUIDELY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GUIDELY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GUIDELY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"GUIDELY_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"GUIDELY_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"GUIDELY_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTokenTTLMinutes int    `envconfig:"GUIDELY_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GUIDELY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GUIDELY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GUIDELY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GUIDELY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GUIDELY_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GUIDELY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"GUIDELY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"GUIDELY_PUBSUB_DOMAIN_TOPIC" default:"guidely-domain-events"`
	DomainSubscription string `envconfig:"GUIDELY_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GUIDELY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GUIDELY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GUIDELY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type InvitesConfig struct {
	FromEmail  string `envconfig:"GUIDELY_INVITES_FROM_EMAIL" default:"invites@guidely.app"`
	AcceptURL  string `envconfig:"GUIDELY_INVITES_ACCEPT_URL" default:"https://guidely.app/register"`
	SenderKind string `envconfig:"GUIDELY_INVITES_SENDER" default:"log"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"GUIDELY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for envName, value := range map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	} {
		if value == "" {
			missing = append(missing, envName)
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
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Name,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	db.DSN = u.String()
	return nil
}
