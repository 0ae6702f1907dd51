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
	Stripe       StripeConfig
	Ledger       LedgerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"LEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LEDGER_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGER_DB_DSN"`
	Driver string `envconfig:"LEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGER_DB_USER"`
	LegacyPassword string `envconfig:"LEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGER_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"LEDGER_SQLITE_PATH" default:"ledger.db"`

	MaxOpenConns    int           `envconfig:"LEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LEDGER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEDGER_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEDGER_JWT_EXPIRATION_MINUTES" default:"720"`
}

// PasswordConfig tunes the argon2id parameters used for manager approval codes.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LEDGER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LEDGER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LEDGER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LEDGER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LEDGER_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LEDGER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LEDGER_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"LEDGER_STRIPE_API_KEY"`
	Secret string `envconfig:"LEDGER_STRIPE_SECRET"`
	Env    string `envconfig:"LEDGER_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// LedgerConfig holds payment ledger knobs.
type LedgerConfig struct {
	PaymentCounter string `envconfig:"LEDGER_PAYMENT_COUNTER" default:"payment_number"`
	OrderCounter   string `envconfig:"LEDGER_ORDER_COUNTER" default:"order_number"`
	// ApprovalCodes is a semicolon separated list of name:argon2id-hash pairs.
	ApprovalCodes     string        `envconfig:"LEDGER_APPROVAL_CODES"`
	ApprovalWindow    time.Duration `envconfig:"LEDGER_APPROVAL_RATE_LIMIT_WINDOW" default:"5m"`
	ApprovalUserLimit int           `envconfig:"LEDGER_APPROVAL_RATE_LIMIT_USER_LIMIT" default:"10"`
	ApprovalIPLimit   int           `envconfig:"LEDGER_APPROVAL_RATE_LIMIT_IP_LIMIT" default:"30"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig configures the ledger mirror feed. An empty topic disables it.
type PubSubConfig struct {
	LedgerMirrorTopic string `envconfig:"LEDGER_PUBSUB_MIRROR_TOPIC"`
}

// ApprovalCodeHashes splits ApprovalCodes into name -> encoded hash.
func (l LedgerConfig) ApprovalCodeHashes() (map[string]string, error) {
	out := map[string]string{}
	for _, raw := range strings.Split(l.ApprovalCodes, ";") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		hash = strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("invalid approval code entry %q (expected name:hash)", entry)
		}
		out[name] = hash
	}
	return out, nil
}

// MirrorEnabled reports whether mirror publishing has enough configuration to run.
func (p PubSubConfig) MirrorEnabled(gcp GCPConfig) bool {
	return strings.TrimSpace(p.LedgerMirrorTopic) != "" && strings.TrimSpace(gcp.ProjectID) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
