package config

const (
	EnvPrefix = "LEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv        = "LEDGER_APP_ENV"
	EnvPort          = "LEDGER_APP_PORT"
	EnvDBDSN         = "LEDGER_DB_DSN"
	EnvDBHost        = "LEDGER_DB_HOST"
	EnvDBUser        = "LEDGER_DB_USER"
	EnvDBName        = "LEDGER_DB_NAME"
	EnvUseSQLite     = "LEDGER_USE_SQLITE"
	EnvRedisURL      = "LEDGER_REDIS_URL"
	EnvJWTSecret     = "LEDGER_JWT_SECRET"
	EnvJWTIssuer     = "LEDGER_JWT_ISSUER"
	EnvStripeEnv     = "LEDGER_STRIPE_ENV"
	EnvStripeSecret  = "LEDGER_STRIPE_SECRET"
	EnvApprovalCodes = "LEDGER_APPROVAL_CODES"
	EnvGCPProjectID  = "LEDGER_GCP_PROJECT_ID"
	EnvMirrorTopic   = "LEDGER_PUBSUB_MIRROR_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
