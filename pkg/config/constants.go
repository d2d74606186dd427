package config

const (
	EnvPrefix = "PIERSIDE"

	AppEnvDev     = "development"
	AppEnvStaging = "staging"
	AppEnvProd    = "production"
)

const (
	EnvAppEnv    = "PIERSIDE_APP_ENV"
	EnvAppPort   = "PIERSIDE_APP_PORT"
	EnvLogLevel  = "PIERSIDE_LOG_LEVEL"
	EnvDBDSN     = "PIERSIDE_DB_DSN"
	EnvDBHost    = "PIERSIDE_DB_HOST"
	EnvDBPort    = "PIERSIDE_DB_PORT"
	EnvDBUser    = "PIERSIDE_DB_USER"
	EnvDBPass    = "PIERSIDE_DB_PASSWORD"
	EnvDBName    = "PIERSIDE_DB_NAME"
	EnvRedisURL  = "PIERSIDE_REDIS_URL"
	EnvJWTSecret = "PIERSIDE_JWT_SECRET"
	EnvJWTIssuer = "PIERSIDE_JWT_ISSUER"
	EnvGCPProj   = "PIERSIDE_GCP_PROJECT_ID"
	EnvPubSubSub = "PIERSIDE_PUBSUB_EVENTS_SUBSCRIPTION"
)

// legacyDBEnvVars are the variables that must all be present when
// PIERSIDE_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
