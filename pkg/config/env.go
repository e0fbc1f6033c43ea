package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names so
// the prefix only matters for ad-hoc lookups.
const EnvPrefix = "MEKONGCART"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "MEKONGCART_APP_ENV"
	EnvPort   = "MEKONGCART_APP_PORT"

	EnvDBDSN  = "MEKONGCART_DB_DSN"
	EnvDBHost = "MEKONGCART_DB_HOST"
	EnvDBUser = "MEKONGCART_DB_USER"
	EnvDBName = "MEKONGCART_DB_NAME"

	EnvRedisURL = "MEKONGCART_REDIS_URL"
)

var fallbackDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
