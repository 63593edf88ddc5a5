package config

// EnvPrefix is handed to envconfig; every field declares its full variable name.
const EnvPrefix = "LOCALSTORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv      = "LOCALSTORE_APP_ENV"
	EnvPort        = "LOCALSTORE_APP_PORT"
	EnvDBDSN       = "LOCALSTORE_DB_DSN"
	EnvDBHost      = "LOCALSTORE_DB_HOST"
	EnvDBUser      = "LOCALSTORE_DB_USER"
	EnvDBName      = "LOCALSTORE_DB_NAME"
	EnvUseSQLite   = "LOCALSTORE_USE_SQLITE"
	EnvRedisURL    = "LOCALSTORE_REDIS_URL"
	EnvCartStore   = "LOCALSTORE_CART_STORE"
	EnvCartLock    = "LOCALSTORE_CART_LOCK"
	EnvCartTTL     = "LOCALSTORE_CART_TTL"
	EnvCartTaxRate = "LOCALSTORE_CART_DISPLAY_TAX_RATE"
)

const (
	CartStorePostgres = "postgres"
	CartStoreRedis    = "redis"
	CartStoreMemory   = "memory"

	CartLockLocal = "local"
	CartLockRedis = "redis"
)

var componentDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
