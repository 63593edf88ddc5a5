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
	Cart         CartConfig
	Catalog      CatalogConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOCALSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"LOCALSTORE_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"LOCALSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOCALSTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"LOCALSTORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOCALSTORE_DB_DSN"`
	Driver string `envconfig:"LOCALSTORE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"LOCALSTORE_DB_HOST"`
	Port     int    `envconfig:"LOCALSTORE_DB_PORT" default:"5432"`
	User     string `envconfig:"LOCALSTORE_DB_USER"`
	Password string `envconfig:"LOCALSTORE_DB_PASSWORD"`
	Name     string `envconfig:"LOCALSTORE_DB_NAME"`
	SSLMode  string `envconfig:"LOCALSTORE_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"LOCALSTORE_SQLITE_PATH" default:"localstore.db"`

	MaxOpenConns    int           `envconfig:"LOCALSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOCALSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOCALSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOCALSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOCALSTORE_REDIS_URL"`
	Address      string        `envconfig:"LOCALSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"LOCALSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOCALSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOCALSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOCALSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOCALSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOCALSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOCALSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// CartConfig controls cart persistence, locking and expiry.
type CartConfig struct {
	Store          string        `envconfig:"LOCALSTORE_CART_STORE" default:"postgres"`
	Lock           string        `envconfig:"LOCALSTORE_CART_LOCK" default:"local"`
	TTL            time.Duration `envconfig:"LOCALSTORE_CART_TTL" default:"24h"`
	LockTTL        time.Duration `envconfig:"LOCALSTORE_CART_LOCK_TTL" default:"10s"`
	LockRetry      time.Duration `envconfig:"LOCALSTORE_CART_LOCK_RETRY" default:"25ms"`
	DisplayTaxRate string        `envconfig:"LOCALSTORE_CART_DISPLAY_TAX_RATE" default:"0"`
}

func (c CartConfig) validate() error {
	switch strings.ToLower(c.Store) {
	case CartStorePostgres, CartStoreRedis, CartStoreMemory:
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvCartStore, CartStorePostgres, CartStoreRedis, CartStoreMemory)
	}
	switch strings.ToLower(c.Lock) {
	case CartLockLocal, CartLockRedis:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvCartLock, CartLockLocal, CartLockRedis)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartTTL)
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	return nil
}

// TaxRate parses the display-only tax fraction (0.08 for 8%).
func (c CartConfig) TaxRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.DisplayTaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be a fraction in [0, 1)", EnvCartTaxRate)
	}
	return rate, nil
}

// NeedsRedis reports whether the cart stack depends on redis.
func (c CartConfig) NeedsRedis() bool {
	return strings.EqualFold(c.Store, CartStoreRedis) || strings.EqualFold(c.Lock, CartLockRedis)
}

type CatalogConfig struct {
	DefaultPageSize int `envconfig:"LOCALSTORE_CATALOG_PAGE_SIZE" default:"12"`
	FeaturedLimit   int `envconfig:"LOCALSTORE_CATALOG_FEATURED_LIMIT" default:"8"`
}

type RateLimitConfig struct {
	CartWindow  time.Duration `envconfig:"LOCALSTORE_RATE_LIMIT_CART_WINDOW" default:"1m"`
	CartIPLimit int           `envconfig:"LOCALSTORE_RATE_LIMIT_CART_IP_LIMIT" default:"120"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"LOCALSTORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOCALSTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOCALSTORE_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LOCALSTORE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"LOCALSTORE_CRON_LOCK_TTL" default:"55m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
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
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
