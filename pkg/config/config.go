package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
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
	Env          string `envconfig:"MEKONGCART_APP_ENV" required:"true"`
	Port         string `envconfig:"MEKONGCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MEKONGCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEKONGCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MEKONGCART_DB_DSN"`
	Driver string `envconfig:"MEKONGCART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MEKONGCART_DB_HOST"`
	Port     int    `envconfig:"MEKONGCART_DB_PORT" default:"5432"`
	User     string `envconfig:"MEKONGCART_DB_USER"`
	Password string `envconfig:"MEKONGCART_DB_PASSWORD"`
	Name     string `envconfig:"MEKONGCART_DB_NAME"`
	SSLMode  string `envconfig:"MEKONGCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEKONGCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEKONGCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEKONGCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEKONGCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEKONGCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MEKONGCART_REDIS_ADDR"`
	Password     string        `envconfig:"MEKONGCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEKONGCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEKONGCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEKONGCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEKONGCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEKONGCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEKONGCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MEKONGCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MEKONGCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MEKONGCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GatewayConfig carries the payment provider credentials and endpoints.
// It is injected into the gateway adapter; nothing reads it ambiently.
type GatewayConfig struct {
	Endpoint     string        `envconfig:"MEKONGCART_GATEWAY_ENDPOINT" required:"true"`
	MerchantCode string        `envconfig:"MEKONGCART_GATEWAY_MERCHANT_CODE" required:"true"`
	Secret       string        `envconfig:"MEKONGCART_GATEWAY_SECRET" required:"true"`
	ReturnURL    string        `envconfig:"MEKONGCART_GATEWAY_RETURN_URL" required:"true"`
	NotifyURL    string        `envconfig:"MEKONGCART_GATEWAY_NOTIFY_URL" required:"true"`
	Timeout      time.Duration `envconfig:"MEKONGCART_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries   int           `envconfig:"MEKONGCART_GATEWAY_MAX_RETRIES" default:"2"`
}

type CheckoutConfig struct {
	ShippingFee    int64 `envconfig:"MEKONGCART_CHECKOUT_SHIPPING_FEE" default:"30000"`
	MaxLineItems   int   `envconfig:"MEKONGCART_CHECKOUT_MAX_LINE_ITEMS" default:"50"`
	MaxVouchers    int   `envconfig:"MEKONGCART_CHECKOUT_MAX_VOUCHERS" default:"5"`
	CallbackDedupe time.Duration `envconfig:"MEKONGCART_CALLBACK_DEDUPE_TTL" default:"72h"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"MEKONGCART_PUBSUB_PROJECT_ID"`
	OrdersTopic string `envconfig:"MEKONGCART_PUBSUB_ORDERS_TOPIC" default:"mc-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MEKONGCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MEKONGCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MEKONGCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range fallbackDBEnvVars {
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
