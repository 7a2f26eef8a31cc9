package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the immutable runtime configuration, loaded once from the
// environment at startup. Nothing reads environment variables after this.
type Config struct {
	Issuer string `env:"AUTH_ISSUER" envDefault:"voltplan-auth"`

	RSABits         int           `env:"AUTH_RSA_BITS" envDefault:"2048"`
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	RefreshRotate   bool          `env:"AUTH_REFRESH_ROTATE" envDefault:"true"`

	DatabaseFile  string `env:"AUTH_DATABASE_FILE" envDefault:"voltplan.db"`
	SaltFile      string `env:"AUTH_SALT_FILE" envDefault:"refresh_salt"`
	MasterKeyFile string `env:"AUTH_MASTER_KEY_FILE" envDefault:"master_key"`

	// Optional bootstrap admin, created only when the users table is empty.
	AdminEmail    string `env:"AUTH_ADMIN_EMAIL"`
	AdminPassword string `env:"AUTH_ADMIN_PASSWORD"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
	SessionRetention     time.Duration `env:"SESSION_RETENTION" envDefault:"720h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
