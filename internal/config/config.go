package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is read from PRAISE_* environment variables. A .env file, when
// present, fills in variables that are not already set.
type Config struct {
	Port      string `env:"PRAISE_PORT,default=8080"`
	DBPath    string `env:"PRAISE_DB_PATH,default=praisepoints.db"`
	LogLevel  string `env:"PRAISE_LOG_LEVEL,default=info"`
	LogFormat string `env:"PRAISE_LOG_FORMAT,default=text"`

	JWTSecret string        `env:"PRAISE_JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"PRAISE_TOKEN_TTL,default=24h"`

	LockTimeout time.Duration `env:"PRAISE_LOCK_TIMEOUT,default=5s"`
	AwardMin    int           `env:"PRAISE_AWARD_MIN,default=1"`
	AwardMax    int           `env:"PRAISE_AWARD_MAX,default=10"`

	LoginRateLimit  int           `env:"PRAISE_LOGIN_RATE_LIMIT,default=10"`
	LoginRateWindow time.Duration `env:"PRAISE_LOGIN_RATE_WINDOW,default=1m"`

	// Host patterns allowed to open websockets, separated by ';'.
	WSOrigins []string `env:"PRAISE_WS_ORIGINS,default=localhost:*"`

	// Web push is on when both VAPID keys are set.
	VAPIDPublicKey  string `env:"PRAISE_VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `env:"PRAISE_VAPID_PRIVATE_KEY"`
	VAPIDSubscriber string `env:"PRAISE_VAPID_SUBSCRIBER,default=mailto:admin@localhost"`

	// Off-site backups are on when a bucket is set.
	BackupBucket     string        `env:"PRAISE_BACKUP_BUCKET"`
	BackupEndpoint   string        `env:"PRAISE_BACKUP_ENDPOINT"`
	BackupRegion     string        `env:"PRAISE_BACKUP_REGION,default=us-east-1"`
	BackupAccessKey  string        `env:"PRAISE_BACKUP_ACCESS_KEY"`
	BackupSecretKey  string        `env:"PRAISE_BACKUP_SECRET_KEY"`
	BackupPassphrase string        `env:"PRAISE_BACKUP_PASSPHRASE"`
	BackupPrefix     string        `env:"PRAISE_BACKUP_PREFIX,default=backups/"`
	BackupInterval   time.Duration `env:"PRAISE_BACKUP_INTERVAL,default=24h"`
	BackupRetention  time.Duration `env:"PRAISE_BACKUP_RETENTION,default=720h"`
}

// PushEnabled reports whether both VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// Load reads the given env files (".env" when none are named) and decodes
// the environment into a Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case len(c.JWTSecret) < 16:
		return errors.New("PRAISE_JWT_SECRET must be at least 16 characters")
	case c.TokenTTL <= 0:
		return errors.New("PRAISE_TOKEN_TTL must be positive")
	case c.LockTimeout <= 0:
		return errors.New("PRAISE_LOCK_TIMEOUT must be positive")
	case c.AwardMin < 1 || c.AwardMax < c.AwardMin:
		return fmt.Errorf("award bounds [%d, %d] are invalid", c.AwardMin, c.AwardMax)
	case c.LoginRateLimit < 1 || c.LoginRateWindow <= 0:
		return errors.New("login rate limit must be positive")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("PRAISE_LOG_FORMAT %q must be text or json", c.LogFormat)
	case (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == ""):
		return errors.New("PRAISE_VAPID_PUBLIC_KEY and PRAISE_VAPID_PRIVATE_KEY must be set together")
	}
	if c.BackupBucket != "" {
		switch {
		case c.BackupAccessKey == "" || c.BackupSecretKey == "":
			return errors.New("PRAISE_BACKUP_ACCESS_KEY and PRAISE_BACKUP_SECRET_KEY are required with a backup bucket")
		case len(c.BackupPassphrase) < 12:
			return errors.New("PRAISE_BACKUP_PASSPHRASE must be at least 12 characters")
		case c.BackupInterval <= 0:
			return errors.New("PRAISE_BACKUP_INTERVAL must be positive")
		}
	}
	return nil
}
