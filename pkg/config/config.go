package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DB_DSN"
	EnvDBHost = "DB_HOST"
	EnvDBUser = "DB_USER"
	EnvDBName = "DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Google       GoogleConfig
	Scanner      ScannerConfig
	Worker       WorkerConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"APP_ENV" default:"dev"`
	Port         string `envconfig:"APP_PORT" default:"8080"`
	Timezone     string `envconfig:"APP_TIMEZONE" default:"America/Sao_Paulo"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured presentation timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DB_DSN"`
	Driver string `envconfig:"DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DB_HOST"`
	LegacyPort     int    `envconfig:"DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DB_USER"`
	LegacyPassword string `envconfig:"DB_PASSWORD"`
	LegacyName     string `envconfig:"DB_NAME"`
	LegacySSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	Address      string        `envconfig:"REDIS_ADDR"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GoogleConfig carries the service-account identity used for Sheets reads.
// Per-channel upload identities live in the database, not here.
type GoogleConfig struct {
	ServiceAccountJSON string `envconfig:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	ServiceAccountFile string `envconfig:"GOOGLE_SERVICE_ACCOUNT_FILE"`
}

type ScannerConfig struct {
	Enabled         bool `envconfig:"SCANNER_ENABLED" default:"true"`
	BatchSize       int  `envconfig:"SCANNER_BATCH_SIZE" default:"2"`
	BatchSleepSecs  int  `envconfig:"SCANNER_BATCH_SLEEP_SECONDS" default:"15"`
	TimeoutSeconds  int  `envconfig:"SCANNER_TIMEOUT_SECONDS" default:"15"`
	MaxErrors       int  `envconfig:"SCANNER_MAX_ERRORS" default:"3"`
	TailRows        int  `envconfig:"SCANNER_TAIL_ROWS" default:"15"`
	IntervalSeconds int  `envconfig:"SCANNER_INTERVAL_SECONDS" default:"240"`
}

func (s ScannerConfig) BatchSleep() time.Duration {
	return time.Duration(s.BatchSleepSecs) * time.Second
}

func (s ScannerConfig) SheetTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s ScannerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

type WorkerConfig struct {
	Enabled          bool   `envconfig:"UPLOAD_WORKER_ENABLED" default:"true"`
	StartupDelaySecs int    `envconfig:"UPLOAD_WORKER_STARTUP_DELAY" default:"180"`
	IntervalSeconds  int    `envconfig:"UPLOAD_WORKER_INTERVAL_SECONDS" default:"120"`
	BatchSize        int    `envconfig:"UPLOAD_WORKER_BATCH_SIZE" default:"5"`
	MaxErrors        int    `envconfig:"UPLOAD_WORKER_MAX_ERRORS" default:"5"`
	MinFreeMemoryMB  uint64 `envconfig:"UPLOAD_WORKER_MIN_FREE_MEMORY_MB" default:"200"`
	MinFreeDiskMB    uint64 `envconfig:"UPLOAD_WORKER_MIN_FREE_DISK_MB" default:"500"`
	TempVideoPath    string `envconfig:"TEMP_VIDEO_PATH" default:"/tmp/ytops-videos"`
}

func (w WorkerConfig) StartupDelay() time.Duration {
	return time.Duration(w.StartupDelaySecs) * time.Second
}

func (w WorkerConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
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
