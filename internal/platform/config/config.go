package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞です。
const EnvPrefix = "REGISTRY_"

// 対応するデータベースドライバです。
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultAPIPrefix       = "/api"
	defaultMetricsPath     = "/metrics"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Metrics  MetricsConfig  `yaml:"metrics" envPrefix:"METRICS_"`
}

// ServerConfig は HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	APIPrefix          string        `yaml:"api_prefix" env:"API_PREFIX"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeoutRaw    string        `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig は永続化先に関する設定です。
// Driver が postgres の場合は接続情報を、sqlite の場合は SQLitePath を使用します。
type DatabaseConfig struct {
	Driver             string        `yaml:"driver" env:"DRIVER"`
	Host               string        `yaml:"host" env:"HOST"`
	Port               int           `yaml:"port" env:"PORT"`
	User               string        `yaml:"user" env:"USER"`
	Password           string        `yaml:"password" env:"PASSWORD"`
	Name               string        `yaml:"name" env:"NAME"`
	SSLMode            string        `yaml:"ssl_mode" env:"SSL_MODE"`
	SQLitePath         string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	WriteLockKey       int64         `yaml:"write_lock_key" env:"WRITE_LOCK_KEY"`
	MaxOpenConns       int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns       int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig は Prometheus エンドポイントの設定です。
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
// カレントディレクトリに .env があれば先に読み込みます。
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	return Parse(b, os.Environ())
}

// Parse は YAML と環境変数 (KEY=VALUE 形式) から設定を構築します。
func Parse(raw []byte, environ []string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: toEnvMap(environ),
	}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func toEnvMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Log.validateAndNormalize(); err != nil {
		return err
	}
	c.Metrics.normalize()
	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	prefix := strings.TrimRight(strings.TrimSpace(s.APIPrefix), "/")
	if s.APIPrefix == "" {
		prefix = defaultAPIPrefix
	}
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	s.APIPrefix = prefix

	var err error
	if s.ReadTimeout, err = parseDurationOrDefault(s.ReadTimeoutRaw, defaultReadTimeout); err != nil {
		return fmt.Errorf("config: server.read_timeout: %w", err)
	}
	if s.WriteTimeout, err = parseDurationOrDefault(s.WriteTimeoutRaw, defaultWriteTimeout); err != nil {
		return fmt.Errorf("config: server.write_timeout: %w", err)
	}
	if s.ShutdownTimeout, err = parseDurationOrDefault(s.ShutdownTimeoutRaw, defaultShutdownTimeout); err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver == "" {
		d.Driver = DriverPostgres
	}

	switch d.Driver {
	case DriverPostgres:
		if err := d.validatePostgres(); err != nil {
			return err
		}
	case DriverSQLite:
		if d.SQLitePath == "" {
			return fmt.Errorf("config: database.sqlite_path must be set")
		}
	default:
		return fmt.Errorf("config: database.driver %q is not supported", d.Driver)
	}

	lifetime, err := parseDurationOrDefault(d.ConnMaxLifetimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationOrDefault(d.ConnMaxIdleTimeRaw, 0)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (d *DatabaseConfig) validatePostgres() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	return nil
}

func (l *LogConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	l.Format = strings.ToLower(l.Format)
	switch l.Format {
	case "":
		l.Format = defaultLogFormat
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is not supported", l.Format)
	}
	return nil
}

func (m *MetricsConfig) normalize() {
	if m.Path == "" {
		m.Path = defaultMetricsPath
	}
}

func parseDurationOrDefault(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// MigrationURL は golang-migrate 用のデータベース URL を返します。
func (d DatabaseConfig) MigrationURL() string {
	if d.Driver == DriverSQLite {
		return "sqlite3://" + d.SQLitePath
	}
	return d.DSN()
}
