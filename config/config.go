// Package config provides configuration management for the application.
//
// Values come from, in increasing priority: built-in defaults, a YAML file
// (config.yaml, config/config.yaml or $EXAMPREP_CONFIG), a .env file and the
// process environment. String values in the YAML file may reference the
// environment as ${VAR} or ${VAR:-default}.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBodySizeLimit is the default maximum request body size (1MB)
	DefaultBodySizeLimit int64 = 1 * 1024 * 1024
	// MinBodySizeLimit is the smallest accepted body size limit (1KB)
	MinBodySizeLimit int64 = 1024
	// MaxBodySizeLimit is the largest accepted body size limit (100MB)
	MaxBodySizeLimit int64 = 100 * 1024 * 1024
)

// Config holds the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Cache        CacheConfig        `yaml:"cache"`
	Storage      StorageConfig      `yaml:"storage"`
	Source       SourceConfig       `yaml:"source"`
	HTTP         HTTPConfig         `yaml:"http"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
	// MasterKey enables bearer authentication when set
	MasterKey string `yaml:"master_key"`
	// BodySizeLimit accepts plain bytes or K/M suffixes ("512K", "2MB")
	BodySizeLimit string `yaml:"body_size_limit" validate:"bodysize"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto text json"`
}

// CacheConfig configures the question cache
type CacheConfig struct {
	// Backend is one of local, memory, redis, sqlite, postgresql, mongodb
	Backend       string        `yaml:"backend" validate:"oneof=local memory redis sqlite postgresql mongodb"`
	MaxPerSubject int           `yaml:"max_per_subject" validate:"gte=1"`
	MaxAge        time.Duration `yaml:"max_age" validate:"gt=0"`
	PurgeInterval time.Duration `yaml:"purge_interval" validate:"gt=0"`
	Compress      bool          `yaml:"compress"`
	Local         LocalConfig   `yaml:"local"`
	Redis         RedisConfig   `yaml:"redis"`
}

// LocalConfig holds the file backend settings
type LocalConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig holds Redis backend settings
type RedisConfig struct {
	URL    string        `yaml:"url"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl" validate:"gte=0"`
}

// StorageConfig holds the database backends settings
type StorageConfig struct {
	SQLite     SQLiteStorageConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLStorageConfig `yaml:"postgresql"`
	MongoDB    MongoDBStorageConfig    `yaml:"mongodb"`
}

// SQLiteStorageConfig holds SQLite settings
type SQLiteStorageConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLStorageConfig holds PostgreSQL settings
type PostgreSQLStorageConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns" validate:"gte=0"`
}

// MongoDBStorageConfig holds MongoDB settings
type MongoDBStorageConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// SourceConfig configures where questions are downloaded from
type SourceConfig struct {
	// Type is "http" or "file"
	Type string `yaml:"type" validate:"oneof=http file"`
	// URL may contain a {subject} placeholder
	URL         string            `yaml:"url"`
	ResultsPath string            `yaml:"results_path"`
	Headers     map[string]string `yaml:"headers"`
	File        string            `yaml:"file"`
}

// HTTPConfig holds outbound HTTP client timeouts, in seconds
type HTTPConfig struct {
	Timeout               int `yaml:"timeout" validate:"gte=0"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout" validate:"gte=0"`
}

// ConnectivityConfig configures the reachability prober
type ConnectivityConfig struct {
	// ProbeAddress is a host:port dialed to decide online/offline.
	// Empty disables probing; state then only changes through the API.
	ProbeAddress  string        `yaml:"probe_address" validate:"omitempty,hostname_port"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" validate:"gte=0"`
	ProbeInterval time.Duration `yaml:"probe_interval" validate:"gte=0"`
	StartOnline   bool          `yaml:"start_online"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,startswith=/"`
}

// LoadResult is returned by Load.
type LoadResult struct {
	Config *Config
	// Path is the YAML file that was read, empty when none was found
	Path string
}

// Load reads configuration from defaults, the YAML file, .env and the environment.
func Load() (*LoadResult, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	path, err := readConfigFile(cfg)
	if err != nil {
		return nil, err
	}
	expandEnv(reflect.ValueOf(cfg).Elem())

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &LoadResult{Config: cfg, Path: path}, nil
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Cache: CacheConfig{
			Backend:       "local",
			MaxPerSubject: 50,
			MaxAge:        7 * 24 * time.Hour,
			PurgeInterval: time.Hour,
			Local:         LocalConfig{Dir: "data/questions"},
			Redis:         RedisConfig{Prefix: "examprep:"},
		},
		Storage: StorageConfig{
			SQLite:     SQLiteStorageConfig{Path: "data/examprep.db"},
			PostgreSQL: PostgreSQLStorageConfig{MaxConns: 10},
			MongoDB:    MongoDBStorageConfig{Database: "examprep"},
		},
		Source: SourceConfig{
			Type: "http",
		},
		HTTP: HTTPConfig{
			Timeout:               30,
			ResponseHeaderTimeout: 20,
		},
		Connectivity: ConnectivityConfig{
			ProbeTimeout:  3 * time.Second,
			ProbeInterval: 15 * time.Second,
			StartOnline:   true,
		},
		Metrics: MetricsConfig{
			Endpoint: "/metrics",
		},
	}
}

func readConfigFile(cfg *Config) (string, error) {
	candidates := []string{"config.yaml", "config/config.yaml"}
	explicit := os.Getenv("EXAMPREP_CONFIG")
	if explicit != "" {
		candidates = []string{explicit}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && explicit == "" {
				continue
			}
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} references.
// ${VAR} is left as-is when VAR is unset or empty.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		if parts[2] != "" {
			return parts[3]
		}
		return match
	})
}

// expandEnv applies expandString to every string field and string map value.
func expandEnv(v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandEnv(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(expandString(v.String()))
		}
	case reflect.Map:
		if v.Type().Elem().Kind() != reflect.String {
			return
		}
		for _, key := range v.MapKeys() {
			v.SetMapIndex(key, reflect.ValueOf(expandString(v.MapIndex(key).String())))
		}
	}
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                &cfg.Server.Port,
		"EXAMPREP_MASTER_KEY": &cfg.Server.MasterKey,
		"BODY_SIZE_LIMIT":     &cfg.Server.BodySizeLimit,
		"LOG_LEVEL":           &cfg.Log.Level,
		"LOG_FORMAT":          &cfg.Log.Format,
		"CACHE_BACKEND":       &cfg.Cache.Backend,
		"CACHE_DIR":           &cfg.Cache.Local.Dir,
		"REDIS_URL":           &cfg.Cache.Redis.URL,
		"REDIS_PREFIX":        &cfg.Cache.Redis.Prefix,
		"SQLITE_PATH":         &cfg.Storage.SQLite.Path,
		"POSTGRES_URL":        &cfg.Storage.PostgreSQL.URL,
		"MONGODB_URL":         &cfg.Storage.MongoDB.URL,
		"MONGODB_DATABASE":    &cfg.Storage.MongoDB.Database,
		"SOURCE_TYPE":         &cfg.Source.Type,
		"SOURCE_URL":          &cfg.Source.URL,
		"SOURCE_RESULTS_PATH": &cfg.Source.ResultsPath,
		"SOURCE_FILE":         &cfg.Source.File,
		"PROBE_ADDRESS":       &cfg.Connectivity.ProbeAddress,
		"METRICS_ENDPOINT":    &cfg.Metrics.Endpoint,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CACHE_MAX_PER_SUBJECT":        &cfg.Cache.MaxPerSubject,
		"POSTGRES_MAX_CONNS":           &cfg.Storage.PostgreSQL.MaxConns,
		"HTTP_TIMEOUT":                 &cfg.HTTP.Timeout,
		"HTTP_RESPONSE_HEADER_TIMEOUT": &cfg.HTTP.ResponseHeaderTimeout,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"CACHE_MAX_AGE":        &cfg.Cache.MaxAge,
		"CACHE_PURGE_INTERVAL": &cfg.Cache.PurgeInterval,
		"REDIS_TTL":            &cfg.Cache.Redis.TTL,
		"PROBE_TIMEOUT":        &cfg.Connectivity.ProbeTimeout,
		"PROBE_INTERVAL":       &cfg.Connectivity.ProbeInterval,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	bools := map[string]*bool{
		"CACHE_COMPRESS":  &cfg.Cache.Compress,
		"START_ONLINE":    &cfg.Connectivity.StartOnline,
		"METRICS_ENABLED": &cfg.Metrics.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = b
	}

	if token := os.Getenv("SOURCE_AUTH_TOKEN"); token != "" {
		if cfg.Source.Headers == nil {
			cfg.Source.Headers = make(map[string]string)
		}
		cfg.Source.Headers["Authorization"] = "Bearer " + token
	}
	return nil
}

// parseDuration accepts plain integers (seconds) or Go duration strings.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("bodysize", func(fl validator.FieldLevel) bool {
		return ValidateBodySizeLimit(fl.Field().String()) == nil
	})
	return v
}

// Validate checks field constraints and the settings each backend needs.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cfg.Cache.Backend {
	case "redis":
		if cfg.Cache.Redis.URL == "" {
			return errors.New("invalid configuration: cache.redis.url is required for the redis backend")
		}
	case "postgresql":
		if cfg.Storage.PostgreSQL.URL == "" {
			return errors.New("invalid configuration: storage.postgresql.url is required for the postgresql backend")
		}
	case "mongodb":
		if cfg.Storage.MongoDB.URL == "" {
			return errors.New("invalid configuration: storage.mongodb.url is required for the mongodb backend")
		}
	}

	switch cfg.Source.Type {
	case "http":
		if cfg.Source.URL == "" {
			return errors.New("invalid configuration: source.url is required for the http source")
		}
	case "file":
		if cfg.Source.File == "" {
			return errors.New("invalid configuration: source.file is required for the file source")
		}
	}
	return nil
}

var bodySizePattern = regexp.MustCompile(`^(\d+)([KkMm][Bb]?)?$`)

// ParseBodySizeLimit converts "1048576", "512K" or "10MB" to bytes.
// An empty string yields DefaultBodySizeLimit.
func ParseBodySizeLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultBodySizeLimit, nil
	}

	m := bodySizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid body size limit %q: expected bytes or a K/M suffix", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid body size limit %q: %w", s, err)
	}

	switch strings.TrimSuffix(strings.ToUpper(m[2]), "B") {
	case "K":
		n *= 1024
	case "M":
		n *= 1024 * 1024
	}

	if n < MinBodySizeLimit || n > MaxBodySizeLimit {
		return 0, fmt.Errorf("body size limit %q out of range (1K to 100M)", s)
	}
	return n, nil
}

// ValidateBodySizeLimit reports whether s is an acceptable body size limit.
func ValidateBodySizeLimit(s string) error {
	_, err := ParseBodySizeLimit(s)
	return err
}
