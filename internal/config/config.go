// Package config lê a configuração do gateway: variáveis de ambiente (com .env
// opcional) e um arquivo YAML opcional com as settings do gate, recarregado a
// quente pelo Manager.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
	EnvTest        Env = "test"
)

type Config struct {
	Env         Env
	ListenAddr  string
	UpstreamURL string
	// Vazio = padrão do ambiente (info em produção, debug fora).
	LogLevel   string
	ConfigFile string

	// Valores iniciais; o arquivo de config pode sobrescrever.
	CustomAnalyticsURL string
	CanonicalHost      string

	RateLimitRedisURL   string
	RateLimitRedisToken string
	RateLimitTimeout    time.Duration
	MemorySweepInterval time.Duration

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	Stats StatsConfig
}

// StatsConfig controla a persistência das estatísticas de decisão no Redis.
type StatsConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
	Bucket        string
	TrackKeys     bool
}

func (c Config) Production() bool { return c.Env == EnvProduction }

// Load carrega .env (se existir) e lê o ambiente.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv lê a configuração só do ambiente do processo.
func FromEnv() (Config, error) {
	cfg := Config{}
	cfg.Env = Env(strings.ToLower(getenvDefault("APP_ENV", string(EnvDevelopment))))
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.UpstreamURL = strings.TrimSpace(os.Getenv("UPSTREAM_URL"))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	cfg.ConfigFile = strings.TrimSpace(os.Getenv("CONFIG_FILE"))

	cfg.CustomAnalyticsURL = strings.TrimSpace(os.Getenv("CUSTOM_ANALYTICS_URL"))
	cfg.CanonicalHost = strings.TrimSpace(os.Getenv("CANONICAL_HOST"))

	cfg.RateLimitRedisURL = strings.TrimSpace(os.Getenv("RATE_LIMIT_REDIS_URL"))
	cfg.RateLimitRedisToken = strings.TrimSpace(os.Getenv("RATE_LIMIT_REDIS_TOKEN"))
	cfg.RateLimitTimeout = getenvDurationDefault("RATE_LIMIT_TIMEOUT", time.Second)
	cfg.MemorySweepInterval = getenvDurationDefault("MEMORY_SWEEP_INTERVAL", 0)

	cfg.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.Stats.RedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.Stats.RedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.Stats.RedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("unsupported APP_ENV: %q", c.Env)
	}

	if c.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL: %q must be absolute", c.UpstreamURL)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL: %q", c.LogLevel)
	}

	if c.RateLimitTimeout <= 0 {
		return errors.New("RATE_LIMIT_TIMEOUT must be > 0")
	}
	if c.MemorySweepInterval < 0 {
		return errors.New("MEMORY_SWEEP_INTERVAL must be >= 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

// GateFile é o conteúdo do arquivo CONFIG_FILE. Campos vazios mantêm o valor
// vindo do ambiente.
type GateFile struct {
	CustomAnalyticsURL string `yaml:"customAnalyticsURL"`
	CanonicalHost      string `yaml:"canonicalHost"`
}

// LoadGateFile lê e valida o arquivo YAML de settings do gate.
func LoadGateFile(path string) (*GateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var f GateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	f.CustomAnalyticsURL = strings.TrimSpace(f.CustomAnalyticsURL)
	f.CanonicalHost = strings.TrimSpace(f.CanonicalHost)
	if strings.ContainsAny(f.CanonicalHost, "/ ") {
		return nil, fmt.Errorf("invalid config: canonicalHost %q must be a bare host", f.CanonicalHost)
	}

	return &f, nil
}

func getenvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
