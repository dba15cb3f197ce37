package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"hostpulse/internal/history"
	"hostpulse/internal/models"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MinInterval is the shortest polling interval accepted for any family.
const MinInterval = 500 * time.Millisecond

type Intervals struct {
	Resource    time.Duration `mapstructure:"resource" yaml:"resource"`
	Connections time.Duration `mapstructure:"connections" yaml:"connections"`
	Alerts      time.Duration `mapstructure:"alerts" yaml:"alerts"`
}

type History struct {
	ChartCapacity   int `mapstructure:"chart_capacity" yaml:"chart_capacity"`
	AnomalyCapacity int `mapstructure:"anomaly_capacity" yaml:"anomaly_capacity"`
}

type ProcessCache struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type Disk struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type Alerts struct {
	Rules []models.AlertRule `mapstructure:"rules" yaml:"rules"`
}

type Server struct {
	Address        string        `mapstructure:"address" yaml:"address"`
	AuthSecret     string        `mapstructure:"auth_secret" yaml:"auth_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedIPs     []string      `mapstructure:"allowed_ips" yaml:"allowed_ips"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
}

// Config is the full runtime configuration.
type Config struct {
	Intervals    Intervals    `mapstructure:"intervals" yaml:"intervals"`
	History      History      `mapstructure:"history" yaml:"history"`
	ProcessCache ProcessCache `mapstructure:"process_cache" yaml:"process_cache"`
	Disk         Disk         `mapstructure:"disk" yaml:"disk"`
	Alerts       Alerts       `mapstructure:"alerts" yaml:"alerts"`
	Server       Server       `mapstructure:"server" yaml:"server"`
	Log          Log          `mapstructure:"log" yaml:"log"`
}

// DefaultRules is the rule set used when the config file names none.
func DefaultRules() []models.AlertRule {
	return []models.AlertRule{
		{
			ID: "high-cpu", Name: "High CPU usage", Enabled: true,
			Metric: models.MetricCPUUsage, Operator: models.OpGreaterThan, Threshold: 90,
			Duration: 5 * time.Minute, Severity: models.SeverityCritical,
		},
		{
			ID: "high-memory", Name: "High memory usage", Enabled: true,
			Metric: models.MetricMemoryUsage, Operator: models.OpGreaterThan, Threshold: 90,
			Duration: 5 * time.Minute, Severity: models.SeverityWarning,
		},
		{
			ID: "high-download", Name: "High download bandwidth", Enabled: true,
			Metric: models.MetricBandwidthIn, Operator: models.OpGreaterThan, Threshold: 100 * 1024 * 1024,
			Duration: 5 * time.Minute, Severity: models.SeverityWarning,
		},
		{
			ID: "many-connections", Name: "Connection count", Enabled: false,
			Metric: models.MetricConnectionCount, Operator: models.OpGreaterThan, Threshold: 500,
			Duration: 10 * time.Minute, Severity: models.SeverityInfo,
		},
		{
			ID: "interface-errors", Name: "Interface errors", Enabled: true,
			Metric: models.MetricErrorRate, Operator: models.OpGreaterThan, Threshold: 10,
			Duration: 10 * time.Minute, Severity: models.SeverityWarning,
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Intervals: Intervals{
			Resource:    5 * time.Second,
			Connections: 3 * time.Second,
			Alerts:      15 * time.Second,
		},
		History: History{
			ChartCapacity:   history.DefaultCapacity,
			AnomalyCapacity: history.MaxCapacity,
		},
		ProcessCache: ProcessCache{Capacity: 4096},
		Disk:         Disk{Path: "/"},
		Alerts:       Alerts{Rules: DefaultRules()},
		Server: Server{
			Address:   "127.0.0.1:8080",
			TokenTTL:  24 * time.Hour,
			RateLimit: 100,
			RateBurst: 200,
		},
		Log: Log{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("intervals.resource", d.Intervals.Resource)
	v.SetDefault("intervals.connections", d.Intervals.Connections)
	v.SetDefault("intervals.alerts", d.Intervals.Alerts)
	v.SetDefault("history.chart_capacity", d.History.ChartCapacity)
	v.SetDefault("history.anomaly_capacity", d.History.AnomalyCapacity)
	v.SetDefault("process_cache.capacity", d.ProcessCache.Capacity)
	v.SetDefault("disk.path", d.Disk.Path)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.token_ttl", d.Server.TokenTTL)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.dir", "")
}

// Loader reads the configuration file and environment overrides.
type Loader struct {
	v *viper.Viper
}

// NewLoader searches for hostpulse.yaml in . and ./config, or reads path
// when it is not empty. HOSTPULSE_* environment variables override file values.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hostpulse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("HOSTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{v: v}
}

// Load reads and validates the configuration. A missing config file in the
// search path is not an error; defaults apply.
func (l *Loader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if !l.v.IsSet("alerts.rules") {
		cfg.Alerts.Rules = DefaultRules()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// File reports the config file in use, if any.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with every valid configuration written to the config file
// after Load. Invalid edits are logged and ignored.
func (l *Loader) Watch(logger *zap.Logger, fn func(Config)) {
	if l.v.ConfigFileUsed() == "" {
		logger.Info("no config file, watch disabled")
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logger.Warn("config change rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))
		fn(cfg)
	})
	l.v.WatchConfig()
}

// Validate reports every problem found in c, wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs error
	check := func(name string, d time.Duration) {
		if d < MinInterval {
			errs = multierr.Append(errs, fmt.Errorf("intervals.%s: %s is below %s", name, d, MinInterval))
		}
	}
	check("resource", c.Intervals.Resource)
	check("connections", c.Intervals.Connections)
	check("alerts", c.Intervals.Alerts)

	capacity := func(name string, n int) {
		if n < 1 || n > history.MaxCapacity {
			errs = multierr.Append(errs, fmt.Errorf("%s: %d outside [1, %d]", name, n, history.MaxCapacity))
		}
	}
	capacity("history.chart_capacity", c.History.ChartCapacity)
	capacity("history.anomaly_capacity", c.History.AnomalyCapacity)
	if c.History.AnomalyCapacity >= 1 && c.History.AnomalyCapacity <= history.AnomalyWindow {
		errs = multierr.Append(errs, fmt.Errorf("history.anomaly_capacity: %d must exceed the %d-sample anomaly window",
			c.History.AnomalyCapacity, history.AnomalyWindow))
	}
	if c.ProcessCache.Capacity < 1 {
		errs = multierr.Append(errs, fmt.Errorf("process_cache.capacity: %d must be positive", c.ProcessCache.Capacity))
	}
	if c.Server.TokenTTL < 0 {
		errs = multierr.Append(errs, fmt.Errorf("server.token_ttl: negative"))
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		errs = multierr.Append(errs, fmt.Errorf("server.rate_limit/rate_burst: must be positive"))
	}

	errs = multierr.Append(errs, ValidateRules(c.Alerts.Rules))
	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, errs)
	}
	return nil
}

// RestartRequired lists the sections that differ between prev and next but
// are only read at start-up.
func RestartRequired(prev, next Config) []string {
	var keys []string
	if prev.ProcessCache != next.ProcessCache {
		keys = append(keys, "process_cache")
	}
	if !sameServer(prev.Server, next.Server) {
		keys = append(keys, "server")
	}
	if prev.Log != next.Log {
		keys = append(keys, "log")
	}
	return keys
}

func sameServer(a, b Server) bool {
	return a.Address == b.Address &&
		a.AuthSecret == b.AuthSecret &&
		a.TokenTTL == b.TokenTTL &&
		a.RateLimit == b.RateLimit &&
		a.RateBurst == b.RateBurst &&
		slices.Equal(a.AllowedOrigins, b.AllowedOrigins) &&
		slices.Equal(a.AllowedIPs, b.AllowedIPs)
}

// ValidateRules checks ids, enums and cooldowns of a rule set.
func ValidateRules(rules []models.AlertRule) error {
	var errs error
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("rule %d: empty id", i))
		} else if seen[r.ID] {
			errs = multierr.Append(errs, fmt.Errorf("rule %q: duplicate id", r.ID))
		}
		seen[r.ID] = true
		if !knownMetric(r.Metric) {
			errs = multierr.Append(errs, fmt.Errorf("rule %q: unknown metric %q", r.ID, r.Metric))
		}
		switch r.Operator {
		case models.OpGreaterThan, models.OpLessThan, models.OpEquals, models.OpNotEquals:
		default:
			errs = multierr.Append(errs, fmt.Errorf("rule %q: unknown operator %q", r.ID, r.Operator))
		}
		switch r.Severity {
		case models.SeverityCritical, models.SeverityWarning, models.SeverityInfo:
		default:
			errs = multierr.Append(errs, fmt.Errorf("rule %q: unknown severity %q", r.ID, r.Severity))
		}
		if r.Duration < 0 {
			errs = multierr.Append(errs, fmt.Errorf("rule %q: negative duration", r.ID))
		}
	}
	return errs
}

func knownMetric(m models.Metric) bool {
	for _, k := range models.Metrics {
		if k == m {
			return true
		}
	}
	return false
}

// Save writes c as YAML to path.
func Save(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
