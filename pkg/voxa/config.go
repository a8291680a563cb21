package voxa

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/voxa/pkg/configutil"
	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/errorsx"
	"github.com/harunnryd/voxa/pkg/segment"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Segmentation  segment.Config      `mapstructure:"segmentation"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Cache         CacheConfig         `mapstructure:"cache"`
	GenLog        GenLogConfig        `mapstructure:"genlog"`
	AudioStore    AudioStoreConfig    `mapstructure:"audio_store"`
	Cost          CostConfig          `mapstructure:"cost"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Server        ServerConfig        `mapstructure:"server"`
}

type DispatchConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	TimeoutMS     int           `mapstructure:"timeout_ms"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	SSMLFallback  bool          `mapstructure:"ssml_fallback"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig disables circuit breaking when Threshold is zero.
type BreakerConfig struct {
	Threshold  int `mapstructure:"threshold"`
	CooldownMS int `mapstructure:"cooldown_ms"`
}

// VendorConfig names a provider implementation and its free-form settings.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type ProvidersConfig struct {
	Default      string `mapstructure:"default"`
	DefaultVoice string `mapstructure:"default_voice"`
	// Vendors is keyed by the name requests route on. Provider defaults to
	// the key.
	Vendors map[string]VendorConfig `mapstructure:"vendors"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type CacheConfig struct {
	Driver     string      `mapstructure:"driver"`
	TTLHours   int         `mapstructure:"ttl_hours"`
	SQLitePath string      `mapstructure:"sqlite_path"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type GenLogConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type AudioStoreConfig struct {
	Dir           string `mapstructure:"dir"`
	BaseURL       string `mapstructure:"base_url"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type CostConfig struct {
	MonthlyUsers int                  `mapstructure:"monthly_users"`
	Pricing      cost.ProviderPricing `mapstructure:"pricing"`
	Assumptions  cost.Assumptions     `mapstructure:"assumptions"`
}

type ObservabilityConfig struct {
	JSONLPath   string  `mapstructure:"jsonl_path"`
	TimelineDir string  `mapstructure:"timeline_dir"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Prometheus  bool    `mapstructure:"prometheus"`
	AsyncBuffer int     `mapstructure:"async_buffer"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	ReadTimeoutMS  int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS int    `mapstructure:"write_timeout_ms"`
	MaxBodyBytes   int64  `mapstructure:"max_body_bytes"`
}

var (
	cacheDrivers  = map[string]bool{"none": true, "memory": true, "redis": true, "sqlite": true}
	genlogDrivers = map[string]bool{"none": true, "memory": true, "sqlite": true}
)

func setDefaults(v *viper.Viper) {
	seg := segment.DefaultConfig()
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("segmentation.max_words", seg.MaxWords)
	v.SetDefault("segmentation.max_segments", seg.MaxSegments)
	v.SetDefault("segmentation.max_seconds", seg.MaxSeconds)
	v.SetDefault("segmentation.words_per_second", seg.WordsPerSecond)
	v.SetDefault("segmentation.enable_ssml", seg.EnableSSML)
	v.SetDefault("segmentation.truncate_brief_mode", seg.TruncateBriefMode)
	v.SetDefault("segmentation.break_ms", seg.BreakMS)
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("dispatch.timeout_ms", 15000)
	v.SetDefault("dispatch.rate_per_second", 0)
	v.SetDefault("dispatch.burst", 1)
	v.SetDefault("dispatch.ssml_fallback", true)
	v.SetDefault("dispatch.breaker.threshold", 5)
	v.SetDefault("dispatch.breaker.cooldown_ms", 30000)
	v.SetDefault("providers.default", "mock")
	v.SetDefault("providers.default_voice", "")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_hours", 24*7)
	v.SetDefault("cache.sqlite_path", ".voxa/cache.db")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "voxa:audio")
	v.SetDefault("genlog.driver", "sqlite")
	v.SetDefault("genlog.path", ".voxa/genlog.db")
	v.SetDefault("genlog.retention_days", 90)
	v.SetDefault("audio_store.dir", ".voxa/audio")
	v.SetDefault("audio_store.base_url", "")
	v.SetDefault("audio_store.retention_days", 0)
	v.SetDefault("cost.monthly_users", 1000)
	v.SetDefault("cost.assumptions.batching_discount_factor", cost.DefaultBatchingDiscountFactor)
	v.SetDefault("cost.assumptions.segment_call_overhead_usd", cost.DefaultSegmentCallOverheadUSD)
	v.SetDefault("observability.jsonl_path", "")
	v.SetDefault("observability.timeline_dir", "")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.prometheus", true)
	v.SetDefault("observability.async_buffer", 2048)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_ms", 30000)
	v.SetDefault("server.write_timeout_ms", 120000)
	v.SetDefault("server.max_body_bytes", 1<<20)
}

// DefaultConfig returns the built-in defaults, ignoring files and environment.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("voxa: decoding defaults: %v", err))
	}
	normalize(&cfg)
	return cfg
}

// LoadConfig reads path (YAML, JSON or TOML) over the built-in defaults. An
// empty path uses defaults only. VOXA_ environment variables override both,
// e.g. VOXA_DISPATCH_CONCURRENCY=8.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("VOXA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	normalize(&cfg)
	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", errorsx.Wrap(err, errorsx.ReasonConfigInvalid))
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Providers.Default = strings.ToLower(strings.TrimSpace(cfg.Providers.Default))
	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))
	cfg.GenLog.Driver = strings.ToLower(strings.TrimSpace(cfg.GenLog.Driver))
	if len(cfg.Providers.Vendors) > 0 {
		vendors := make(map[string]VendorConfig, len(cfg.Providers.Vendors))
		for name, vc := range cfg.Providers.Vendors {
			key := strings.ToLower(strings.TrimSpace(name))
			if strings.TrimSpace(vc.Provider) == "" {
				vc.Provider = key
			}
			vc.Provider = strings.ToLower(strings.TrimSpace(vc.Provider))
			vendors[key] = vc
		}
		cfg.Providers.Vendors = vendors
	}
	pricing := make(cost.ProviderPricing, len(cost.DefaultPricing)+len(cfg.Cost.Pricing))
	for name, p := range cost.DefaultPricing {
		pricing[name] = p
	}
	for name, p := range cfg.Cost.Pricing {
		pricing[strings.ToLower(name)] = p
	}
	cfg.Cost.Pricing = pricing
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.Segmentation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segmentation: %w", err))
	}
	if c.Dispatch.Concurrency <= 0 {
		errs = append(errs, errors.New("dispatch.concurrency must be positive"))
	}
	if c.Dispatch.TimeoutMS < 0 {
		errs = append(errs, errors.New("dispatch.timeout_ms must not be negative"))
	}
	if c.Dispatch.RatePerSecond < 0 {
		errs = append(errs, errors.New("dispatch.rate_per_second must not be negative"))
	}
	if err := configutil.RequireString(c.Providers.Default, "providers.default"); err != nil {
		errs = append(errs, err)
	}
	if !cacheDrivers[c.Cache.Driver] {
		errs = append(errs, fmt.Errorf("cache.driver %q is not one of none, memory, redis, sqlite", c.Cache.Driver))
	}
	if c.Cache.Driver == "sqlite" && strings.TrimSpace(c.Cache.SQLitePath) == "" {
		errs = append(errs, errors.New("cache.sqlite_path is required for the sqlite driver"))
	}
	if c.Cache.Driver == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		errs = append(errs, errors.New("cache.redis.addr is required for the redis driver"))
	}
	if !genlogDrivers[c.GenLog.Driver] {
		errs = append(errs, fmt.Errorf("genlog.driver %q is not one of none, memory, sqlite", c.GenLog.Driver))
	}
	if c.GenLog.Driver == "sqlite" && strings.TrimSpace(c.GenLog.Path) == "" {
		errs = append(errs, errors.New("genlog.path is required for the sqlite driver"))
	}
	if err := configutil.RequireString(c.AudioStore.Dir, "audio_store.dir"); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.TTLHours < 0 {
		errs = append(errs, errors.New("cache.ttl_hours must not be negative"))
	}
	// A cache hit must never hand out the URL of a purged file.
	if days := c.AudioStore.RetentionDays; days > 0 && c.Cache.Driver != "none" {
		if c.Cache.TTLHours == 0 || c.Cache.TTLHours > days*24 {
			errs = append(errs, fmt.Errorf("cache.ttl_hours %d outlives audio_store.retention_days %d (max %d)", c.Cache.TTLHours, days, days*24))
		}
	}
	if err := c.Cost.Assumptions.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cost.assumptions: %w", err))
	}
	for name, p := range c.Cost.Pricing {
		if p.PricePerCharacter < 0 {
			errs = append(errs, fmt.Errorf("cost.pricing.%s: price must not be negative", name))
		}
	}
	if r := c.Observability.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.sample_rate %v outside [0,1]", r))
	}
	return errors.Join(errs...)
}

// VendorFor returns the vendor config routed under name. Names with no
// explicit entry resolve to the provider of the same name with no settings.
func (c Config) VendorFor(name string) VendorConfig {
	name = strings.ToLower(strings.TrimSpace(name))
	if vc, ok := c.Providers.Vendors[name]; ok {
		return vc
	}
	return VendorConfig{Provider: name}
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	for name, vc := range cfg.Providers.Vendors {
		vc.Settings = expandSettings(vc.Settings)
		cfg.Providers.Vendors[name] = vc
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
