package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"dynamic-pricing/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig covers the discount cache backend. Optional.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// PricingConfig nests both pricing sub-models.
type PricingConfig struct {
	MCD       MCDConfig       `mapstructure:"mcd"`
	RCD       RCDConfig       `mapstructure:"rcd"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
}

// MCDConfig parameterises the marketing-cost-displacement multiplier. The
// json tags keep the configuration endpoint's keys in line with the rest of
// the API surface.
type MCDConfig struct {
	Enabled               bool               `mapstructure:"enabled" json:"enabled"`
	UpdateFrequency       string             `mapstructure:"update_frequency" json:"update_frequency"`
	TargetROI             float64            `mapstructure:"target_roi" json:"target_roi"`
	Sensitivity           float64            `mapstructure:"sensitivity" json:"sensitivity"`
	SmoothingFactor       float64            `mapstructure:"smoothing_factor" json:"smoothing_factor"`
	DecayFactor           float64            `mapstructure:"decay_factor" json:"decay_factor"`
	MinMultiplier         float64            `mapstructure:"min_multiplier" json:"min_multiplier"`
	MaxMultiplier         float64            `mapstructure:"max_multiplier" json:"max_multiplier"`
	MinimumSpendThreshold float64            `mapstructure:"minimum_spend_threshold" json:"minimum_spend_threshold"`
	PlatformWeights       map[string]float64 `mapstructure:"platform_weights" json:"platform_weights"`
}

// RCDConfig parameterises the returning-customer discount.
type RCDConfig struct {
	Enabled             bool               `mapstructure:"enabled" json:"enabled"`
	MaxDiscount         float64            `mapstructure:"max_discount" json:"max_discount"`
	SpendWeight         float64            `mapstructure:"spend_weight" json:"spend_weight"`
	FrequencyWeight     float64            `mapstructure:"frequency_weight" json:"frequency_weight"`
	RecencyWeight       float64            `mapstructure:"recency_weight" json:"recency_weight"`
	MinSpend            float64            `mapstructure:"min_spend" json:"min_spend"`
	MinVisits           int                `mapstructure:"min_visits" json:"min_visits"`
	TierOneThreshold    float64            `mapstructure:"tier_one_threshold" json:"tier_one_threshold"`
	TierTwoThreshold    float64            `mapstructure:"tier_two_threshold" json:"tier_two_threshold"`
	ReferralBonus       float64            `mapstructure:"referral_bonus" json:"referral_bonus"`
	SeasonalMultipliers map[string]float64 `mapstructure:"seasonal_multipliers" json:"seasonal_multipliers"`
	CategoryWeights     map[string]float64 `mapstructure:"category_weights" json:"category_weights"`
}

// OptimizerConfig governs adaptive platform-weight tuning.
type OptimizerConfig struct {
	Enabled      bool    `mapstructure:"enabled" json:"enabled"`
	LearningRate float64 `mapstructure:"learning_rate" json:"learning_rate"`
	MinWeight    float64 `mapstructure:"min_weight" json:"min_weight"`
	MaxWeight    float64 `mapstructure:"max_weight" json:"max_weight"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricingd")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("pricing.mcd.enabled", true)
	v.SetDefault("pricing.mcd.update_frequency", "daily")
	v.SetDefault("pricing.mcd.target_roi", 3.0)
	v.SetDefault("pricing.mcd.sensitivity", 0.3)
	v.SetDefault("pricing.mcd.smoothing_factor", 0.4)
	v.SetDefault("pricing.mcd.decay_factor", 0.9)
	v.SetDefault("pricing.mcd.min_multiplier", 0.85)
	v.SetDefault("pricing.mcd.max_multiplier", 1.3)
	v.SetDefault("pricing.mcd.minimum_spend_threshold", 100.0)

	v.SetDefault("pricing.rcd.enabled", true)
	v.SetDefault("pricing.rcd.max_discount", 25.0)
	v.SetDefault("pricing.rcd.spend_weight", 0.5)
	v.SetDefault("pricing.rcd.frequency_weight", 0.3)
	v.SetDefault("pricing.rcd.recency_weight", 0.2)
	v.SetDefault("pricing.rcd.min_spend", 50.0)
	v.SetDefault("pricing.rcd.min_visits", 2)
	v.SetDefault("pricing.rcd.tier_one_threshold", 500.0)
	v.SetDefault("pricing.rcd.tier_two_threshold", 2000.0)
	v.SetDefault("pricing.rcd.referral_bonus", 5.0)
	v.SetDefault("pricing.rcd.seasonal_multipliers", map[string]float64{
		"holiday": 1.25,
		"summer":  1.10,
		"spring":  1.05,
		"default": 1.0,
	})

	v.SetDefault("pricing.optimizer.enabled", true)
	v.SetDefault("pricing.optimizer.learning_rate", 0.1)
	v.SetDefault("pricing.optimizer.min_weight", 0.5)
	v.SetDefault("pricing.optimizer.max_weight", 2.0)

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// UpdateWindow maps the configured frequency onto a duration.
func (m MCDConfig) UpdateWindow() (time.Duration, error) {
	switch strings.ToLower(m.UpdateFrequency) {
	case "hourly":
		return time.Hour, nil
	case "daily":
		return 24 * time.Hour, nil
	case "weekly":
		return 168 * time.Hour, nil
	case "monthly":
		return 720 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown mcd.update_frequency %q", m.UpdateFrequency)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if _, err := c.Pricing.MCD.UpdateWindow(); err != nil {
		return err
	}
	if c.Pricing.MCD.TargetROI <= 0 {
		return fmt.Errorf("pricing.mcd.target_roi must be greater than zero")
	}
	if c.Pricing.MCD.MinMultiplier <= 0 || c.Pricing.MCD.MaxMultiplier < c.Pricing.MCD.MinMultiplier {
		return fmt.Errorf("pricing.mcd multiplier bounds are inverted")
	}
	if c.Pricing.MCD.SmoothingFactor < 0 || c.Pricing.MCD.SmoothingFactor > 1 {
		return fmt.Errorf("pricing.mcd.smoothing_factor must be within [0,1]")
	}
	if c.Pricing.MCD.DecayFactor < 0 || c.Pricing.MCD.DecayFactor > 1 {
		return fmt.Errorf("pricing.mcd.decay_factor must be within [0,1]")
	}
	if c.Pricing.RCD.MaxDiscount < 0 || c.Pricing.RCD.MaxDiscount > 100 {
		return fmt.Errorf("pricing.rcd.max_discount must be within [0,100]")
	}
	weightSum := c.Pricing.RCD.SpendWeight + c.Pricing.RCD.FrequencyWeight + c.Pricing.RCD.RecencyWeight
	if c.Pricing.RCD.Enabled && weightSum <= 0 {
		return fmt.Errorf("pricing.rcd component weights must sum above zero")
	}
	if c.Pricing.Optimizer.Enabled {
		if c.Pricing.Optimizer.LearningRate <= 0 {
			return fmt.Errorf("pricing.optimizer.learning_rate must be greater than zero")
		}
		if c.Pricing.Optimizer.MinWeight <= 0 || c.Pricing.Optimizer.MaxWeight < c.Pricing.Optimizer.MinWeight {
			return fmt.Errorf("pricing.optimizer weight bounds are inverted")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
