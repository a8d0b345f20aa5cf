// Package config loads the kernel's global configuration via viper.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// GlobalConfig holds every tunable named in the external-interfaces
// config table.
type GlobalConfig struct {
	MinTPDistance              decimal.Decimal `mapstructure:"minTpDistance"`
	MaxSLDistance              decimal.Decimal `mapstructure:"maxSlDistance"`
	MaxSignalLifetimeMinutes   int             `mapstructure:"maxSignalLifetimeMinutes"`
	ScheduleAwaitMinutes       int             `mapstructure:"scheduleAwaitMinutes"`
	MaxSignalGenerationSeconds int             `mapstructure:"maxSignalGenerationSeconds"`
	AvgPriceCandleCount        int             `mapstructure:"avgPriceCandleCount"`
	CandleRetryCount           int             `mapstructure:"candleRetryCount"`
	CandleRetryDelayMs         int             `mapstructure:"candleRetryDelayMs"`
	SlippagePercent            decimal.Decimal `mapstructure:"slippagePercent"`
	FeePercent                 decimal.Decimal `mapstructure:"feePercent"`
}

// BreakevenThreshold is computed, not independently configurable:
// 2 * (slippage + fee).
func (c GlobalConfig) BreakevenThreshold() decimal.Decimal {
	return c.SlippagePercent.Add(c.FeePercent).Mul(decimal.NewFromInt(2))
}

// ScheduleAwait returns ScheduleAwaitMinutes as a time.Duration.
func (c GlobalConfig) ScheduleAwait() time.Duration {
	return time.Duration(c.ScheduleAwaitMinutes) * time.Minute
}

// MaxSignalGeneration returns MaxSignalGenerationSeconds as a
// time.Duration.
func (c GlobalConfig) MaxSignalGeneration() time.Duration {
	return time.Duration(c.MaxSignalGenerationSeconds) * time.Second
}

// CandleRetryDelay returns CandleRetryDelayMs as a time.Duration.
func (c GlobalConfig) CandleRetryDelay() time.Duration {
	return time.Duration(c.CandleRetryDelayMs) * time.Millisecond
}

// Default returns the config with every built-in default applied.
func Default() GlobalConfig {
	return GlobalConfig{
		MinTPDistance:              decimal.NewFromFloat(0.003),
		MaxSLDistance:              decimal.NewFromFloat(0.20),
		MaxSignalLifetimeMinutes:   1440,
		ScheduleAwaitMinutes:       120,
		MaxSignalGenerationSeconds: 30,
		AvgPriceCandleCount:        5,
		CandleRetryCount:           3,
		CandleRetryDelayMs:         1000,
		SlippagePercent:            decimal.NewFromFloat(0.001),
		FeePercent:                 decimal.NewFromFloat(0.001),
	}
}

// Load reads configuration from the given file (if non-empty) and
// environment variables, applying defaults from Default() for anything
// unset. File format is inferred by viper from the extension (YAML/JSON/
// TOML all supported).
func Load(path string) (GlobalConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("KERNEL")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("minTpDistance", def.MinTPDistance.String())
	v.SetDefault("maxSlDistance", def.MaxSLDistance.String())
	v.SetDefault("maxSignalLifetimeMinutes", def.MaxSignalLifetimeMinutes)
	v.SetDefault("scheduleAwaitMinutes", def.ScheduleAwaitMinutes)
	v.SetDefault("maxSignalGenerationSeconds", def.MaxSignalGenerationSeconds)
	v.SetDefault("avgPriceCandleCount", def.AvgPriceCandleCount)
	v.SetDefault("candleRetryCount", def.CandleRetryCount)
	v.SetDefault("candleRetryDelayMs", def.CandleRetryDelayMs)
	v.SetDefault("slippagePercent", def.SlippagePercent.String())
	v.SetDefault("feePercent", def.FeePercent.String())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return GlobalConfig{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := GlobalConfig{
		MaxSignalLifetimeMinutes:   v.GetInt("maxSignalLifetimeMinutes"),
		ScheduleAwaitMinutes:       v.GetInt("scheduleAwaitMinutes"),
		MaxSignalGenerationSeconds: v.GetInt("maxSignalGenerationSeconds"),
		AvgPriceCandleCount:        v.GetInt("avgPriceCandleCount"),
		CandleRetryCount:           v.GetInt("candleRetryCount"),
		CandleRetryDelayMs:         v.GetInt("candleRetryDelayMs"),
	}

	var err error
	if cfg.MinTPDistance, err = decimal.NewFromString(v.GetString("minTpDistance")); err != nil {
		return GlobalConfig{}, fmt.Errorf("config: minTpDistance: %w", err)
	}
	if cfg.MaxSLDistance, err = decimal.NewFromString(v.GetString("maxSlDistance")); err != nil {
		return GlobalConfig{}, fmt.Errorf("config: maxSlDistance: %w", err)
	}
	if cfg.SlippagePercent, err = decimal.NewFromString(v.GetString("slippagePercent")); err != nil {
		return GlobalConfig{}, fmt.Errorf("config: slippagePercent: %w", err)
	}
	if cfg.FeePercent, err = decimal.NewFromString(v.GetString("feePercent")); err != nil {
		return GlobalConfig{}, fmt.Errorf("config: feePercent: %w", err)
	}

	return cfg, nil
}
