package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Export: ExportConfig{MaxDataPoints: 100000},
		Pricing: PricingConfig{
			MCD: MCDConfig{
				Enabled:         true,
				UpdateFrequency: "daily",
				TargetROI:       3.0,
				SmoothingFactor: 0.4,
				DecayFactor:     0.9,
				MinMultiplier:   0.85,
				MaxMultiplier:   1.3,
			},
			RCD: RCDConfig{
				Enabled:         true,
				MaxDiscount:     25,
				SpendWeight:     0.5,
				FrequencyWeight: 0.3,
				RecencyWeight:   0.2,
			},
			Optimizer: OptimizerConfig{
				Enabled:      true,
				LearningRate: 0.1,
				MinWeight:    0.5,
				MaxWeight:    2.0,
			},
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			"unknown frequency",
			func(c *Config) { c.Pricing.MCD.UpdateFrequency = "fortnightly" },
			"update_frequency",
		},
		{
			"non-positive target roi",
			func(c *Config) { c.Pricing.MCD.TargetROI = 0 },
			"target_roi",
		},
		{
			"inverted multiplier bounds",
			func(c *Config) { c.Pricing.MCD.MaxMultiplier = 0.5 },
			"bounds",
		},
		{
			"smoothing out of range",
			func(c *Config) { c.Pricing.MCD.SmoothingFactor = 1.5 },
			"smoothing_factor",
		},
		{
			"discount over 100",
			func(c *Config) { c.Pricing.RCD.MaxDiscount = 150 },
			"max_discount",
		},
		{
			"zero component weights",
			func(c *Config) {
				c.Pricing.RCD.SpendWeight = 0
				c.Pricing.RCD.FrequencyWeight = 0
				c.Pricing.RCD.RecencyWeight = 0
			},
			"component weights",
		},
		{
			"optimizer without learning rate",
			func(c *Config) { c.Pricing.Optimizer.LearningRate = 0 },
			"learning_rate",
		},
		{
			"zero export points",
			func(c *Config) { c.Export.MaxDataPoints = 0 },
			"max_data_points",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestUpdateWindowMapping(t *testing.T) {
	cases := map[string]time.Duration{
		"hourly":  time.Hour,
		"daily":   24 * time.Hour,
		"Weekly":  168 * time.Hour,
		"MONTHLY": 720 * time.Hour,
	}

	for freq, want := range cases {
		window, err := MCDConfig{UpdateFrequency: freq}.UpdateWindow()
		if err != nil {
			t.Fatalf("UpdateWindow(%q) failed: %v", freq, err)
		}
		if window != want {
			t.Fatalf("UpdateWindow(%q) = %s, want %s", freq, window, want)
		}
	}
}
