package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Rating      RatingConfig      `mapstructure:"rating"`
	Predictions PredictionsConfig `mapstructure:"predictions"`
	Clones      ClonesConfig      `mapstructure:"clones"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Export      ExportConfig      `mapstructure:"export"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// APIConfig holds football data API configuration
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Key            string        `mapstructure:"key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	LeagueIDs      []int         `mapstructure:"league_ids"`
}

// RatingConfig holds the Elo rating engine parameters
type RatingConfig struct {
	Default       float64 `mapstructure:"default"`
	KFactor       float64 `mapstructure:"k_factor"`
	HomeAdvantage float64 `mapstructure:"home_advantage"`
}

// PredictionsConfig holds the probability model and value evaluation parameters
type PredictionsConfig struct {
	DrawCeiling   float64  `mapstructure:"draw_ceiling"`
	DrawFloor     float64  `mapstructure:"draw_floor"`
	DrawSlope     float64  `mapstructure:"draw_slope"`
	BaselineGoals float64  `mapstructure:"baseline_goals"`
	GoalsPerPoint float64  `mapstructure:"goals_per_point"`
	ValueMin      float64  `mapstructure:"value_min"`
	Markets       []string `mapstructure:"markets"`
	// EmitWithoutOdds controls whether fixtures lacking a price still produce
	// probability-only records (nil odd and value) instead of being skipped.
	EmitWithoutOdds   bool     `mapstructure:"emit_without_odds"`
	BookmakerPriority []string `mapstructure:"bookmaker_priority"`
}

// ClonesConfig holds the clone detector weights and thresholds
type ClonesConfig struct {
	Threshold        float64 `mapstructure:"threshold"`
	WeightRatingGap  float64 `mapstructure:"weight_rating_gap"`
	WeightOddsShape  float64 `mapstructure:"weight_odds_shape"`
	WeightRecentForm float64 `mapstructure:"weight_recent_form"`
	WeightLeague     float64 `mapstructure:"weight_league"`
	WeightHeadToHead float64 `mapstructure:"weight_head_to_head"`
	FormWindow       int     `mapstructure:"form_window"`
	LeagueMismatch   float64 `mapstructure:"league_mismatch"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ExportConfig holds prediction export configuration
type ExportConfig struct {
	Dir     string `mapstructure:"dir"`
	Enabled bool   `mapstructure:"enabled"`
}

// DashboardConfig holds the HTTP API configuration
type DashboardConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	TopRatings int    `mapstructure:"top_ratings"`
	Enabled    bool   `mapstructure:"enabled"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	Enabled        bool          `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// Enable environment variable override (FOOTORACLE_API_KEY etc.)
	v.SetEnvPrefix("FOOTORACLE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.base_url", "https://api-football-v1.p.rapidapi.com/v3")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay_base", "1s")

	// Rating defaults (standard football Elo parameters)
	v.SetDefault("rating.default", 1500.0)
	v.SetDefault("rating.k_factor", 32.0)
	v.SetDefault("rating.home_advantage", 100.0)

	// Prediction defaults
	v.SetDefault("predictions.draw_ceiling", 0.32)
	v.SetDefault("predictions.draw_floor", 0.10)
	v.SetDefault("predictions.draw_slope", 0.00055)
	v.SetDefault("predictions.baseline_goals", 2.6)
	v.SetDefault("predictions.goals_per_point", 0.0008)
	v.SetDefault("predictions.value_min", 0.0)
	v.SetDefault("predictions.markets", []string{"1X2", "OU2.5", "BTTS"})
	v.SetDefault("predictions.emit_without_odds", true)
	v.SetDefault("predictions.bookmaker_priority", []string{"Pinnacle", "Bet365"})

	// Clone detector defaults
	v.SetDefault("clones.threshold", 0.80)
	v.SetDefault("clones.weight_rating_gap", 0.30)
	v.SetDefault("clones.weight_odds_shape", 0.25)
	v.SetDefault("clones.weight_recent_form", 0.20)
	v.SetDefault("clones.weight_league", 0.15)
	v.SetDefault("clones.weight_head_to_head", 0.10)
	v.SetDefault("clones.form_window", 5)
	v.SetDefault("clones.league_mismatch", 0.25)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/footoracle.db")

	// Export defaults
	v.SetDefault("export.dir", "./predictions")
	v.SetDefault("export.enabled", true)

	// Dashboard defaults
	v.SetDefault("dashboard.listen_addr", ":8090")
	v.SetDefault("dashboard.top_ratings", 50)
	v.SetDefault("dashboard.enabled", false)

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")
	v.SetDefault("telegram.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1 second")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api.max_retries must be at least 1")
	}

	if c.Rating.Default <= 0 {
		return fmt.Errorf("rating.default must be positive")
	}
	if c.Rating.KFactor <= 0 {
		return fmt.Errorf("rating.k_factor must be positive")
	}
	if c.Rating.HomeAdvantage < 0 {
		return fmt.Errorf("rating.home_advantage must not be negative")
	}

	if c.Predictions.DrawFloor < 0 || c.Predictions.DrawCeiling > 1.0 ||
		c.Predictions.DrawFloor > c.Predictions.DrawCeiling {
		return fmt.Errorf("predictions draw bounds must satisfy 0 <= floor <= ceiling <= 1")
	}
	if c.Predictions.DrawSlope < 0 {
		return fmt.Errorf("predictions.draw_slope must not be negative")
	}
	if c.Predictions.BaselineGoals <= 0 {
		return fmt.Errorf("predictions.baseline_goals must be positive")
	}
	if len(c.Predictions.Markets) == 0 {
		return fmt.Errorf("predictions.markets must contain at least one market")
	}
	if len(c.Predictions.BookmakerPriority) == 0 {
		return fmt.Errorf("predictions.bookmaker_priority must contain at least one bookmaker")
	}

	weightSum := c.Clones.WeightRatingGap + c.Clones.WeightOddsShape +
		c.Clones.WeightRecentForm + c.Clones.WeightLeague + c.Clones.WeightHeadToHead
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("clone similarity weights must sum to 1.0, got %.3f", weightSum)
	}
	if c.Clones.Threshold < 0 || c.Clones.Threshold > 1.0 {
		return fmt.Errorf("clones.threshold must be between 0.0 and 1.0")
	}
	if c.Clones.FormWindow < 1 {
		return fmt.Errorf("clones.form_window must be at least 1")
	}
	if c.Clones.LeagueMismatch < 0 || c.Clones.LeagueMismatch > 1.0 {
		return fmt.Errorf("clones.league_mismatch must be between 0.0 and 1.0")
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Export.Enabled && c.Export.Dir == "" {
		return fmt.Errorf("export.dir is required when export is enabled")
	}
	if c.Dashboard.Enabled && c.Dashboard.ListenAddr == "" {
		return fmt.Errorf("dashboard.listen_addr is required when dashboard is enabled")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
