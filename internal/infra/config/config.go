package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	AccessTokenSecret  string
	RefreshTokenSecret string
	PasswordPepper     string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ResetTokenTTL      time.Duration
	Issuer             string

	HTTPAddress      string
	AllowedOrigins   []string
	AllowCredentials bool
	CookieDomain     string

	LogLevel string
}

// Load reads configuration from the environment (optionally overlaid by a
// local config.json). Missing required keys fail startup.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	for _, key := range []string{
		"DATABASE_URL",
		"REDIS_ADDRESS",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"ACCESS_TOKEN_SECRET",
		"REFRESH_TOKEN_SECRET",
		"PASSWORD_PEPPER",
		"ACCESS_TOKEN_TTL",
		"REFRESH_TOKEN_TTL",
		"RESET_TOKEN_TTL",
		"JWT_ISSUER",
		"HTTP_ADDRESS",
		"ALLOWED_ORIGINS",
		"ALLOW_CREDENTIALS",
		"COOKIE_DOMAIN",
		"LOG_LEVEL",
	} {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	viper.SetDefault("ACCESS_TOKEN_TTL", "15m")
	viper.SetDefault("REFRESH_TOKEN_TTL", "168h")
	viper.SetDefault("RESET_TOKEN_TTL", "1h")
	viper.SetDefault("HTTP_ADDRESS", ":8080")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	for _, key := range []string{
		"DATABASE_URL",
		"REDIS_ADDRESS",
		"ACCESS_TOKEN_SECRET",
		"REFRESH_TOKEN_SECRET",
	} {
		if viper.GetString(key) == "" {
			return nil, fmt.Errorf("required config %s is not set", key)
		}
	}

	cfg := &Config{
		DatabaseURL:        viper.GetString("DATABASE_URL"),
		RedisAddress:       viper.GetString("REDIS_ADDRESS"),
		RedisPassword:      viper.GetString("REDIS_PASSWORD"),
		RedisDB:            viper.GetInt("REDIS_DB"),
		AccessTokenSecret:  viper.GetString("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: viper.GetString("REFRESH_TOKEN_SECRET"),
		PasswordPepper:     viper.GetString("PASSWORD_PEPPER"),
		AccessTokenTTL:     viper.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:    viper.GetDuration("REFRESH_TOKEN_TTL"),
		ResetTokenTTL:      viper.GetDuration("RESET_TOKEN_TTL"),
		Issuer:             viper.GetString("JWT_ISSUER"),
		HTTPAddress:        viper.GetString("HTTP_ADDRESS"),
		AllowedOrigins:     viper.GetStringSlice("ALLOWED_ORIGINS"),
		AllowCredentials:   viper.GetBool("ALLOW_CREDENTIALS"),
		CookieDomain:       viper.GetString("COOKIE_DOMAIN"),
		LogLevel:           viper.GetString("LOG_LEVEL"),
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 || cfg.ResetTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive durations")
	}

	return cfg, nil
}
