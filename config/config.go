package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadDotEnv loads .env.local before .env so local overrides win. Missing
// files are not an error.
func LoadDotEnv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

// New returns a viper instance reading the process environment.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("READ_TIMEOUT_SECONDS", 180)
	v.SetDefault("WRITE_TIMEOUT_SECONDS", 180)
	v.SetDefault("IDLE_TIMEOUT_SECONDS", 180)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("SUPABASE_DB_PORT", "5432")
	return v
}

func GetString(config *viper.Viper, key string, defaultValue string) string {
	if config == nil || !config.IsSet(key) {
		return defaultValue
	}
	if val := config.GetString(key); val != "" {
		return val
	}
	return defaultValue
}

func GetInt(config *viper.Viper, key string, defaultValue int) int {
	if config == nil || !config.IsSet(key) {
		return defaultValue
	}
	return config.GetInt(key)
}

func GetBool(config *viper.Viper, key string, defaultValue bool) bool {
	if config == nil || !config.IsSet(key) {
		return defaultValue
	}
	return config.GetBool(key)
}

// GetSeconds reads an integer number of seconds.
func GetSeconds(config *viper.Viper, key string, defaultValue int) time.Duration {
	return time.Duration(GetInt(config, key, defaultValue)) * time.Second
}

// GetStrings splits a comma separated value and drops empty entries.
func GetStrings(config *viper.Viper, key string) []string {
	raw := GetString(config, key, "")
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
