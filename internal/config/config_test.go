package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProductionConfig() *Config {
	return &Config{
		Env:         "production",
		Port:        "8080",
		JWTSecret:   "secure-secret-at-least-32-chars-long",
		JWTTTLHours: 24,
		DBDriver:    "postgres",
		DBPassword:  "secure-password",
		DBSSLMode:   "require",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(_ *Config) {}, false},
		{"production with disabled SSL", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"production with empty SSL", func(c *Config) { c.DBSSLMode = "" }, true},
		{"production with default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"production with short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"production with sqlite", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"production with weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"production with short seed admin password", func(c *Config) {
			c.SeedAdminUsername = "admin"
			c.SeedAdminPassword = "short"
		}, true},
		{"seed admin username without password", func(c *Config) { c.SeedAdminUsername = "admin" }, true},
		{"development with sqlite", func(c *Config) {
			c.Env = "development"
			c.DBDriver = "sqlite"
			c.DBSSLMode = "disable"
		}, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"non-positive ttl", func(c *Config) { c.JWTTTLHours = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validProductionConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SEED_ADMIN_USERNAME", "  moderator ")
	t.Setenv("SEED_ADMIN_PASSWORD", "Sup3rSecret!")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "moderator", c.SeedAdminUsername)
	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, 24*7, c.JWTTTLHours)
	assert.False(t, c.IsProduction())
}

func TestLoadConfig_MissingProfileFile(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "staging-without-file")

	_, err := LoadConfig()
	assert.Error(t, err)
}
