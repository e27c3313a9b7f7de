package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		CloudProvider:             ProviderLocal,
		Port:                      "8080",
		Env:                       "development",
		AuthSecret:                "secure-secret-at-least-32-chars-long",
		PresignedURLExpirySeconds: 300,
		StoreTimeoutSeconds:       10,
		LocalDBDriver:             "sqlite",
		LocalSigningSecret:        "another-secure-secret-value-32-chars",
		TracingSampleRatio:        1,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid local", func(c *Config) {}, false},
		{"aws", func(c *Config) { c.CloudProvider = ProviderAWS }, false},
		{"unknown provider", func(c *Config) { c.CloudProvider = "oracle" }, true},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"zero expiry", func(c *Config) { c.PresignedURLExpirySeconds = 0 }, true},
		{"negative timeout", func(c *Config) { c.StoreTimeoutSeconds = -1 }, true},
		{"bad sample ratio", func(c *Config) { c.TracingSampleRatio = 1.5 }, true},
		{"bad local driver", func(c *Config) { c.LocalDBDriver = "mysql" }, true},
		{"driver ignored for gcp", func(c *Config) { c.CloudProvider = ProviderGCP; c.LocalDBDriver = "" }, false},
		{"missing secret", func(c *Config) { c.AuthSecret = "" }, true},
		{"auth disabled without secret", func(c *Config) { c.AuthSecret = ""; c.AuthDisabled = true }, false},
		{"production auth disabled", func(c *Config) { c.Env = "production"; c.AuthDisabled = true }, true},
		{"production short secret", func(c *Config) { c.Env = "prod"; c.AuthSecret = "short" }, true},
		{"production default signing secret", func(c *Config) {
			c.Env = "production"
			c.LocalSigningSecret = defaultLocalSigningSecret
		}, true},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
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

func TestLoadConfig_EnvOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("CLOUD_PROVIDER", "  AWS ")
	t.Setenv("AUTH_SECRET", strings.Repeat("s", 32))
	t.Setenv("POSTS_TABLE_NAME", "posts-table")
	t.Setenv("PRESIGNED_URL_EXPIRY", "120")
	t.Setenv("IMAGES_CDN_URL", "https://cdn.example.com/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ProviderAWS, c.CloudProvider)
	assert.Equal(t, "posts-table", c.PostsTableName)
	assert.Equal(t, "PostIdIndex", c.PostsPostIDIndex)
	assert.Equal(t, 2*time.Minute, c.PresignedURLTTL())
	assert.Equal(t, 10*time.Second, c.StoreTimeout())
	assert.Equal(t, "https://cdn.example.com", c.ImagesCDNURL)
	assert.Equal(t, "Admins", c.AdminGroup)
}

func TestLoadConfig_RejectsInvalidProvider(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "test")
	t.Setenv("CLOUD_PROVIDER", "ibm")
	t.Setenv("AUTH_DISABLED", "true")

	_, err := LoadConfig()
	assert.Error(t, err)
}
