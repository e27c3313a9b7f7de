// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported CLOUD_PROVIDER values.
const (
	ProviderLocal = "local"
	ProviderAWS   = "aws"
	ProviderAzure = "azure"
	ProviderGCP   = "gcp"
)

const defaultLocalSigningSecret = "local-object-signing-secret-change-me"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	CloudProvider  string `mapstructure:"CLOUD_PROVIDER"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	Version        string `mapstructure:"APP_VERSION"`

	AuthDisabled bool   `mapstructure:"AUTH_DISABLED"`
	AuthSecret   string `mapstructure:"AUTH_SECRET"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	AdminGroup   string `mapstructure:"ADMIN_GROUP"`

	PresignedURLExpirySeconds int    `mapstructure:"PRESIGNED_URL_EXPIRY"`
	StoreTimeoutSeconds       int    `mapstructure:"STORE_TIMEOUT_SECONDS"`
	ImagesCDNURL              string `mapstructure:"IMAGES_CDN_URL"`

	// AWS
	AWSRegion          string `mapstructure:"AWS_REGION"`
	DynamoDBEndpoint   string `mapstructure:"DYNAMODB_ENDPOINT"`
	PostsTableName     string `mapstructure:"POSTS_TABLE_NAME"`
	PostsPostIDIndex   string `mapstructure:"POSTS_POST_ID_INDEX"`
	ImagesBucketName   string `mapstructure:"IMAGES_BUCKET_NAME"`
	S3Endpoint         string `mapstructure:"S3_ENDPOINT"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`

	// Azure
	CosmosEndpoint        string `mapstructure:"COSMOS_DB_ENDPOINT"`
	CosmosKey             string `mapstructure:"COSMOS_DB_KEY"`
	CosmosDatabase        string `mapstructure:"COSMOS_DB_DATABASE"`
	CosmosContainer       string `mapstructure:"COSMOS_DB_CONTAINER"`
	AzureStorageAccount   string `mapstructure:"AZURE_STORAGE_ACCOUNT_NAME"`
	AzureStorageKey       string `mapstructure:"AZURE_STORAGE_ACCOUNT_KEY"`
	AzureStorageContainer string `mapstructure:"AZURE_STORAGE_CONTAINER"`
	AzureBlobEndpoint     string `mapstructure:"AZURE_BLOB_ENDPOINT"`

	// GCP
	GCPProjectID          string `mapstructure:"GCP_PROJECT_ID"`
	GCPPostsCollection    string `mapstructure:"GCP_POSTS_COLLECTION"`
	GCPProfilesCollection string `mapstructure:"GCP_PROFILES_COLLECTION"`
	GCPStorageBucket      string `mapstructure:"GCP_STORAGE_BUCKET"`
	GCPServiceAccount     string `mapstructure:"GCP_SERVICE_ACCOUNT"`
	GCPCredentialsFile    string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Local
	LocalDBDriver      string `mapstructure:"LOCAL_DB_DRIVER"`
	LocalDBDSN         string `mapstructure:"LOCAL_DB_DSN"`
	LocalStorageDir    string `mapstructure:"LOCAL_STORAGE_DIR"`
	PublicBaseURL      string `mapstructure:"PUBLIC_BASE_URL"`
	LocalSigningSecret string `mapstructure:"LOCAL_SIGNING_SECRET"`

	// Tracing
	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and
// environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config.%s.yml: %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("CLOUD_PROVIDER", ProviderLocal)
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("APP_VERSION", "dev")

	viper.SetDefault("AUTH_DISABLED", false)
	viper.SetDefault("AUTH_SECRET", "")
	viper.SetDefault("AUTH_ISSUER", "")
	viper.SetDefault("AUTH_AUDIENCE", "")
	viper.SetDefault("ADMIN_GROUP", "Admins")

	viper.SetDefault("PRESIGNED_URL_EXPIRY", 300)
	viper.SetDefault("STORE_TIMEOUT_SECONDS", 10)
	viper.SetDefault("IMAGES_CDN_URL", "")

	viper.SetDefault("AWS_REGION", "us-east-1")
	viper.SetDefault("DYNAMODB_ENDPOINT", "")
	viper.SetDefault("POSTS_TABLE_NAME", "")
	viper.SetDefault("POSTS_POST_ID_INDEX", "PostIdIndex")
	viper.SetDefault("IMAGES_BUCKET_NAME", "")
	viper.SetDefault("S3_ENDPOINT", "")
	viper.SetDefault("AWS_ACCESS_KEY_ID", "")
	viper.SetDefault("AWS_SECRET_ACCESS_KEY", "")

	viper.SetDefault("COSMOS_DB_ENDPOINT", "")
	viper.SetDefault("COSMOS_DB_KEY", "")
	viper.SetDefault("COSMOS_DB_DATABASE", "")
	viper.SetDefault("COSMOS_DB_CONTAINER", "")
	viper.SetDefault("AZURE_STORAGE_ACCOUNT_NAME", "")
	viper.SetDefault("AZURE_STORAGE_ACCOUNT_KEY", "")
	viper.SetDefault("AZURE_STORAGE_CONTAINER", "")
	viper.SetDefault("AZURE_BLOB_ENDPOINT", "")

	viper.SetDefault("GCP_PROJECT_ID", "")
	viper.SetDefault("GCP_POSTS_COLLECTION", "posts")
	viper.SetDefault("GCP_PROFILES_COLLECTION", "profiles")
	viper.SetDefault("GCP_STORAGE_BUCKET", "")
	viper.SetDefault("GCP_SERVICE_ACCOUNT", "")
	viper.SetDefault("GOOGLE_APPLICATION_CREDENTIALS", "")

	viper.SetDefault("LOCAL_DB_DRIVER", "sqlite")
	viper.SetDefault("LOCAL_DB_DSN", "file:simplesns.db?_pragma=busy_timeout(5000)")
	viper.SetDefault("LOCAL_STORAGE_DIR", "./data/objects")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("LOCAL_SIGNING_SECRET", defaultLocalSigningSecret)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "otlp")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.CloudProvider = strings.ToLower(strings.TrimSpace(c.CloudProvider))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LocalDBDriver = strings.ToLower(strings.TrimSpace(c.LocalDBDriver))
	c.ImagesCDNURL = strings.TrimRight(strings.TrimSpace(c.ImagesCDNURL), "/")
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}

// IsProduction reports whether the app runs with production rules.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// PresignedURLTTL is the lifetime of signed upload and download URLs.
func (c *Config) PresignedURLTTL() time.Duration {
	return time.Duration(c.PresignedURLExpirySeconds) * time.Second
}

// StoreTimeout bounds every document-store and object-store call.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.CloudProvider {
	case ProviderLocal, ProviderAWS, ProviderAzure, ProviderGCP:
	default:
		return fmt.Errorf("CLOUD_PROVIDER must be one of local, aws, azure, gcp (got %q)", c.CloudProvider)
	}
	if c.PresignedURLExpirySeconds <= 0 {
		return errors.New("PRESIGNED_URL_EXPIRY must be positive")
	}
	if c.StoreTimeoutSeconds <= 0 {
		return errors.New("STORE_TIMEOUT_SECONDS must be positive")
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.CloudProvider == ProviderLocal {
		switch c.LocalDBDriver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("LOCAL_DB_DRIVER must be sqlite or postgres (got %q)", c.LocalDBDriver)
		}
	}
	if !c.AuthDisabled && c.AuthSecret == "" {
		return errors.New("AUTH_SECRET is required unless AUTH_DISABLED is set")
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.AuthDisabled {
			return errors.New("AUTH_DISABLED cannot be used in production")
		}
		if len(c.AuthSecret) < 32 {
			return errors.New("AUTH_SECRET must be at least 32 characters in production")
		}
		if c.CloudProvider == ProviderLocal && c.LocalSigningSecret == defaultLocalSigningSecret {
			return errors.New("LOCAL_SIGNING_SECRET must be changed from the default value in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if !c.AuthDisabled && len(c.AuthSecret) < 32 {
		log.Println("WARNING: AUTH_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
