// Package config loads runtime settings from .env, an optional config.yml and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo    = "mongo"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"

	UploadLocal = "local"
	UploadS3    = "s3"

	CacheNone  = "none"
	CacheMongo = "mongo"
	CacheRedis = "redis"
	// CachePostgres shares the postgres store's connection.
	CachePostgres = "postgres"
)

type Config struct {
	Port               int    `mapstructure:"PORT"`
	Env                string `mapstructure:"APP_ENV"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	BasePath           string `mapstructure:"BASE_PATH"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LambdaRuntime      bool   `mapstructure:"LAMBDA_RUNTIME"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoHost     string `mapstructure:"MONGO_HOST"`
	MongoPort     int    `mapstructure:"MONGO_PORT"`
	MongoUsername string `mapstructure:"MONGO_USERNAME"`
	MongoPassword string `mapstructure:"MONGO_PASSWORD"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	DynamoDBTable             string `mapstructure:"DYNAMODB_TABLE"`
	DynamoDBSkipTableCreation bool   `mapstructure:"DYNAMODB_SKIP_TABLE_CREATION"`
	AWSRegion                 string `mapstructure:"AWS_REGION"`
	AWSEndpoint               string `mapstructure:"AWS_ENDPOINT"`

	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	UploadDriver  string        `mapstructure:"UPLOAD_DRIVER"`
	UploadDir     string        `mapstructure:"UPLOAD_DIR"`
	S3Bucket      string        `mapstructure:"S3_BUCKET"`
	S3Prefix      string        `mapstructure:"S3_PREFIX"`
	MaxUploadMB   int64         `mapstructure:"MAX_UPLOAD_MB"`
	CreateTimeout time.Duration `mapstructure:"CREATE_TIMEOUT"`

	CacheDriver string        `mapstructure:"CACHE_DRIVER"`
	RedisURL    string        `mapstructure:"REDIS_URL"`
	CacheTTL    time.Duration `mapstructure:"CACHE_TTL"`

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

var defaults = map[string]interface{}{
	"PORT":                         8080,
	"APP_ENV":                      "development",
	"LOG_LEVEL":                    "info",
	"BASE_PATH":                    "",
	"CORS_ALLOWED_ORIGINS":         "*",
	"LAMBDA_RUNTIME":               false,
	"STORE_DRIVER":                 StoreMongo,
	"MONGO_URI":                    "",
	"MONGO_HOST":                   "localhost",
	"MONGO_PORT":                   27017,
	"MONGO_USERNAME":               "",
	"MONGO_PASSWORD":               "",
	"MONGO_DATABASE":               "postboard",
	"DYNAMODB_TABLE":               "posts",
	"DYNAMODB_SKIP_TABLE_CREATION": false,
	"AWS_REGION":                   "us-east-1",
	"AWS_ENDPOINT":                 "",
	"POSTGRES_DSN":                 "",
	"UPLOAD_DRIVER":                UploadLocal,
	"UPLOAD_DIR":                   "public/uploads",
	"S3_BUCKET":                    "",
	"S3_PREFIX":                    "uploads",
	"MAX_UPLOAD_MB":                10,
	"CREATE_TIMEOUT":               "30s",
	"CACHE_DRIVER":                 CacheNone,
	"REDIS_URL":                    "localhost:6379",
	"CACHE_TTL":                    "1m",
	"METRICS_ENABLED":              true,
}

// Load reads .env (if present) into the process environment, then config.yml from
// the working directory (if present), then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.UploadDriver = strings.ToLower(strings.TrimSpace(c.UploadDriver))
	c.CacheDriver = strings.ToLower(strings.TrimSpace(c.CacheDriver))
	if c.CacheDriver == "" {
		c.CacheDriver = CacheNone
	}
	c.BasePath = strings.TrimRight(strings.TrimSpace(c.BasePath), "/")
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d is out of range", c.Port)
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" && c.MongoHost == "" {
			return errors.New("MONGO_URI or MONGO_HOST is required for the mongo store")
		}
		if c.MongoDatabase == "" {
			return errors.New("MONGO_DATABASE is required for the mongo store")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return errors.New("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.UploadDriver {
	case UploadLocal:
		if c.UploadDir == "" {
			return errors.New("UPLOAD_DIR is required for local uploads")
		}
	case UploadS3:
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required for s3 uploads")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_DRIVER %q", c.UploadDriver)
	}

	switch c.CacheDriver {
	case CacheNone, CacheRedis:
	case CacheMongo:
		if c.StoreDriver != StoreMongo {
			return errors.New("CACHE_DRIVER=mongo requires STORE_DRIVER=mongo")
		}
	case CachePostgres:
		if c.StoreDriver != StorePostgres {
			return errors.New("CACHE_DRIVER=postgres requires STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver)
	}

	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.CreateTimeout <= 0 {
		return errors.New("CREATE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func (c *Config) Mongo() *MongoConfig {
	if c.MongoURI != "" {
		return NewMongoConfig().WithURI(c.MongoURI).WithDatabase(c.MongoDatabase)
	}
	return NewMongoConfig().
		WithHost(c.MongoHost, c.MongoPort).
		WithCredentials(c.MongoUsername, c.MongoPassword).
		WithDatabase(c.MongoDatabase)
}

func (c *Config) SQL() *SQLConfig {
	return NewSQLConfig().WithDriver("postgres").WithDSN(c.PostgresDSN)
}

func (c *Config) DynamoDB() *DynamoDBConfig {
	return NewDynamoDBConfig().
		WithTableName(c.DynamoDBTable).
		WithSkipTableCreation(c.DynamoDBSkipTableCreation)
}

func (c *Config) AWS() *AWSConfig {
	return NewAWSConfig().WithRegion(c.AWSRegion).WithEndpoint(c.AWSEndpoint)
}
