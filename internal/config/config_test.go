package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, UploadLocal, cfg.UploadDriver)
	assert.Equal(t, CacheNone, cfg.CacheDriver)
	assert.Equal(t, "public/uploads", cfg.UploadDir)
	assert.Equal(t, 30*time.Second, cfg.CreateTimeout)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes())
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo().BuildURI())
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", " Postgres ")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db/postboard")
	t.Setenv("CREATE_TIMEOUT", "5s")
	t.Setenv("BASE_PATH", "/api/")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.CreateTimeout)
	assert.Equal(t, "/api", cfg.BasePath)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
	assert.Equal(t, "postgres://u:p@db/postboard", cfg.SQL().BuildDSN())
}

func TestLoadFromDotEnvAndYAML(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile(".env", []byte("MONGO_DATABASE=fromdotenv\n"), 0o644))
	require.NoError(t, os.WriteFile("config.yml", []byte("MAX_UPLOAD_MB: 2\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("MONGO_DATABASE") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.MongoDatabase)
	assert.Equal(t, int64(2), cfg.MaxUploadMB)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          8080,
			StoreDriver:   StoreMongo,
			MongoHost:     "localhost",
			MongoDatabase: "postboard",
			UploadDriver:  UploadLocal,
			UploadDir:     "public/uploads",
			CacheDriver:   CacheNone,
			MaxUploadMB:   10,
			CreateTimeout: time.Second,
		}
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown store", func(c *Config) { c.StoreDriver = "cassandra" }, true},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = StorePostgres }, true},
		{"dynamodb without table", func(c *Config) { c.StoreDriver = StoreDynamoDB }, true},
		{"dynamodb with table", func(c *Config) { c.StoreDriver = StoreDynamoDB; c.DynamoDBTable = "posts" }, false},
		{"s3 without bucket", func(c *Config) { c.UploadDriver = UploadS3 }, true},
		{"unknown upload driver", func(c *Config) { c.UploadDriver = "ftp" }, true},
		{"mongo cache on postgres", func(c *Config) {
			c.StoreDriver = StorePostgres
			c.PostgresDSN = "dsn"
			c.CacheDriver = CacheMongo
		}, true},
		{"redis cache", func(c *Config) { c.CacheDriver = CacheRedis }, false},
		{"postgres cache on mongo", func(c *Config) { c.CacheDriver = CachePostgres }, true},
		{"postgres cache on postgres", func(c *Config) {
			c.StoreDriver = StorePostgres
			c.PostgresDSN = "dsn"
			c.CacheDriver = CachePostgres
		}, false},
		{"zero upload size", func(c *Config) { c.MaxUploadMB = 0 }, true},
		{"zero timeout", func(c *Config) { c.CreateTimeout = 0 }, true},
		{"port out of range", func(c *Config) { c.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
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

func TestMongoConfigBuildURI(t *testing.T) {
	cfg := NewMongoConfig().
		WithHost("db", 27018).
		WithCredentials("user", "p@ss").
		WithOption("replicaSet", "rs0").
		WithOption("authSource", "admin")

	assert.Equal(t, "mongodb://user:p%40ss@db:27018/?authSource=admin&replicaSet=rs0", cfg.BuildURI())
	assert.Equal(t, "mongodb://elsewhere", cfg.WithURI("mongodb://elsewhere").BuildURI())
}

func TestSQLConfigBuildDSN(t *testing.T) {
	cfg := NewSQLConfig().WithHost("db", 5433).WithCredentials("u", "p").WithDatabase("posts")
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=posts sslmode=disable", cfg.BuildDSN())
}

func TestAWSConfigLocalEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_CONFIG_FILE", os.DevNull)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", os.DevNull)
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	aws := NewAWSConfig().WithRegion("eu-west-1").WithEndpoint("http://localhost:8000")
	cfg, err := aws.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", creds.AccessKeyID)

	assert.NotNil(t, aws.DynamoDBClient(cfg))
	assert.NotNil(t, aws.S3Client(cfg))
}
