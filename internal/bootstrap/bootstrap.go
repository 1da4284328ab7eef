// Package bootstrap turns a Config into a running server: it opens the configured
// store, upload sink and cache, and mounts every transport.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/postboard/internal/cache"
	"github.com/klass-lk/postboard/internal/config"
	"github.com/klass-lk/postboard/internal/controller"
	"github.com/klass-lk/postboard/internal/metrics"
	"github.com/klass-lk/postboard/internal/middleware"
	"github.com/klass-lk/postboard/internal/repository"
	"github.com/klass-lk/postboard/internal/rpc"
	"github.com/klass-lk/postboard/internal/server"
	"github.com/klass-lk/postboard/internal/service"
	"github.com/klass-lk/postboard/internal/storage"
	"github.com/klass-lk/postboard/internal/view"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Server *server.Server
	Posts  *service.PostService

	sqlDB   *sql.DB
	closers []func(ctx context.Context) error
}

// Backends are the pieces a server is assembled from.
type Backends struct {
	Repo  repository.PostRepository
	Files storage.FileService
	Cache cache.CacheService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	var mongoDB *mongo.Database
	if cfg.StoreDriver == config.StoreMongo || cfg.CacheDriver == config.CacheMongo {
		db, err := cfg.Mongo().Connect(ctx)
		if err != nil {
			return nil, err
		}
		mongoDB = db
		app.closers = append(app.closers, db.Client().Disconnect)
	}

	repo, err := app.openRepository(ctx, mongoDB)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}

	files, err := openFileService(ctx, cfg)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}

	cacheService, err := app.openCache(ctx, mongoDB)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}
	if cacheService != nil {
		cacheService = cache.NewVersionedCache(cacheService)
	}

	app.Posts = NewPostService(cfg, Backends{Repo: repo, Files: files, Cache: cacheService})
	app.Server = NewServer(cfg, app.Posts, files, cacheService)
	return app, nil
}

// OpenRepository opens the configured store on its own. The returned func closes it.
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.PostRepository, func(context.Context) error, error) {
	app := &App{Config: cfg}
	var mongoDB *mongo.Database
	if cfg.StoreDriver == config.StoreMongo {
		db, err := cfg.Mongo().Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		mongoDB = db
		app.closers = append(app.closers, db.Client().Disconnect)
	}
	repo, err := app.openRepository(ctx, mongoDB)
	if err != nil {
		_ = app.Close(context.Background())
		return nil, nil, err
	}
	return repo, app.Close, nil
}

func (a *App) openRepository(ctx context.Context, mongoDB *mongo.Database) (repository.PostRepository, error) {
	cfg := a.Config
	switch cfg.StoreDriver {
	case config.StoreMongo:
		repo := repository.NewMongoPostRepository(mongoDB)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to create post indexes: %w", err)
		}
		return repo, nil

	case config.StoreDynamoDB:
		awsCfg, err := cfg.AWS().Load(ctx)
		if err != nil {
			return nil, err
		}
		dynamoCfg := cfg.DynamoDB()
		repo := repository.NewDynamoDBPostRepository(cfg.AWS().DynamoDBClient(awsCfg), dynamoCfg.TableName)
		if !dynamoCfg.SkipTableCreation {
			if err := repo.EnsureTable(ctx); err != nil {
				return nil, fmt.Errorf("failed to create table %s: %w", dynamoCfg.TableName, err)
			}
		}
		return repo, nil

	case config.StorePostgres:
		db, err := cfg.SQL().Connect(ctx)
		if err != nil {
			return nil, err
		}
		a.sqlDB = db
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		repo := repository.NewSQLPostRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create posts table: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openFileService(ctx context.Context, cfg *config.Config) (storage.FileService, error) {
	switch cfg.UploadDriver {
	case config.UploadLocal:
		return storage.NewLocalFileService(cfg.UploadDir), nil
	case config.UploadS3:
		awsCfg, err := cfg.AWS().Load(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3FileService(cfg.AWS().S3Client(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
	}
	return nil, fmt.Errorf("unknown upload driver %q", cfg.UploadDriver)
}

func (a *App) openCache(ctx context.Context, mongoDB *mongo.Database) (cache.CacheService, error) {
	switch a.Config.CacheDriver {
	case config.CacheNone:
		return nil, nil
	case config.CacheMongo:
		return cache.NewMongoCacheService(mongoDB), nil
	case config.CachePostgres:
		svc := cache.NewSQLCacheService(a.sqlDB)
		if err := svc.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create cache tables: %w", err)
		}
		return svc, nil
	case config.CacheRedis:
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			opts = &redis.Options{Addr: a.Config.RedisURL}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		return cache.NewRedisCacheService(client), nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", a.Config.CacheDriver)
}

func NewPostService(cfg *config.Config, backends Backends) *service.PostService {
	svc := service.NewPostService(backends.Repo, backends.Files).
		WithCreateTimeout(cfg.CreateTimeout).
		WithMaxUploadSize(cfg.MaxUploadBytes())
	if backends.Cache != nil {
		svc.WithCache(backends.Cache)
	}
	return svc
}

// NewServer mounts the REST controllers under BASE_PATH and the view, uploads,
// RPC router and metrics at the root.
func NewServer(cfg *config.Config, posts controller.PostService, files storage.FileService, cacheService cache.CacheService) *server.Server {
	srv := server.New()
	if cfg.LambdaRuntime {
		srv.SetRuntime(server.RuntimeLambda)
	}
	srv.SetBasePath(cfg.BasePath)

	srv.Use(middleware.RequestID(), middleware.RequestLogger())
	if cfg.MetricsEnabled {
		srv.Use(middleware.Metrics())
	}

	origins := cfg.AllowedOrigins()
	if len(origins) == 1 && origins[0] == "*" {
		srv.DefaultCORS()
	} else {
		srv.CustomCORS(origins,
			[]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			[]string{"Origin", "Content-Length", "Content-Type", "X-Request-ID"},
			12*time.Hour)
	}

	postController := controller.NewPostController(posts)
	if cacheService != nil {
		postController.WithCache(cacheService, cfg.CacheTTL)
	}
	srv.RegisterController("/posts", postController)

	procedures := rpc.NewRouter()
	controller.NewPostProcedures(posts).Register(procedures)
	procedures.Register(srv.RootGroup("/rpc"))

	controller.NewUploadController(files).Register(srv.RootGroup("/uploads"))
	view.NewController().Register(srv.RootGroup(""))

	if cfg.MetricsEnabled {
		srv.RootGroup("/metrics").GET("", gin.WrapH(metrics.Handler()))
	}
	return srv
}

// Run serves until the process is signalled, then releases every backend.
func (a *App) Run() error {
	zap.L().Info("Starting postboard",
		zap.Int("port", a.Config.Port),
		zap.String("store", a.Config.StoreDriver),
		zap.String("uploads", a.Config.UploadDriver),
		zap.String("cache", a.Config.CacheDriver))

	runErr := a.Server.Start(a.Config.Port)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(runErr, a.Close(ctx))
}

// Close releases backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
