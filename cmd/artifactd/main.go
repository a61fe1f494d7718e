// Command artifactd runs the Artifact Manager: the Lifecycle Controller
// wired to its metadata store, object store, vector database, and
// embedding service, served over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaultspace/artifactd/internal/config"
	"github.com/vaultspace/artifactd/internal/database"
	"github.com/vaultspace/artifactd/internal/httpapi"
	"github.com/vaultspace/artifactd/pkg/alias/wordlists"
	"github.com/vaultspace/artifactd/pkg/artifact"
	"github.com/vaultspace/artifactd/pkg/artifact/metrics"
	"github.com/vaultspace/artifactd/pkg/datastorage/repository"
	"github.com/vaultspace/artifactd/pkg/embedding"
	"github.com/vaultspace/artifactd/pkg/objectstore"
	"github.com/vaultspace/artifactd/pkg/objectstore/presignlimiter"
	"github.com/vaultspace/artifactd/pkg/permission"
	sharedhttp "github.com/vaultspace/artifactd/pkg/shared/http"
	"github.com/vaultspace/artifactd/pkg/vector"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the server's YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(database.PoolConfig{
		Driver:                 cfg.Database.Driver,
		DSN:                    cfg.Database.DSN,
		MaxOpenConns:           cfg.Database.MaxOpenConns,
		MaxIdleConns:           cfg.Database.MaxIdleConns,
		ConnMaxLifetimeMinutes: cfg.Database.ConnMaxLifetimeMinutes,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	dialect := database.DialectPostgres
	if cfg.Database.Driver == "sqlite" || cfg.Database.Driver == "sqlite3" {
		dialect = database.DialectSQLite
	}

	vectorFactory := vector.NewFactory(&cfg.VectorDB, nil, logger)
	vectorDB, err := vectorFactory.CreateDatabase(ctx)
	if err != nil {
		return err
	}

	embeddings, err := embedding.Resolve(cfg.VectorDB.EmbeddingService.Service, embedding.Dependencies{
		Dimension: cfg.VectorDB.EmbeddingService.Dimension,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	var presignLimit *presignlimiter.Limiter
	if cfg.PresignRateLimit.Enabled {
		presignLimit = presignlimiter.New(
			&redis.Options{Addr: cfg.PresignRateLimit.RedisAddr},
			cfg.PresignRateLimit.Limit,
			time.Duration(cfg.PresignRateLimit.WindowSeconds)*time.Second,
			logger,
		)
		defer func() { _ = presignLimit.Close() }()
	}

	httpClient := sharedhttp.NewDefaultClient()

	controller := artifact.NewController(artifact.Deps{
		Pool:        pool,
		Repo:        repository.NewArtifactRepository(dialect, logger),
		Words:       wordlists.NewLoader(cfg.Permission.WordListDir, logger),
		Permissions: permission.NewEvaluator(),
		ObjectStore: objectstore.NewClient,
		ServerDefault: objectstore.ServerDefaults{
			Endpoint:       cfg.ObjectStore.Endpoint,
			Region:         cfg.ObjectStore.Region,
			Bucket:         cfg.ObjectStore.Bucket,
			PublicEndpoint: cfg.ObjectStore.PublicEndpoint,
		},
		PresignTTL:   cfg.ObjectStore.PresignTTL,
		ArtifactsDir: cfg.ObjectStore.ArtifactsDir,
		VectorDB:     vectorDB,
		Embeddings:   embeddings,
		PresignLimit: presignLimit,
		HTTPClient:   httpClient,
		Metrics:      metrics.NewRecorder(),
		Logger:       logger,
	})

	handler := httpapi.NewHandler(controller, httpClient, logger)
	router := httpapi.NewRouter(handler, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
