package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/njprem/ReviewHub_BackEnd/internal/config"
	"github.com/njprem/ReviewHub_BackEnd/internal/logging"
	"github.com/njprem/ReviewHub_BackEnd/internal/metrics"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/memory"
	miniorepo "github.com/njprem/ReviewHub_BackEnd/internal/repository/minio"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/postgres"
	"github.com/njprem/ReviewHub_BackEnd/internal/service"
	transporthttp "github.com/njprem/ReviewHub_BackEnd/internal/transport/http"
	"github.com/njprem/ReviewHub_BackEnd/internal/util"
)

const serviceName = "reviewhub-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		sink     io.Writer
		logstash *logging.LogstashWriter
	)
	if cfg.LogstashTCPAddr != "" {
		logstash, err = logging.NewLogstashWriter(cfg.LogstashTCPAddr)
		if err != nil {
			log.Fatalf("logstash: %v", err)
		}
		defer logstash.Close()
		sink = logstash
	}
	logger := logging.New(serviceName, cfg.LogLevel, sink)
	slog.SetDefault(logger)

	if err := run(cfg, logger, logstash); err != nil {
		logger.Error("api stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, logstash *logging.LogstashWriter) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var objects ports.ObjectStorage
	if cfg.MinIOEnabled() {
		client, err := miniorepo.NewClient(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
		if err != nil {
			return err
		}
		storage := miniorepo.NewStorage(client)
		if err := storage.EnsureBucket(ctx, cfg.MinIOBucketReviews); err != nil {
			return err
		}
		objects = storage
		logger.Info("attachments stored in object storage",
			slog.String("endpoint", cfg.MinIOEndpoint),
			slog.String("bucket", cfg.MinIOBucketReviews))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)
	if logstash != nil {
		metrics.WatchDroppedLogs(reg, logstash.Dropped)
	}

	reviews := service.NewReviewService(store, objects, service.ReviewServiceConfig{
		Bucket:          cfg.MinIOBucketReviews,
		VoteMaxAttempts: cfg.VoteMaxAttempts,
		Logger:          logger,
		Metrics:         recorder,
	})

	e := transporthttp.NewRouter(transporthttp.RouterConfig{
		AllowOrigins: cfg.AllowOrigins,
		Logger:       logger,
		Metrics:      recorder,
		Gatherer:     reg,
		MaxBodyBytes: cfg.MaxRequestBytes(),
	})
	verifier := transporthttp.JWTVerifier{Manager: util.NewJWTManager(cfg.JWTSecret, 0)}
	transporthttp.RegisterReviews(e, verifier, reviews, cfg.AttachmentMaxBytes)
	transporthttp.RegisterSwagger(e, cfg.SwaggerSpecPath)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.Store, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.New(cfg.DatabaseURL, postgres.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.RunMigrations {
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return postgres.NewStore(db), func() { _ = db.Close() }, nil
}
