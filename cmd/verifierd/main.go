package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/inspection-verifier/internal/async"
	"github.com/joseph-ayodele/inspection-verifier/internal/cache"
	"github.com/joseph-ayodele/inspection-verifier/internal/common"
	"github.com/joseph-ayodele/inspection-verifier/internal/export"
	"github.com/joseph-ayodele/inspection-verifier/internal/pipeline"
	repo "github.com/joseph-ayodele/inspection-verifier/internal/repository"
	"github.com/joseph-ayodele/inspection-verifier/internal/server"
)

func main() {
	common.LoadDotEnv(nil)
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.OpenStore(ctx, cfg.Database, false, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := []async.Option{
		async.WithFileTimeout(cfg.Queue.FileTimeout),
		async.WithMaxFiles(cfg.Queue.MaxFilesPerJob),
	}
	var srvOpts []server.Option
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Cache.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rc.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		pub := cache.NewJobPublisher(rc, cfg.Cache.TTL, logger)
		opts = append(opts, async.WithPublisher(pub))
		srvOpts = append(srvOpts, server.WithJobCache(pub))
		logger.Info("job snapshot cache enabled", "addr", cfg.Cache.RedisAddr)
	}

	processor := pipeline.NewFromConfig(cfg.OCR, logger)
	queue := async.NewJobQueue(processor, repo.NewDocumentSaver(store.Repo), logger, opts...)

	api := server.New(queue, store.Repo, export.NewService(logger), server.Config{
		UploadDir:   cfg.Upload.Dir,
		MaxFiles:    cfg.Queue.MaxFilesPerJob,
		MaxFileSize: cfg.Upload.MaxFileSize,
	}, logger, srvOpts...)
	httpSrv := api.HTTPServer(cfg.Server.HTTPAddr)

	grpcSrv, health := server.NewHealthServer()
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr, "store", store.Backend())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		if err := queue.Shutdown(sctx); err != nil {
			logger.Error("queue shutdown", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
