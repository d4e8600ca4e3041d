package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloudbucket/internal/auth"
	"cloudbucket/internal/bucket"
	"cloudbucket/internal/config"
	"cloudbucket/internal/logger"
	"cloudbucket/internal/server"
	"cloudbucket/internal/share"
	"cloudbucket/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logg.Fatal("connect minio", zap.Error(err))
	}

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, cfg.Auth)

	objectStore := bucket.NewMinIOStore(minioClient, cfg.MinIO.Region)

	bucketRepo := bucket.NewRepository(dbPool)
	bucketService := bucket.NewService(bucketRepo, objectStore, logg)

	shareRepo := share.NewRepository(dbPool)
	shareService := share.NewService(shareRepo, objectStore, logg)

	router := server.NewRouter(server.Dependencies{
		Config:        cfg,
		DB:            dbPool,
		ObjectStore:   minioClient,
		AuthService:   authService,
		BucketService: bucketService,
		ShareService:  shareService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("cloudbucket API listening", zap.String("address", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
