package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-profile/internal/auth"
	"user-profile/internal/cache"
	"user-profile/internal/config"
	"user-profile/internal/executor"
	apphttp "user-profile/internal/http"
	"user-profile/internal/jobs"
	"user-profile/internal/login"
	"user-profile/internal/metrics"
	"user-profile/internal/repository/sqlite"
	"user-profile/internal/service"
	"user-profile/internal/webservice"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, logger.GetLevel())
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	if err := store.Init(ctx); err != nil {
		logger.Fatalf("init user store: %v", err)
	}

	remote, err := buildRemote(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup remote: %v", err)
	}

	pool := executor.NewPool(executor.Config{
		MaxConcurrent: cfg.Executor.MaxConcurrent,
		Logger:        logger,
	})
	pool.Start(ctx)

	appMetrics := metrics.New()
	userCache := cache.NewUserCache(cfg.Repository.FreshTimeout, cfg.Cache.MaxEntries)
	userService := service.NewUserService(
		remote,
		pool,
		store,
		userCache,
		service.Config{
			FreshTimeout: cfg.Repository.FreshTimeout,
			Logger:       logger,
			Metrics:      appMetrics,
		},
	)

	purge := jobs.NewStalePurgeJob(store, logger, cfg.Repository.PurgeInterval, cfg.Repository.Retention)
	go purge.Start(ctx)

	sweep := jobs.NewCacheSweepJob(userCache, appMetrics, logger, cfg.Cache.SweepInterval)
	go sweep.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Users:       userService,
		Login:       login.NewDataSource(),
		Issuer:      auth.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
		Metrics:     appMetrics,
		WaitTimeout: cfg.HTTP.WaitTimeout,
		Logger:      logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	purge.Stop()
	sweep.Stop()
	pool.Shutdown()

	logger.Info("bye")
}

func buildRemote(ctx context.Context, cfg config.Config, logger *logrus.Logger) (webservice.Service, error) {
	switch cfg.Remote.Backend {
	case config.BackendHTTP:
		logger.Infof("fetching users from %s", cfg.Remote.BaseURL)
		client := &http.Client{Timeout: cfg.Remote.Timeout}
		return webservice.NewHTTPService(cfg.Remote.BaseURL, client, cfg.Remote.Timeout), nil
	case config.BackendS3:
		return buildS3Remote(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

func buildS3Remote(ctx context.Context, cfg config.Config, logger *logrus.Logger) (webservice.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("fetching users from s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return webservice.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}
