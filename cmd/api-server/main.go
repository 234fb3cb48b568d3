// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"villas-admin/internal/apiserver/auth"
	"villas-admin/internal/apiserver/cluster"
	"villas-admin/internal/apiserver/server"
	"villas-admin/internal/config"
	"villas-admin/internal/shared/cache"
	cacheredis "villas-admin/internal/shared/cache/redis"
	"villas-admin/internal/shared/objstore"
	"villas-admin/internal/shared/storage"
	postgresdriver "villas-admin/internal/shared/storage/driver/postgres"
	sqlitedriver "villas-admin/internal/shared/storage/driver/sqlite"
	"villas-admin/internal/shared/storage/mongostore"
	"villas-admin/internal/shared/storage/repository"
	"villas-admin/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    cfg.Log.Output,
		Component: "api-server",
	})
	logger.Info("Starting API Server", "env", cfg.Env, "config", cfg.String())

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", cfg.DatabaseDriver, err)
	}
	defer store.Close()
	logger.Info("Connected to database", "driver", cfg.DatabaseDriver)

	// Redis 可选：未配置时不限流
	var limiter cache.RateLimiter = cache.NewNoOpLimiter()
	if cfg.RedisURL != "" {
		redisStore, err := cacheredis.NewStoreFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		limiter = redisStore
		logger.Info("Connected to Redis")
	} else {
		logger.Warn("Redis not configured, rate limiting disabled")
	}
	defer limiter.Close()

	images, err := openImageStore(cfg)
	switch {
	case errors.Is(err, objstore.ErrNotConfigured):
		logger.Warn("MinIO not configured, villa image upload disabled")
	case err != nil:
		logger.Warn("MinIO unavailable, villa image upload disabled", "error", err)
	default:
		logger.Info("MinIO ready", "bucket", cfg.MinIO.Bucket)
	}

	authCfg := auth.Config{
		Secret:     cfg.Auth.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		CookieName: cfg.Auth.CookieName,
		Hardened:   cfg.Hardened(),
		BcryptCost: cfg.Auth.BcryptCost,
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	err = auth.EnsureAdminUser(bootCtx, store, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, authCfg.BcryptCost, logger)
	cancelBoot()
	if err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	h := server.NewHandler(server.Options{
		Store:      store,
		Images:     images,
		Limiter:    limiter,
		Auth:       authCfg,
		RateLimit:  cfg.RateLimit,
		CORSOrigin: cfg.CORS.Origin,
		Env:        cfg.Env,
		Log:        logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     newServerErrorLog(logger),
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		logger.Info("Shutting down server...", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("API Server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openStore 按驱动选择存储实现
func openStore(cfg *config.Config) (storage.PersistentStore, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return repository.NewStore(db, dialect), nil
	case "postgres":
		db, err := postgresdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := postgresdriver.NewDialect()
		if err := dialect.AutoMigrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return repository.NewStore(db, dialect), nil
	default:
		return mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseDBName)
	}
}

// openImageStore 初始化图片存储，未配置时返回 ErrNotConfigured
//
// 返回接口类型，未启用时为 nil 接口值。
func openImageStore(cfg *config.Config) (cluster.ImageStore, error) {
	client, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
