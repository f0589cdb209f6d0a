package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeykb/smartescape-app/internal/config"
	"github.com/joeykb/smartescape-app/internal/gmail"
	httpapi "github.com/joeykb/smartescape-app/internal/http"
	"github.com/joeykb/smartescape-app/internal/logger"
	"github.com/joeykb/smartescape-app/internal/service"
	"github.com/joeykb/smartescape-app/internal/store"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "smartescape")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. 初始化存储后端
	kv, publisher, cleanup, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to init storage", zap.Error(err))
	}
	defer cleanup()

	// 4. 创建 Gmail 客户端和令牌源
	mailClient := gmail.NewClient(cfg.Gmail.BaseURL, cfg.Gmail.Query, log)
	tokens := buildTokenSource(cfg, log)

	// 5. 创建摄取服务并加载历史归档
	ingestService := service.NewIngestService(cfg, mailClient, tokens, kv, publisher, log)
	if err := ingestService.LoadHistory(ctx); err != nil {
		log.Fatal("Failed to load alert history", zap.Error(err))
	}

	// 6. 启动 HTTP 服务
	router := httpapi.NewRouter(log)
	router.RegisterNotificationRoutes(httpapi.NewNotificationHandler(ingestService, tokens, log))

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// 7. 启动轮询器
	poller := service.NewPoller(ingestService, tokens,
		time.Duration(cfg.Ingest.PollInterval)*time.Second, log)
	go func() {
		_ = poller.Start(ctx)
	}()

	// 8. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Error("HTTP server error", zap.Error(err))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("SmartEscape service stopped")
}

// buildStorage 按配置创建持久化后端和报警发布器
func buildStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.KV, service.AlertPublisher, func(), error) {
	switch cfg.StorageBackend {
	case "postgres":
		db, err := sql.Open("postgres", postgresDSN(cfg))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		kv := store.NewPostgresKV(db)
		if err := kv.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, err
		}

		log.Info("Using PostgreSQL storage backend",
			zap.String("host", cfg.Database.Host),
		)
		// Postgres 后端没有 Stream 发布能力
		return kv, nil, func() { _ = db.Close() }, nil

	default:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ping redis: %w", err)
		}

		var publisher service.AlertPublisher
		if cfg.Ingest.AlertStream != "" {
			publisher = store.NewStreamPublisher(redisClient, cfg.Ingest.AlertStream)
		}

		log.Info("Using Redis storage backend",
			zap.String("addr", cfg.Redis.Addr),
		)
		return store.NewRedisKV(redisClient), publisher, func() { _ = redisClient.Close() }, nil
	}
}

// buildTokenSource 按配置创建令牌源
// 配置了 refresh_token 时走 OAuth 刷新，否则使用静态令牌
func buildTokenSource(cfg *config.Config, log *zap.Logger) gmail.TokenSource {
	if cfg.Gmail.RefreshToken != "" {
		return gmail.NewOAuthTokenSource(
			cfg.Gmail.TokenURL,
			cfg.Gmail.ClientID,
			cfg.Gmail.RefreshToken,
			cfg.Gmail.AccessToken,
			log,
		)
	}
	return &gmail.StaticTokenSource{AccessToken: cfg.Gmail.AccessToken}
}

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Database, cfg.Database.SSLMode)
}
