package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"qms/dispatch-service/internal/dispatch"
	"qms/dispatch-service/internal/httpapi"
	"qms/dispatch-service/internal/hub"
	"qms/dispatch-service/internal/queueview"
	"qms/dispatch-service/internal/realtime"
	"qms/dispatch-service/internal/receipt"
	"qms/dispatch-service/internal/telemetry"
)

const serviceName = "dispatch-service"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dispatch server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	shutdownTelemetry := telemetry.Setup(serviceName, logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var redisClient *redis.Client
	if cfg.ReceiptSink == receipt.SinkRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable, receipts will fail until it is", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
	}
	receipts := receipt.New(cfg.ReceiptSink, receipt.Options{
		Dir:      cfg.ReceiptDir,
		RedisKey: cfg.ReceiptRedisKey,
		Redis:    redisClient,
		Logger:   logger,
	})

	view := queueview.New(a.ledger)
	h := hub.New(logger)
	dispatcher := dispatch.NewHandler(a.ledger, view, h, receipts, dispatch.Options{
		BroadcastScope: cfg.BroadcastScope,
		Logger:         logger,
	})
	rt := realtime.NewServer(h, dispatcher, realtime.Options{
		SendBuffer:      cfg.SendBuffer,
		DispatchTimeout: cfg.DispatchTimeout,
		Logger:          logger,
	})
	api := httpapi.NewHandler(a.ledger, view, httpapi.Options{Connections: h.Count})
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute: cfg.RateLimitPerMin,
		IPBurst:     cfg.RateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/ws", rt.WebSocketHandler())
	mux.Handle("/realtime/", rt.SockJSHandler("/realtime"))
	mux.Handle("/", httpapi.AdminAuthMiddleware(cfg.AdminTokenHash, api.Routes()))

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(logger, limiter.Middleware(mux)), serviceName)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatch-service listening",
			zap.String("addr", server.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("broadcast_scope", cfg.BroadcastScope),
			zap.String("receipt_sink", cfg.ReceiptSink),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("dispatch-service stopped")
	return nil
}
