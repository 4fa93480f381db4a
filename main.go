package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/cleanup"
	"dineflow-order-service/internal/config"
	"dineflow-order-service/internal/db"
	httpapi "dineflow-order-service/internal/http"
	"dineflow-order-service/internal/http/handlers"
	"dineflow-order-service/internal/logger"
	"dineflow-order-service/internal/orderstate"
	"dineflow-order-service/internal/payment"
	"dineflow-order-service/internal/queue"
	"dineflow-order-service/internal/redisx"
	"dineflow-order-service/internal/reservation"
	"dineflow-order-service/internal/ws"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisx.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("redis connection failed", zap.Error(err))
			}
			log.Warn("redis connection failed; payment sessions disabled", zap.Error(err))
			redisClient = nil
		}
		if redisClient != nil {
			defer redisClient.Close()
		}
	} else {
		log.Info("payment sessions disabled (REDIS_URL is empty)")
	}

	runCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		log.Info("rabbitmq enabled", zap.String("eventsQueue", queue.NotificationsQueue))
		qc, err := queue.New(cfg.RabbitMQURL, log)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without worker", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := qc.EnsureExchange(queue.EventsExchange); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq exchange failed", zap.Error(err))
				}
				log.Warn("rabbitmq exchange failed; continuing without worker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			if _, err := qc.EnsureQueue(queue.NotificationsQueue); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq queue failed", zap.Error(err))
				}
				log.Warn("rabbitmq queue failed; continuing without worker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		if qc != nil {
			// '#' matches the multi-segment routing keys under audit.*.
			if err := qc.BindQueue(queue.NotificationsQueue, queue.EventsExchange, "audit.#"); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq bind failed", zap.Error(err))
				}
				log.Warn("rabbitmq bind failed; continuing without worker", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}

		queueClient = qc
		if qc != nil {
			defer qc.Close()
		}

		if queueClient != nil {
			if cfg.RabbitMQWorkerMode == "daemon" {
				log.Info("notification worker enabled", zap.String("mode", "daemon"))
				go func() {
					err := queueClient.ConsumeWithRetry(runCtx, queue.NotificationsQueue, func(ctx context.Context, body []byte) error {
						return queue.ProcessAuditEvent(ctx, log, body)
					}, 5, 5*time.Second)
					if err != nil && !errors.Is(err, context.Canceled) {
						log.Error("consumer stopped", zap.Error(err))
					}
				}()
			} else {
				log.Info("notification worker disabled", zap.String("mode", cfg.RabbitMQWorkerMode))
			}
		}
	} else {
		log.Info("notification worker disabled (RABBITMQ_URL is empty)")
	}

	recorder := &audit.Recorder{DB: pool, Queue: queueClient, Logger: log}
	gateway := &payment.Gateway{
		KeyID:         cfg.GatewayKeyID,
		KeySecret:     cfg.GatewayKeySecret,
		WebhookSecret: cfg.GatewayWebhookSecret,
		ForceSuccess:  cfg.GatewayForceSuccess,
		LiveMode:      cfg.GatewayLiveMode,
	}
	reservations := &reservation.Manager{
		DB:              pool,
		Gateway:         gateway,
		Audit:           recorder,
		Logger:          log,
		TTL:             cfg.ReservationTTL,
		DefaultTimezone: cfg.DefaultTimezone,
	}
	orders := &orderstate.Machine{DB: pool, Audit: recorder, Logger: log}
	sweeper := &cleanup.Sweeper{
		DB:              pool,
		Reservations:    reservations,
		Audit:           recorder,
		Logger:          log,
		DefaultTimezone: cfg.DefaultTimezone,
	}

	go sweeper.Run(runCtx, cfg.ReservationSweepEvery)

	h := &handlers.Handler{
		DB:           pool,
		Logger:       log,
		Config:       cfg,
		Queue:        queueClient,
		Redis:        redisClient,
		Reservations: reservations,
		Orders:       orders,
		Gateway:      gateway,
		Audit:        recorder,
		Sweeper:      sweeper,
	}

	wsServer := ws.New(pool, log, cfg)
	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(pool, log, cfg, h, wsServer),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order api ready", zap.String("base", "/api"))
		log.Info("order ws ready", zap.String("base", "/ws"))
		log.Info("order service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopBackground()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
