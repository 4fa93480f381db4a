package handlers

import (
	"dineflow-order-service/internal/audit"
	"dineflow-order-service/internal/cleanup"
	"dineflow-order-service/internal/config"
	"dineflow-order-service/internal/orderstate"
	"dineflow-order-service/internal/payment"
	"dineflow-order-service/internal/queue"
	"dineflow-order-service/internal/reservation"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Redis  *redis.Client

	Reservations *reservation.Manager
	Orders       *orderstate.Machine
	Gateway      *payment.Gateway
	Audit        *audit.Recorder
	Sweeper      *cleanup.Sweeper
}
