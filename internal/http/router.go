package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"dineflow-order-service/internal/config"
	"dineflow-order-service/internal/http/handlers"
	"dineflow-order-service/internal/middleware"
	"dineflow-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(requestLogger(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Route("/r/{slug}", func(r chi.Router) {
			r.Get("/", h.PublicRestaurantInfo)
			r.Get("/menu", h.PublicMenu)
			r.Post("/orders", h.PublicOrderCreate)
			r.Get("/orders/{orderId}", h.PublicOrderDetail)
			r.Get("/orders/{orderId}/status", h.PublicOrderStatus)
			r.Post("/reservations", h.PublicReservationCreate)
			r.Get("/reservations/{reservationId}", h.PublicReservationStatus)
			r.Delete("/reservations/{reservationId}", h.PublicReservationCancel)
			r.Post("/payments/initiate", h.PublicPaymentInitiate)
			r.Post("/payments/verify", h.PublicPaymentVerify)
		})
		r.Post("/payments/webhook", h.PublicPaymentWebhook)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.StaffAuth(db, cfg.JWTSecret))

		r.Get("/orders", h.StaffOrderList)
		r.Patch("/orders/{orderId}/status", h.StaffOrderStatusUpdate)
		r.Post("/orders/{orderId}/collect-cash", h.StaffCollectCash)
		r.Get("/orders/{orderId}/receipt", h.StaffOrderReceiptPDF)
	})

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.CronAuth(cfg.CronSecret))

		r.Post("/sweep-reservations", h.CronSweepReservations)
		r.Post("/sweep-stale-orders", h.CronSweepStaleOrders)
	})

	if wsServer != nil {
		r.Get("/ws/public/order", wsServer.PublicOrderWS)
		r.Get("/ws/staff/orders", wsServer.StaffOrdersWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestId", middleware.GetRequestID(r.Context())),
			)
		})
	}
}
