// Package ws streams order status to customers over a websocket so the
// order-tracking page does not have to poll HTTP. The server polls the
// database at a fixed interval and pushes only when something changed.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dineflow-order-service/internal/auth"
	"dineflow-order-service/internal/config"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	return &Server{DB: db, Logger: logger, Config: cfg}
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

type orderSnapshot struct {
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (s *Server) fetchOrderSnapshot(ctx context.Context, slug string, orderID int64) (orderSnapshot, bool) {
	var snap orderSnapshot
	err := s.DB.QueryRow(ctx, `
		select o.status, o.payment_status, o.updated_at
		from orders o
		join restaurants rst on rst.id = o.restaurant_id
		where o.id = $1 and rst.slug = $2
	`, orderID, slug).Scan(&snap.Status, &snap.PaymentStatus, &snap.UpdatedAt)
	if err != nil {
		return orderSnapshot{}, false
	}
	return snap, true
}

// PublicOrderWS pushes an order's status whenever it changes. One connection
// tracks one order; completed orders get a final push and the stream stays
// open until the client hangs up.
func (s *Server) PublicOrderWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	slug := r.URL.Query().Get("restaurant")
	orderID, err := parseInt64(r.URL.Query().Get("orderId"))
	if err != nil || slug == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}

	ctx := r.Context()
	client := &wsClient{conn: conn}

	last, found := s.fetchOrderSnapshot(ctx, slug, orderID)
	if !found {
		_ = client.writeJSON(map[string]any{"type": "error", "message": "order not found"})
		return
	}
	_ = client.writeJSON(map[string]any{"type": "order.status", "orderId": orderID, "data": last})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(s.Config.WSStatusPollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-poll.C:
			snap, ok := s.fetchOrderSnapshot(ctx, slug, orderID)
			if !ok {
				_ = client.writeJSON(map[string]any{"type": "order.gone", "orderId": orderID})
				return
			}
			if snap == last {
				continue
			}
			last = snap
			if err := client.writeJSON(map[string]any{"type": "order.status", "orderId": orderID, "data": snap}); err != nil {
				return
			}
		}
	}
}

// StaffOrdersWS tells a kitchen display when its board is stale. It pushes the
// newest updated_at among open orders; the client refetches the list over
// HTTP when the value moves.
func (s *Server) StaffOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.ParseBearerToken(r.URL.Query().Get("token"))
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	restaurantID, err := parseInt64(claims.RestaurantID)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	ctx := r.Context()
	client := &wsClient{conn: conn}

	last := s.fetchOpenOrdersUpdatedAt(ctx, restaurantID)
	_ = client.writeJSON(map[string]any{"type": "orders.refresh", "updatedAt": last})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(s.Config.WSStatusPollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.Config.WSHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-poll.C:
			updated := s.fetchOpenOrdersUpdatedAt(ctx, restaurantID)
			if !updated.After(last) {
				continue
			}
			last = updated
			if err := client.writeJSON(map[string]any{"type": "orders.refresh", "updatedAt": updated}); err != nil {
				return
			}
		}
	}
}

func (s *Server) fetchOpenOrdersUpdatedAt(ctx context.Context, restaurantID int64) time.Time {
	var updated time.Time
	err := s.DB.QueryRow(ctx, `
		select coalesce(max(updated_at), now())
		from orders
		where restaurant_id = $1 and status in ('pending', 'preparing')
	`, restaurantID).Scan(&updated)
	if err != nil {
		return time.Time{}
	}
	return updated
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}
