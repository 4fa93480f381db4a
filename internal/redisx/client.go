// Package redisx holds the short-lived pending-payment sessions: a payment
// token minted at initiate time maps back to its reservation until the
// gateway assertion comes in or the TTL lapses.
package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const paymentSessionPrefix = "payment_pending:"

func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// PaymentSession is the minimal state needed to verify a payment later.
// Everything else lives on the reservation row.
type PaymentSession struct {
	ReservationID string `json:"reservationId"`
	RestaurantID  int64  `json:"restaurantId"`
	GatewayOrder  string `json:"gatewayOrder"`
	Amount        string `json:"amount"`
}

func SetPaymentSession(ctx context.Context, client *redis.Client, token string, session PaymentSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return client.Set(ctx, paymentSessionPrefix+token, data, ttl).Err()
}

func GetPaymentSession(ctx context.Context, client *redis.Client, token string) (*PaymentSession, error) {
	data, err := client.Get(ctx, paymentSessionPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var session PaymentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func DeletePaymentSession(ctx context.Context, client *redis.Client, token string) {
	_ = client.Del(ctx, paymentSessionPrefix+token).Err()
}
