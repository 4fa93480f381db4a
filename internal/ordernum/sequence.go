// Package ordernum issues the per-restaurant daily order sequence and derives
// the human-readable order code shown to customers and kitchen staff.
package ordernum

import (
	"context"
	"fmt"

	"dineflow-order-service/internal/db"
)

// NextSequence increments and returns the counter for (restaurant, local
// date). The upsert takes a row lock for the duration of the statement, which
// is what makes the sequence gapless and strictly increasing under concurrent
// order creation. Values are never reused, even when the order that consumed
// one is later deleted.
func NextSequence(ctx context.Context, q db.Querier, restaurantID int64, localDate string) (int, error) {
	var seq int
	err := q.QueryRow(ctx, `
		insert into daily_order_sequences (restaurant_id, date, last_sequence)
		values ($1, $2, 1)
		on conflict (restaurant_id, date)
		do update set last_sequence = daily_order_sequences.last_sequence + 1
		returning last_sequence
	`, restaurantID, localDate).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// Format derives the display code from a daily sequence: each letter covers
// 99 orders (1 -> "A1", 100 -> "B1"). After Z99 (2574 orders) the code wraps
// back to A1; a single location never gets near that in one day.
func Format(seq int) string {
	if seq < 1 {
		return ""
	}
	letter := rune('A' + ((seq-1)/99)%26)
	number := (seq-1)%99 + 1
	return fmt.Sprintf("%c%d", letter, number)
}
