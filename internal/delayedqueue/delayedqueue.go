// Package delayedqueue stores entries that become due at a future time,
// such as the human-reviewed trust backlog. The queue consumer is owned by
// the website; this side only enqueues.
package delayedqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Queue types
const (
	QueueTrust = "trust"
)

// Store enqueues an entry on the named queue that becomes due at dueAt.
func Store(ctx context.Context, tx *sqlx.Tx, queue string, dueAt time.Time, payload interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal delayed queue payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO delayed_queue (queue, due_at, payload) VALUES ($1, $2, $3)`,
		queue, dueAt, encoded,
	)
	if err != nil {
		return fmt.Errorf("store delayed queue entry: %w", err)
	}
	return nil
}
