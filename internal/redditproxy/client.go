// Package redditproxy is the request/reply bridge to the reddit proxy. A
// worker owns a response queue named with its stable identifier; every
// request carries a fresh correlation UUID and the response is matched on
// it. Stale responses on the queue are dropped without requeue.
package redditproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LoansBot/loansbot/pkg/bus"
	"github.com/LoansBot/loansbot/pkg/logger"
)

// TypeCopy marks a successful payload in a proxy response.
const TypeCopy = "copy"

// Request is the envelope published to the shared proxy request queue.
type Request struct {
	Type              string      `json:"type"`
	ResponseQueue     string      `json:"response_queue"`
	UUID              string      `json:"uuid"`
	VersionUTCSeconds float64     `json:"version_utc_seconds"`
	SentAt            float64     `json:"sent_at"`
	Args              interface{} `json:"args"`
}

// Response is the envelope the proxy sends back.
type Response struct {
	UUID string          `json:"uuid"`
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

// Copy reports whether the response carries a successful payload. Anything
// else is informational; callers treat it as "no data".
func (r *Response) Copy() bool {
	return r.Type == TypeCopy
}

// DecodeInfo unmarshals the payload into dest.
func (r *Response) DecodeInfo(dest interface{}) error {
	return json.Unmarshal(r.Info, dest)
}

// Client sends requests through the broker and waits for correlated
// responses.
type Client struct {
	bus                 *bus.Bus
	requestQueue        string
	responseQueuePrefix string
	logger              *logger.Logger
}

// NewClient builds a proxy client.
func NewClient(b *bus.Bus, requestQueue, responseQueuePrefix string, log *logger.Logger) *Client {
	return &Client{
		bus:                 b,
		requestQueue:        requestQueue,
		responseQueuePrefix: responseQueuePrefix,
		logger:              log,
	}
}

// SendRequest publishes a request of the given type and blocks until the
// correlated response arrives on the worker's response queue. workerID must
// be unique per worker so response queues are never shared; version is the
// worker's boot timestamp, which the proxy uses to drop requests whose
// response queue has been torn down.
func (c *Client) SendRequest(ctx context.Context, workerID string, version float64, typ string, args interface{}) (*Response, error) {
	responseQueue := c.responseQueuePrefix + "-" + workerID
	msgUUID := uuid.New().String()

	sub, err := c.bus.SubscribeQueue(responseQueue)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	err = c.bus.PublishQueue(ctx, c.requestQueue, Request{
		Type:              typ,
		ResponseQueue:     responseQueue,
		UUID:              msgUUID,
		VersionUTCSeconds: version,
		SentAt:            float64(time.Now().UnixNano()) / 1e9,
		Args:              args,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("sent proxy request",
		zap.String("type", typ),
		zap.String("response_queue", responseQueue),
		zap.String("uuid", msgUUID),
	)

	for {
		delivery, err := sub.Next(ctx, bus.InactivityHeartbeat)
		if err != nil {
			return nil, err
		}
		if delivery == nil {
			c.logger.Error("no response to proxy request yet",
				zap.String("type", typ),
				zap.String("uuid", msgUUID),
			)
			continue
		}

		var response Response
		if err := json.Unmarshal(delivery.Body, &response); err != nil {
			c.logger.Warn("malformed proxy response", zap.Error(err))
			delivery.Nack(false, false)
			continue
		}

		if response.UUID != msgUUID {
			c.logger.Debug("ignoring stale proxy response",
				zap.String("got", response.UUID),
				zap.String("expecting", msgUUID),
			)
			delivery.Nack(false, false)
			continue
		}

		if err := delivery.Ack(false); err != nil {
			return nil, fmt.Errorf("ack proxy response: %w", err)
		}
		return &response, nil
	}
}
