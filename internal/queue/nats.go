package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/harborcare/notify/pkg/logger"
)

const (
	// StreamName is the JetStream stream backing the durable notification channel.
	StreamName = "NOTIFICATIONS"

	// SubjectPrefix namespaces all notification subjects; the entity category
	// is appended, e.g. notifications.task.
	SubjectPrefix = "notifications"

	defaultPublishTimeout = 5 * time.Second
	streamMaxAge          = 7 * 24 * time.Hour
	streamMaxMsgs         = 100_000
)

// Config holds the connection options for the durable queue.
type Config struct {
	URL            string
	PublishTimeout time.Duration
}

// Client publishes serialized notification payloads to the processing/audit
// queue with at-least-once semantics.
type Client struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
	log     *zap.Logger
}

// NewClient connects to NATS and ensures the notification stream exists.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("queue: nats url is required")
	}

	log := logger.WithModule("queue")

	conn, err := nats.Connect(cfg.URL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: jetstream: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	client := &Client{
		conn:    conn,
		js:      js,
		timeout: timeout,
		log:     log,
	}

	if err := client.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Description: "Durable notification delivery queue",
		Retention:   jetstream.LimitsPolicy,
		MaxMsgs:     streamMaxMsgs,
		MaxAge:      streamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("queue: ensure stream %s: %w", StreamName, err)
	}
	return nil
}

// Publish sends the payload to the supplied subject, waiting for the stream
// acknowledgement so callers observe queue failures synchronously.
func (c *Client) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("queue: publish %s: %w", subject, err)
	}

	c.log.Debug("published", zap.String("subject", subject), zap.Int("bytes", len(data)))
	return nil
}

// Subject builds the queue subject for an entity category.
func Subject(category string) string {
	return SubjectPrefix + "." + category
}

// Connected reports whether the underlying connection is healthy.
func (c *Client) Connected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close drains the connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
