// Package publish forwards live refresh results to NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"landScope/internal/live"
	"landScope/internal/pubsub"
)

// Config holds the NATS connection settings.
type Config struct {
	URL            string
	SubjectPrefix  string
	ConnectionName string
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Publisher writes JSON messages under a subject prefix.
type Publisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS and returns a publisher that owns the connection.
func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func NewPublisher(conn Conn, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "landscope"
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Subject builds "<prefix>.<chainID>.<kind>".
func (p *Publisher) Subject(chainID uint64, kind string) string {
	return fmt.Sprintf("%s.%d.%s", p.prefix, chainID, kind)
}

// Publish marshals v as JSON and sends it.
func (p *Publisher) Publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("nats flush failed", zap.Error(err))
	}
	p.conn.Close()
}

// Message is the wire form of a live result.
type Message[T any] struct {
	Outcome live.Outcome `json:"outcome"`
	Block   uint64       `json:"block"`
	At      time.Time    `json:"at"`
	Stale   bool         `json:"stale"`
	Error   string       `json:"error,omitempty"`
	Value   T            `json:"value"`
}

// NewMessage converts a result into its wire form.
func NewMessage[T any](result live.Result[T]) Message[T] {
	return Message[T]{
		Outcome: result.Outcome,
		Block:   result.Block,
		At:      result.At,
		Stale:   result.Stale,
		Error:   result.Error(),
		Value:   result.Value,
	}
}

// Forward publishes every result from sub until the subscription closes or
// ctx is done. Unchanged results are skipped. Publish failures are logged.
func Forward[T any](ctx context.Context, p *Publisher, sub *pubsub.Subscription[live.Result[T]], subject string) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-sub.C():
			if !ok {
				return
			}
			if result.Outcome == live.OutcomeUnchanged {
				continue
			}
			if err := p.Publish(ctx, subject, NewMessage(result)); err != nil {
				p.logger.Warn("publish result failed", zap.Error(err), zap.String("subject", subject))
			}
		}
	}
}
