// Package observation forwards published messages to the guardians' observation feed.
package observation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/message"
)

const DefaultSubjectPrefix = "corebridge.messages"

// Event is the JSON document published for every message.
type Event struct {
	ID               string `json:"id"`
	MessageHash      string `json:"messageHash"`
	MessageID        string `json:"messageId"`
	Timestamp        uint32 `json:"timestamp"`
	Nonce            uint32 `json:"nonce"`
	EmitterChain     uint16 `json:"emitterChain"`
	EmitterAddress   string `json:"emitterAddress"`
	Sequence         uint64 `json:"sequence"`
	ConsistencyLevel uint8  `json:"consistencyLevel"`
	Payload          string `json:"payload"`
	Unreliable       bool   `json:"unreliable"`
}

func NewEvent(p *message.Posted) Event {
	return Event{
		ID:               p.ID.String(),
		MessageHash:      p.MessageHash.Hex(),
		MessageID:        p.Body.MessageID(),
		Timestamp:        p.Body.Timestamp,
		Nonce:            p.Body.Nonce,
		EmitterChain:     uint16(p.Body.EmitterChain),
		EmitterAddress:   p.Body.EmitterAddress.String(),
		Sequence:         p.Body.Sequence,
		ConsistencyLevel: p.Body.ConsistencyLevel,
		Payload:          hexutil.Encode(p.Body.Payload),
		Unreliable:       p.Unreliable,
	}
}

// Subject returns <prefix>.<chain>.<emitter hex>.
func Subject(prefix string, p *message.Posted) string {
	return fmt.Sprintf("%s.%d.%s", prefix, uint16(p.Body.EmitterChain), p.Body.EmitterAddress.String())
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subj string, data []byte) error
}

// NATSPublisher publishes every posted message as an Event.
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger *zap.Logger
}

func NewNATSPublisher(conn Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With(zap.String("component", "observation")),
	}
}

// Dial connects to the NATS server at url. The returned close function drains the connection.
func Dial(url, prefix string, logger *zap.Logger) (*NATSPublisher, func(), error) {
	conn, err := nats.Connect(url,
		nats.Name("corebridge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	closeFn := func() {
		if err := conn.Drain(); err != nil {
			logger.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
	return NewNATSPublisher(conn, prefix, logger), closeFn, nil
}

func (n *NATSPublisher) Notify(_ context.Context, p *message.Posted) error {
	data, err := json.Marshal(NewEvent(p))
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	subject := Subject(n.prefix, p)
	if err = n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish observation to %s: %w", subject, err)
	}

	n.logger.Debug("Observation published", zap.String("subject", subject), zap.String("messageID", p.Body.MessageID()))
	return nil
}

// Recorder keeps posted messages in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, p *message.Posted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewEvent(p))
	return nil
}

// Events returns a copy of the recorded events in publication order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Fanout notifies every notifier and returns the first error.
type Fanout []message.Notifier

func (f Fanout) Notify(ctx context.Context, p *message.Posted) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}
