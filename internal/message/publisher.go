package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/corebridge/internal/corebridge"
	"github.com/wormhole-demo/corebridge/internal/ledger"
	"github.com/wormhole-demo/corebridge/internal/metrics"
)

// DefaultMaxPayloadLength bounds the payload of a single message.
const DefaultMaxPayloadLength = 30 * 1024

// Notifier is told about every published message.
type Notifier interface {
	Notify(ctx context.Context, posted *Posted) error
}

// ConfigSource provides the current message fee.
type ConfigSource interface {
	Config(ctx context.Context) (*corebridge.Config, error)
}

type sequence struct {
	Next uint64
}

type Publisher struct {
	store      ledger.Store
	config     ConfigSource
	fees       corebridge.FeeCollector
	notifier   Notifier
	chain      vaaLib.ChainID
	maxPayload uint32
	clock      func() time.Time
	logger     *zap.Logger
}

type Option func(*Publisher)

func WithNotifier(n Notifier) Option {
	return func(p *Publisher) {
		p.notifier = n
	}
}

func WithClock(clock func() time.Time) Option {
	return func(p *Publisher) {
		p.clock = clock
	}
}

func WithMaxPayloadLength(n uint32) Option {
	return func(p *Publisher) {
		p.maxPayload = n
	}
}

// NewPublisher creates a publisher emitting messages from chain.
func NewPublisher(store ledger.Store, config ConfigSource, fees corebridge.FeeCollector, chain vaaLib.ChainID, logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:      store,
		config:     config,
		fees:       fees,
		chain:      chain,
		maxPayload: DefaultMaxPayloadLength,
		clock:      time.Now,
		logger:     logger.With(zap.String("component", "message-publisher")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) load(ctx context.Context, id uuid.UUID) (*Message, []byte, error) {
	msg, raw, err := ledger.Load[Message](ctx, p.store, ledger.MessageKey(id))
	if ledger.IsNotFound(err) {
		return nil, nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load message %s: %w", id, err)
	}
	return msg, raw, nil
}

func (p *Publisher) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	msg, _, err := p.load(ctx, id)
	return msg, err
}

// Sequence returns the sequence the next message of emitter will get.
func (p *Publisher) Sequence(ctx context.Context, emitter vaaLib.Address) (uint64, error) {
	seq, _, err := p.loadSequence(ctx, emitter)
	return seq, err
}

func (p *Publisher) loadSequence(ctx context.Context, emitter vaaLib.Address) (uint64, []byte, error) {
	seq, raw, err := ledger.Load[sequence](ctx, p.store, ledger.SequenceKey(emitter))
	if ledger.IsNotFound(err) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("load sequence of %s: %w", emitter, err)
	}
	return seq.Next, raw, nil
}

// Init allocates a draft message of payloadLength bytes owned by authority.
func (p *Publisher) Init(ctx context.Context, authority vaaLib.Address, payloadLength uint32) (*Message, error) {
	if payloadLength > p.maxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, payloadLength, p.maxPayload)
	}

	msg := &Message{
		ID:               uuid.New(),
		Status:           StatusWriting,
		EmitterAuthority: authority,
		Emitter:          authority,
		PayloadLength:    payloadLength,
		Payload:          make([]byte, payloadLength),
	}
	if err := p.store.Apply(ctx, ledger.Create(ledger.MessageKey(msg.ID), ledger.MustEncode(msg))); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	p.logger.Debug("Message initialized", zap.Stringer("id", msg.ID), zap.Uint32("payloadLength", payloadLength))
	return msg, nil
}

// Write copies data into the draft payload at offset.
func (p *Publisher) Write(ctx context.Context, id uuid.UUID, caller vaaLib.Address, offset uint32, data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}

	msg, raw, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = msg.checkAuthority(caller); err != nil {
		return nil, err
	}
	if err = msg.checkStatus(StatusWriting); err != nil {
		return nil, err
	}
	if end := uint64(offset) + uint64(len(data)); end > uint64(msg.PayloadLength) {
		return nil, fmt.Errorf("%w: writing %d bytes at %d into %d byte payload", ErrDataOverflow, len(data), offset, msg.PayloadLength)
	}

	copy(msg.Payload[offset:], data)
	if err = p.store.Apply(ctx, ledger.Swap(ledger.MessageKey(id), raw, ledger.MustEncode(msg))); err != nil {
		return nil, fmt.Errorf("write message %s: %w", id, err)
	}
	return msg, nil
}

// Finalize freezes the draft payload.
func (p *Publisher) Finalize(ctx context.Context, id uuid.UUID, caller vaaLib.Address) (*Message, error) {
	msg, raw, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = msg.checkAuthority(caller); err != nil {
		return nil, err
	}
	if err = msg.checkStatus(StatusWriting); err != nil {
		return nil, err
	}

	msg.Status = StatusFinalized
	if err = p.store.Apply(ctx, ledger.Swap(ledger.MessageKey(id), raw, ledger.MustEncode(msg))); err != nil {
		return nil, fmt.Errorf("finalize message %s: %w", id, err)
	}
	return msg, nil
}

// Post publishes a finalized message: the message fee is collected and the
// emitter's next sequence is assigned in the same batch.
func (p *Publisher) Post(ctx context.Context, id uuid.UUID, caller vaaLib.Address, nonce uint32, consistencyLevel uint8) (*Posted, error) {
	msg, raw, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = msg.checkAuthority(caller); err != nil {
		return nil, err
	}
	if err = msg.checkStatus(StatusFinalized); err != nil {
		return nil, err
	}

	msg.Nonce = nonce
	msg.ConsistencyLevel = consistencyLevel
	return p.publish(ctx, msg, ledger.Swap(ledger.MessageKey(id), raw, nil), "reliable")
}

// Publish posts payload in one step without a draft.
func (p *Publisher) Publish(ctx context.Context, authority vaaLib.Address, payload []byte, nonce uint32, consistencyLevel uint8) (*Posted, error) {
	if uint64(len(payload)) > uint64(p.maxPayload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), p.maxPayload)
	}

	msg := &Message{
		ID:               uuid.New(),
		EmitterAuthority: authority,
		Emitter:          authority,
		PayloadLength:    uint32(len(payload)),
		Payload:          append([]byte{}, payload...),
		Nonce:            nonce,
		ConsistencyLevel: consistencyLevel,
	}
	return p.publish(ctx, msg, ledger.Create(ledger.MessageKey(msg.ID), nil), "reliable")
}

// PublishUnreliable posts payload into the unreliable message id, reusing the
// record of an earlier unreliable message of the same payload size. The
// previous content is overwritten, so guardians may never observe it.
func (p *Publisher) PublishUnreliable(ctx context.Context, id uuid.UUID, authority vaaLib.Address, payload []byte, nonce uint32, consistencyLevel uint8) (*Posted, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyData
	}
	if uint64(len(payload)) > uint64(p.maxPayload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), p.maxPayload)
	}

	prev, raw, err := p.load(ctx, id)
	switch {
	case errors.Is(err, ErrMessageNotFound):
		msg := &Message{
			ID:               id,
			EmitterAuthority: authority,
			Emitter:          authority,
			PayloadLength:    uint32(len(payload)),
			Payload:          append([]byte{}, payload...),
			Nonce:            nonce,
			ConsistencyLevel: consistencyLevel,
			Unreliable:       true,
		}
		return p.publish(ctx, msg, ledger.Create(ledger.MessageKey(id), nil), "unreliable")
	case err != nil:
		return nil, err
	}

	if err = prev.checkAuthority(authority); err != nil {
		return nil, err
	}
	if !prev.Unreliable {
		return nil, fmt.Errorf("%w: message %s is not unreliable", ErrInvalidMessageStatus, id)
	}
	if err = prev.checkStatus(StatusPublished); err != nil {
		return nil, err
	}
	if prev.PayloadLength != uint32(len(payload)) {
		return nil, fmt.Errorf("%w: message %s holds %d bytes, got %d", ErrPayloadSizeMismatch, id, prev.PayloadLength, len(payload))
	}

	prev.Payload = append([]byte{}, payload...)
	prev.Nonce = nonce
	prev.ConsistencyLevel = consistencyLevel
	return p.publish(ctx, prev, ledger.Swap(ledger.MessageKey(id), raw, nil), "unreliable")
}

// publish assigns the sequence and stores msg through write, whose Value is filled in here.
func (p *Publisher) publish(ctx context.Context, msg *Message, write ledger.Op, kind string) (*Posted, error) {
	cfg, err := p.config.Config(ctx)
	if err != nil {
		return nil, err
	}
	feeOps, err := p.fees.CollectOps(ctx, cfg.MessageFee)
	if err != nil {
		return nil, fmt.Errorf("collect message fee: %w", err)
	}

	next, seqRaw, err := p.loadSequence(ctx, msg.Emitter)
	if err != nil {
		return nil, err
	}
	seqKey := ledger.SequenceKey(msg.Emitter)
	seqValue := ledger.MustEncode(sequence{Next: next + 1})
	seqOp := ledger.Create(seqKey, seqValue)
	if seqRaw != nil {
		seqOp = ledger.Swap(seqKey, seqRaw, seqValue)
	}

	msg.Sequence = next
	msg.Status = StatusPublished
	msg.SubmissionTime = uint32(p.clock().Unix())
	write.Value = ledger.MustEncode(msg)

	ops := append([]ledger.Op{write, seqOp}, feeOps...)
	if err = p.store.Apply(ctx, ops...); err != nil {
		// A lost race on a first sequence or fee record is an ordinary conflict.
		if errors.Is(err, ledger.ErrKeyExists) {
			return nil, fmt.Errorf("publish message %s: %w: %v", msg.ID, ledger.ErrConflict, err)
		}
		return nil, fmt.Errorf("publish message %s: %w", msg.ID, err)
	}

	body := msg.body(p.chain)
	posted := &Posted{ID: msg.ID, MessageHash: body.MessageHash(), Body: body, Unreliable: msg.Unreliable}
	metrics.MessagesPublished.WithLabelValues(kind).Inc()

	p.logger.Info("Message published",
		zap.Stringer("id", msg.ID),
		zap.String("messageID", body.MessageID()),
		zap.Stringer("messageHash", posted.MessageHash),
		zap.Uint64("fee", cfg.MessageFee))

	if p.notifier != nil {
		if err := p.notifier.Notify(ctx, posted); err != nil {
			p.logger.Warn("Failed to notify about published message", zap.Stringer("id", msg.ID), zap.Error(err))
		}
	}
	return posted, nil
}

// Close deletes a message that is still being written or was published.
func (p *Publisher) Close(ctx context.Context, id uuid.UUID, caller vaaLib.Address) error {
	msg, raw, err := p.load(ctx, id)
	if err != nil {
		return err
	}
	if err = msg.checkAuthority(caller); err != nil {
		return err
	}
	if err = msg.checkStatus(StatusWriting, StatusPublished); err != nil {
		return err
	}

	key := ledger.MessageKey(id)
	if err = p.store.Apply(ctx, ledger.Swap(key, raw, raw), ledger.Delete(key)); err != nil {
		return fmt.Errorf("close message %s: %w", id, err)
	}

	p.logger.Debug("Message closed", zap.Stringer("id", id), zap.Stringer("status", msg.Status))
	return nil
}
