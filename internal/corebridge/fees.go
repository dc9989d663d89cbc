package corebridge

import (
	"context"
	"errors"
	"fmt"
	"math"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/corebridge/internal/ledger"
)

var (
	ErrInsufficientFees = errors.New("insufficient fees collected")
	ErrFeeOverflow      = errors.New("fee balance overflow")
)

// FeeCollector accounts message fees. The returned ops are meant to be
// applied in the same batch as the operation that pays or spends the fee.
type FeeCollector interface {
	CollectOps(ctx context.Context, amount uint64) ([]ledger.Op, error)
	TransferOps(ctx context.Context, recipient vaaLib.Address, amount uint64) ([]ledger.Op, error)
	Balance(ctx context.Context) (uint64, error)
}

type feeBalance struct {
	Amount uint64
}

// LedgerFeeCollector keeps the collected fee balance and the per-recipient
// payouts in the ledger.
type LedgerFeeCollector struct {
	store ledger.Store
}

func NewLedgerFeeCollector(store ledger.Store) *LedgerFeeCollector {
	return &LedgerFeeCollector{store: store}
}

func (c *LedgerFeeCollector) load(ctx context.Context, key []byte) (uint64, []byte, error) {
	b, raw, err := ledger.Load[feeBalance](ctx, c.store, key)
	if ledger.IsNotFound(err) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return b.Amount, raw, nil
}

// update returns the op moving key from raw to amount. A nil raw means the key is absent.
func update(key, raw []byte, amount uint64) ledger.Op {
	next := ledger.MustEncode(feeBalance{Amount: amount})
	if raw == nil {
		return ledger.Create(key, next)
	}
	return ledger.Swap(key, raw, next)
}

func (c *LedgerFeeCollector) Balance(ctx context.Context) (uint64, error) {
	amount, _, err := c.load(ctx, ledger.FeeCollectorKey())
	return amount, err
}

func (c *LedgerFeeCollector) CollectOps(ctx context.Context, amount uint64) ([]ledger.Op, error) {
	if amount == 0 {
		return nil, nil
	}

	balance, raw, err := c.load(ctx, ledger.FeeCollectorKey())
	if err != nil {
		return nil, fmt.Errorf("load fee balance: %w", err)
	}
	if balance > math.MaxUint64-amount {
		return nil, ErrFeeOverflow
	}
	return []ledger.Op{update(ledger.FeeCollectorKey(), raw, balance+amount)}, nil
}

func (c *LedgerFeeCollector) TransferOps(ctx context.Context, recipient vaaLib.Address, amount uint64) ([]ledger.Op, error) {
	balance, raw, err := c.load(ctx, ledger.FeeCollectorKey())
	if err != nil {
		return nil, fmt.Errorf("load fee balance: %w", err)
	}
	if amount > balance {
		return nil, fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFees, balance, amount)
	}

	recipientKey := ledger.FeeRecipientKey(recipient)
	paid, paidRaw, err := c.load(ctx, recipientKey)
	if err != nil {
		return nil, fmt.Errorf("load fee recipient %s: %w", recipient, err)
	}
	if paid > math.MaxUint64-amount {
		return nil, ErrFeeOverflow
	}

	return []ledger.Op{
		update(ledger.FeeCollectorKey(), raw, balance-amount),
		update(recipientKey, paidRaw, paid+amount),
	}, nil
}

// Paid returns the total amount transferred to recipient.
func (c *LedgerFeeCollector) Paid(ctx context.Context, recipient vaaLib.Address) (uint64, error) {
	amount, _, err := c.load(ctx, ledger.FeeRecipientKey(recipient))
	return amount, err
}
