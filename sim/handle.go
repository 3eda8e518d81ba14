package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Sequencer allocates per-identity sequence numbers. It takes the larger of the
// ledger's confirmed count and its own next value, so numbers never go backwards
// for an identity even if the ledger lags.
//
// Thread-safety: NOT thread-safe. Each identity is driven by one actor, and the
// arena invokes actors one at a time.
type Sequencer struct {
	ledger Ledger
	next   map[common.Address]uint64
}

// NewSequencer creates a Sequencer backed by ledger.
func NewSequencer(ledger Ledger) *Sequencer {
	return &Sequencer{ledger: ledger, next: make(map[common.Address]uint64)}
}

// Next returns the sequence number to attach to the next submission from addr.
func (s *Sequencer) Next(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := s.ledger.NextSequenceNumber(ctx, addr)
	if err != nil {
		return 0, &LedgerError{Op: "next_sequence_number", Identity: addr, Err: err}
	}
	if local, ok := s.next[addr]; ok && local > n {
		n = local
	}
	s.next[addr] = n + 1
	return n, nil
}

// Release hands nonce back when a submission never reached the ledger.
// Only the most recently allocated number can be released.
func (s *Sequencer) Release(addr common.Address, nonce uint64) {
	if s.next[addr] == nonce+1 {
		s.next[addr] = nonce
	}
}

// SendFunc performs one ledger submission with the given sender and nonce.
type SendFunc func(ctx context.Context, tx Tx) (Confirmation, error)

// Handle is a ledger connection bound to a single identity. Every submission made
// through it is sequenced and blocks until confirmed.
type Handle struct {
	identity Identity
	ledger   Ledger
	seq      *Sequencer
	timeout  time.Duration
}

// NewHandle binds identity to ledger. A zero timeout waits on ctx only.
func NewHandle(identity Identity, ledger Ledger, seq *Sequencer, timeout time.Duration) *Handle {
	return &Handle{identity: identity, ledger: ledger, seq: seq, timeout: timeout}
}

// Identity returns the identity the handle submits as.
func (h *Handle) Identity() Identity { return h.identity }

// Ledger returns the underlying ledger for read-only queries.
func (h *Handle) Ledger() Ledger { return h.ledger }

// Submit attaches the next sequence number to the call made by send and waits for it.
// A reverted call is returned together with a LedgerError wrapping ErrReverted.
func (h *Handle) Submit(ctx context.Context, op string, send SendFunc) (Confirmation, error) {
	addr := h.identity.Address
	nonce, err := h.seq.Next(ctx, addr)
	if err != nil {
		return Confirmation{}, err
	}

	sendCtx, cancel := ctx, context.CancelFunc(func() {})
	if h.timeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, h.timeout)
	}
	defer cancel()

	logrus.Tracef("submitting %s as %s nonce=%d", op, h.identity, nonce)
	conf, err := send(sendCtx, Tx{From: addr, Nonce: nonce})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// the call may still land, so the nonce stays allocated
			return Confirmation{}, fmt.Errorf("%s as %s nonce %d after %v: %w", op, h.identity, nonce, h.timeout, ErrConfirmationTimeout)
		}
		h.seq.Release(addr, nonce)
		return Confirmation{}, &LedgerError{Op: op, Identity: addr, Nonce: nonce, Err: err}
	}
	if conf.Reverted {
		return conf, &LedgerError{Op: op, Identity: addr, Nonce: nonce, Err: fmt.Errorf("%w: %s", ErrReverted, conf.Reason)}
	}
	return conf, nil
}
