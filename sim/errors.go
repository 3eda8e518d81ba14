package sim

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrLedgerCallFailed matches any failed submit or query round-trip to the ledger.
	ErrLedgerCallFailed = errors.New("ledger call failed")
	// ErrConfirmationTimeout is returned when a submission is not confirmed in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrInvalidNumericInput covers non-finite feed output and unrepresentable amounts.
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	// ErrConfiguration is returned for builder and run configuration mistakes.
	ErrConfiguration = errors.New("configuration error")
	// ErrReverted is wrapped by a LedgerError when the ledger mined the call but rejected it.
	ErrReverted = errors.New("call reverted")
)

// LedgerError records which ledger operation failed and for which identity.
// It matches ErrLedgerCallFailed under errors.Is.
type LedgerError struct {
	Op       string
	Identity common.Address
	Nonce    uint64
	Err      error
}

func (e *LedgerError) Error() string {
	if e.Identity == (common.Address{}) {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s from %s (nonce %d): %v", e.Op, e.Identity.Hex(), e.Nonce, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

func (e *LedgerError) Is(target error) bool { return target == ErrLedgerCallFailed }
