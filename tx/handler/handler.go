package handler

import (
	"context"
	"errors"

	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

type TxHandler interface {
	// Check validates btx against the registry without changing it.
	Check(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) error
	// Deliver applies btx. A returned error is a rejection of this tx only.
	Deliver(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) (*abcitypes.ExecTxResult, error)
}

// EventSource hands over the events the registry emitted since the last
// call.
type EventSource interface {
	Drain() []abcitypes.Event
}

// ResultCode maps a rejection to the code reported to clients.
func ResultCode(err error) uint32 {
	switch {
	case err == nil:
		return tx.CodeOK
	case errors.Is(err, registry.ErrNotFound):
		return tx.CodeNotFound
	case errors.Is(err, registry.ErrDuplicateVote):
		return tx.CodeDuplicateVote
	case errors.Is(err, registry.ErrAlreadyAccepted):
		return tx.CodeAlreadyAccepted
	case errors.Is(err, tx.ErrTxNonceInvalid):
		return tx.CodeInvalidNonce
	case errors.Is(err, tx.ErrUnsupportedTxType), errors.Is(err, tx.ErrUnsupportedTxVersion):
		return tx.CodeUnsupportedTx
	case errors.Is(err, tx.ErrInvalidTx), errors.Is(err, tx.ErrTxSigInvalid), errors.Is(err, tx.ErrInvalidPubKey):
		return tx.CodeInvalidTx
	default:
		return tx.CodeInternal
	}
}
