package tx

import (
	"errors"
)

type TxType uint8

const (
	TxTypeUnknown        TxType = 0
	TxTypeCreateProposal TxType = 1
	TxTypeVote           TxType = 2
)

func (t TxType) String() string {
	switch t {
	case TxTypeCreateProposal:
		return "create_proposal"
	case TxTypeVote:
		return "vote"
	default:
		return "unknown"
	}
}

const (
	TxVersion0 uint8 = 0
	TxVersion1 uint8 = 1
)

// Result codes returned in CheckTx and ExecTxResult.
const (
	CodeOK              uint32 = 0
	CodeInvalidTx       uint32 = 1
	CodeNotFound        uint32 = 2
	CodeDuplicateVote   uint32 = 3
	CodeAlreadyAccepted uint32 = 4
	CodeInvalidNonce    uint32 = 5
	CodeUnsupportedTx   uint32 = 6
	CodeInternal        uint32 = 7
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
	ErrInvalidPubKey        = errors.New("invalid public key")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
)
