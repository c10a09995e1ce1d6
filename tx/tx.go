package tx

import (
	"encoding/json"

	"github.com/calehh/propvote/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
)

// Tx is the signed envelope carried in a CometBFT block. The caller
// identity of the inner operation is the address of PubKey.
type Tx struct {
	Version uint8    `json:"version"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	PubKey  []byte   `json:"pubKey"`
	Tx      any      `json:"tx"`
	Sig     [][]byte `json:"sig"`
}

type CreateProposalTx struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quorum      int64  `json:"quorum"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
}

type txTmpl[T any] struct {
	Version uint8    `json:"version"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	PubKey  []byte   `json:"pubKey"`
	Tx      T        `json:"tx"`
	Sig     [][]byte `json:"sig"`
}

// SigData is the byte string that gets signed: the envelope with the
// signatures replaced by the chain id.
func (tx *Tx) SigData(chainId []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{chainId}
	dat, err = json.Marshal(ntx)
	return
}

func (tx *Tx) Sender() (types.Address, error) {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return "", ErrInvalidPubKey
	}
	pk := ed25519.PubKey(tx.PubKey)
	return types.Address(pk.Address().String()), nil
}

// Verify checks the single ed25519 signature against the sender key.
func (tx *Tx) Verify(chainId string) error {
	if len(tx.PubKey) != ed25519.PubKeySize {
		return ErrInvalidPubKey
	}
	if len(tx.Sig) != 1 {
		return ErrTxSigInvalid
	}
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	pk := ed25519.PubKey(tx.PubKey)
	if !pk.VerifySignature(dat, tx.Sig[0]) {
		return ErrTxSigInvalid
	}
	return nil
}

type Signer interface {
	PublicKey() []byte
	Sign(data []byte) ([]byte, error)
}

// Sign fills PubKey and Sig using signer.
func (tx *Tx) Sign(chainId string, signer Signer) error {
	tx.PubKey = signer.PublicKey()
	dat, err := tx.SigData([]byte(chainId))
	if err != nil {
		return err
	}
	sig, err := signer.Sign(dat)
	if err != nil {
		return err
	}
	tx.Sig = [][]byte{sig}
	return nil
}

func parseTxType(dat []byte) TxType {
	var tx struct {
		Type TxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return TxTypeUnknown
	}
	return tx.Type
}

func unmarshalTx[T any](dat []byte) (btx *Tx, err error) {
	var txt txTmpl[T]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return nil, ErrInvalidTx
	}
	if txt.Version > TxVersion1 {
		return nil, ErrUnsupportedTxVersion
	}
	btx = new(Tx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalTx(dat []byte) (btx *Tx, err error) {
	tp := parseTxType(dat)
	switch tp {
	case TxTypeCreateProposal:
		return unmarshalTx[CreateProposalTx](dat)
	case TxTypeVote:
		return unmarshalTx[VoteTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalTx(btx *Tx) (dat []byte, err error) {
	return json.Marshal(btx)
}
