package types

import (
	"fmt"
)

// Address identifies a caller. On chain it is the hex encoded CometBFT
// address of the key that signed the transaction.
type Address string

// GenesisAuthority is the caller recorded for proposals created from the
// genesis app state.
const GenesisAuthority Address = "genesis"

type Proposal struct {
	Index       uint64         `json:"index"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Quorum      int64          `json:"quorum"`
	Count       int64          `json:"count"`
	Status      ProposalStatus `json:"status"`
}

type ProposalStatus uint64

// 0 is left unset so a zero value never reads as a live status.
const (
	ProposalStatusCreated  ProposalStatus = 1
	ProposalStatusPending  ProposalStatus = 2
	ProposalStatusAccepted ProposalStatus = 3
)

func (s ProposalStatus) Valid() bool {
	return s >= ProposalStatusCreated && s <= ProposalStatusAccepted
}

// CanAdvanceTo reports whether moving from s to next keeps the status
// monotonic. Staying put is allowed, Accepted is terminal.
func (s ProposalStatus) CanAdvanceTo(next ProposalStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == ProposalStatusAccepted {
		return next == ProposalStatusAccepted
	}
	return next >= s
}

func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusCreated:
		return "created"
	case ProposalStatusPending:
		return "pending"
	case ProposalStatusAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(s))
	}
}
