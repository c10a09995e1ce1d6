package types

import (
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	require.True(t, ProposalStatusCreated.CanAdvanceTo(ProposalStatusPending))
	require.True(t, ProposalStatusCreated.CanAdvanceTo(ProposalStatusAccepted))
	require.True(t, ProposalStatusPending.CanAdvanceTo(ProposalStatusPending))
	require.True(t, ProposalStatusPending.CanAdvanceTo(ProposalStatusAccepted))
	require.True(t, ProposalStatusAccepted.CanAdvanceTo(ProposalStatusAccepted))

	require.False(t, ProposalStatusPending.CanAdvanceTo(ProposalStatusCreated))
	require.False(t, ProposalStatusAccepted.CanAdvanceTo(ProposalStatusPending))
	require.False(t, ProposalStatus(0).CanAdvanceTo(ProposalStatusCreated))
	require.False(t, ProposalStatusCreated.CanAdvanceTo(ProposalStatus(4)))

	require.Equal(t, "pending", ProposalStatusPending.String())
	require.Equal(t, "unknown(0)", ProposalStatus(0).String())
}

func TestEventEncoding(t *testing.T) {
	created := &EventProposalCreated{Proposal: 3, Name: "New Proposal", Quorum: 2}
	require.Equal(t, created, DecodeEventProposalCreated(created.Encode()))

	active := &EventProposalActive{Proposal: 3, Name: "New Proposal", Count: 1}
	require.Equal(t, active, DecodeEventProposalActive(active.Encode()))

	approved := &EventProposalApproved{Proposal: 3, Name: "New Proposal", Count: 2}
	require.Equal(t, approved, DecodeEventProposalApproved(approved.Encode()))

	// decoders only accept their own type
	require.Nil(t, DecodeEventProposalActive(approved.Encode()))
	require.Nil(t, DecodeEventProposalCreated(active.Encode()))

	bad := abci.Event{
		Type:       EventProposalApprovedType,
		Attributes: []abci.EventAttribute{{Key: "count", Value: "many"}},
	}
	require.Nil(t, DecodeEventProposalApproved(bad))
}

func TestGenesisDoc(t *testing.T) {
	pk := ed25519.GenPrivKey().PubKey()
	gs := GenesisState{Proposals: []GenesisProposal{{Name: "g", Description: "d", Quorum: 1}}}

	doc, err := NewGenesisDoc("chain-x", pk, gs)
	require.NoError(t, err)
	require.Equal(t, "chain-x", doc.ChainID)
	require.Len(t, doc.Validators, 1)

	parsed, err := ParseGenesisState(doc.AppState)
	require.NoError(t, err)
	require.Equal(t, gs, parsed)

	_, err = NewGenesisDoc("", pk, gs)
	require.Error(t, err)

	empty, err := ParseGenesisState(nil)
	require.NoError(t, err)
	require.Empty(t, empty.Proposals)

	_, err = ParseGenesisState([]byte("{"))
	require.Error(t, err)
}
