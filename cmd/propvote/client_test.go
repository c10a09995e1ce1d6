package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calehh/propvote/crypto"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	"github.com/stretchr/testify/require"
)

func TestBuildTx(t *testing.T) {
	pv, err := crypto.GenFilePV(filepath.Join(t.TempDir(), "key.json"))
	require.NoError(t, err)

	dat, err := buildTx("chain-a", pv, 3, tx.TxTypeVote, &tx.VoteTx{Proposal: 5})
	require.NoError(t, err)

	btx, err := tx.UnmarshalTx(dat)
	require.NoError(t, err)
	require.NoError(t, btx.Verify("chain-a"))
	require.Equal(t, uint64(3), btx.Nonce)
	require.Equal(t, &tx.VoteTx{Proposal: 5}, btx.Tx)
	sender, err := btx.Sender()
	require.NoError(t, err)
	require.Equal(t, pv.Address(), sender)
}

func TestReadGenesisState(t *testing.T) {
	gs, err := readGenesisState("")
	require.NoError(t, err)
	require.Empty(t, gs.Proposals)

	path := filepath.Join(t.TempDir(), "proposals.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"proposals":[{"name":"a","description":"b","quorum":3}]}`), 0o600))
	gs, err = readGenesisState(path)
	require.NoError(t, err)
	require.Equal(t, []types.GenesisProposal{{Name: "a", Description: "b", Quorum: 3}}, gs.Proposals)

	require.NoError(t, os.WriteFile(path, []byte(`[`), 0o600))
	_, err = readGenesisState(path)
	require.Error(t, err)
}
