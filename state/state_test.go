package state

import (
	"testing"

	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, dir string) *StateDB {
	db, err := NewStateDB(dir, cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	db := openTestDB(t, dir)

	st := db.NewState()
	reg := registry.New(cmtlog.NewNopLogger(), registry.WithStore(st))
	_, err := reg.CreateProposal("a", "first", 2, "owner")
	require.NoError(t, err)
	_, err = reg.CreateProposal("b", "second", 1, "owner")
	require.NoError(t, err)
	require.NoError(t, reg.VoteOnProposal(0, "alice"))
	require.NoError(t, reg.VoteOnProposal(1, "bob"))
	require.NoError(t, st.SetNonce("alice", 3))

	working, err := st.Update()
	require.NoError(t, err)
	committed, err := db.SetState(st)
	require.NoError(t, err)
	require.Equal(t, working, committed)
	require.Equal(t, committed, db.State().Hash())
	require.NoError(t, db.Close())

	db = openTestDB(t, dir)
	defer db.Close()
	require.Equal(t, uint64(2), db.Header().Proposals)
	require.Equal(t, committed, db.State().Hash())

	recs, err := db.State().Records()
	require.NoError(t, err)
	require.Equal(t, reg.Records(), recs)

	restored := registry.New(cmtlog.NewNopLogger())
	require.NoError(t, restored.Restore(recs))
	p, err := restored.GetAProposal(0)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusPending, p.Status)
	require.ErrorIs(t, restored.VoteOnProposal(0, "alice"), registry.ErrDuplicateVote)

	nonce, err := db.State().Nonce("alice")
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)
	nonce, err = db.State().Nonce("nobody")
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)
}

func TestPutRecordRejectsGap(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	st := db.NewState()
	err := st.PutRecord(&registry.Record{Proposal: types.Proposal{Index: 1, Status: types.ProposalStatusCreated}})
	require.ErrorIs(t, err, ErrProposalIndexGap)
	require.Equal(t, uint64(0), st.Header().Proposals)
}

func TestHeightAdvancesAfterCommit(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	st := db.NewState()
	require.Equal(t, uint64(0), st.Header().Height)
	_, err := st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)

	next := db.NewState()
	require.Equal(t, uint64(1), next.Header().Height)
}

func TestAppHashChangesWithVotes(t *testing.T) {
	db := openTestDB(t, t.TempDir())
	defer db.Close()

	st := db.NewState()
	reg := registry.New(cmtlog.NewNopLogger(), registry.WithStore(st))
	_, err := reg.CreateProposal("a", "", 3, "owner")
	require.NoError(t, err)
	h1, err := st.Update()
	require.NoError(t, err)

	require.NoError(t, reg.VoteOnProposal(0, "alice"))
	h2, err := st.Update()
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}
