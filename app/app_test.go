package app

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/calehh/propvote/config"
	pvcrypto "github.com/calehh/propvote/crypto"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

const testChainId = "propvote-test"

type testNode struct {
	t      *testing.T
	home   string
	app    *VoteApp
	height int64
}

func openNode(t *testing.T, home string) *testNode {
	a, err := NewVoteApp(config.DefaultAppConfig(home), cmtlog.NewNopLogger(), nil)
	require.NoError(t, err)
	n := &testNode{t: t, home: home, app: a, height: int64(a.db.Header().Height)}
	t.Cleanup(func() {
		if n.app != nil {
			n.app.Stop()
		}
	})
	return n
}

func newTestNode(t *testing.T, gs types.GenesisState) *testNode {
	n := openNode(t, t.TempDir())
	appState, err := json.Marshal(gs)
	require.NoError(t, err)
	_, err = n.app.InitChain(context.Background(), &abcitypes.RequestInitChain{
		ChainId:       testChainId,
		AppStateBytes: appState,
	})
	require.NoError(t, err)
	return n
}

func (n *testNode) restart() {
	n.app.Stop()
	n.app = nil
	a, err := NewVoteApp(config.DefaultAppConfig(n.home), cmtlog.NewNopLogger(), nil)
	require.NoError(n.t, err)
	n.app = a
}

// block executes txs as one block and commits it.
func (n *testNode) block(txs ...[]byte) *abcitypes.ResponseFinalizeBlock {
	ctx := context.Background()
	n.height++
	res, err := n.app.FinalizeBlock(ctx, &abcitypes.RequestFinalizeBlock{Height: n.height, Txs: txs})
	require.NoError(n.t, err)
	require.Len(n.t, res.TxResults, len(txs))
	_, err = n.app.Commit(ctx, &abcitypes.RequestCommit{})
	require.NoError(n.t, err)
	return res
}

func (n *testNode) check(txDat []byte) *abcitypes.ResponseCheckTx {
	res, err := n.app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: txDat})
	require.NoError(n.t, err)
	return res
}

func (n *testNode) query(path string, data []byte) *abcitypes.ResponseQuery {
	res, err := n.app.Query(context.Background(), &abcitypes.RequestQuery{Path: path, Data: data})
	require.NoError(n.t, err)
	return res
}

func (n *testNode) proposals() []types.Proposal {
	res := n.query("/proposals/", nil)
	require.Equal(n.t, tx.CodeOK, res.Code)
	var ps []types.Proposal
	require.NoError(n.t, json.Unmarshal(res.Value, &ps))
	return ps
}

type account struct {
	pv    *pvcrypto.PV
	nonce uint64
}

func newAccount() *account {
	return &account{pv: pvcrypto.NewPV(ed25519.GenPrivKey())}
}

func (a *account) signWithNonce(t *testing.T, chainId string, nonce uint64, typ tx.TxType, payload any) []byte {
	btx := &tx.Tx{
		Version: tx.TxVersion1,
		Type:    typ,
		Nonce:   nonce,
		Tx:      payload,
	}
	require.NoError(t, btx.Sign(chainId, a.pv))
	dat, err := tx.MarshalTx(btx)
	require.NoError(t, err)
	return dat
}

func (a *account) sign(t *testing.T, typ tx.TxType, payload any) []byte {
	dat := a.signWithNonce(t, testChainId, a.nonce, typ, payload)
	a.nonce++
	return dat
}

func (a *account) propose(t *testing.T, name, desc string, quorum int64) []byte {
	return a.sign(t, tx.TxTypeCreateProposal, &tx.CreateProposalTx{Name: name, Description: desc, Quorum: quorum})
}

func (a *account) vote(t *testing.T, proposal uint64) []byte {
	return a.sign(t, tx.TxTypeVote, &tx.VoteTx{Proposal: proposal})
}

func TestGenesisProposals(t *testing.T) {
	n := newTestNode(t, types.GenesisState{Proposals: []types.GenesisProposal{
		{Name: "Genesis", Description: "seeded at start", Quorum: 1},
	}})
	n.block()

	ps := n.proposals()
	require.Len(t, ps, 1)
	require.Equal(t, types.Proposal{
		Index:       0,
		Name:        "Genesis",
		Description: "seeded at start",
		Quorum:      1,
		Status:      types.ProposalStatusCreated,
	}, ps[0])
}

func TestProposalLifecycle(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	alice, bob, carol, dave := newAccount(), newAccount(), newAccount(), newAccount()

	res := n.block(alice.propose(t, "Quorum Proposal", "needs two", 2))
	r := res.TxResults[0]
	require.Equal(t, tx.CodeOK, r.Code, r.Log)
	require.Equal(t, uint64(0), binary.BigEndian.Uint64(r.Data))
	require.Len(t, r.Events, 1)
	require.Equal(t, &types.EventProposalCreated{Proposal: 0, Name: "Quorum Proposal", Quorum: 2}, types.DecodeEventProposalCreated(r.Events[0]))

	res = n.block(bob.vote(t, 0))
	r = res.TxResults[0]
	require.Equal(t, tx.CodeOK, r.Code, r.Log)
	require.Len(t, r.Events, 1)
	require.Equal(t, &types.EventProposalActive{Proposal: 0, Name: "Quorum Proposal", Count: 1}, types.DecodeEventProposalActive(r.Events[0]))

	// duplicate vote and quorum vote in the same block
	res = n.block(bob.vote(t, 0), carol.vote(t, 0))
	require.Equal(t, tx.CodeDuplicateVote, res.TxResults[0].Code)
	require.Empty(t, res.TxResults[0].Events)
	require.Equal(t, tx.CodeOK, res.TxResults[1].Code)
	require.Len(t, res.TxResults[1].Events, 1)
	require.Equal(t, &types.EventProposalApproved{Proposal: 0, Name: "Quorum Proposal", Count: 2}, types.DecodeEventProposalApproved(res.TxResults[1].Events[0]))

	res = n.block(dave.vote(t, 0), dave.vote(t, 7))
	require.Equal(t, tx.CodeAlreadyAccepted, res.TxResults[0].Code)
	require.Equal(t, tx.CodeNotFound, res.TxResults[1].Code)

	ps := n.proposals()
	require.Len(t, ps, 1)
	require.Equal(t, types.ProposalStatusAccepted, ps[0].Status)
	require.Equal(t, int64(2), ps[0].Count)

	// the rejected duplicate still used up bob's nonce
	var nr NonceResult
	q := n.query("/nonce/", []byte(bob.pv.Address()))
	require.Equal(t, tx.CodeOK, q.Code)
	require.NoError(t, json.Unmarshal(q.Value, &nr))
	require.Equal(t, uint64(2), nr.Nonce)
}

func TestVoteWhilePendingHasNoEvent(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	owner, v1, v2 := newAccount(), newAccount(), newAccount()
	n.block(owner.propose(t, "Three", "", 3))

	res := n.block(v1.vote(t, 0), v2.vote(t, 0))
	require.Len(t, res.TxResults[0].Events, 1)
	require.Equal(t, tx.CodeOK, res.TxResults[1].Code)
	require.Empty(t, res.TxResults[1].Events)
	require.Equal(t, types.ProposalStatusPending, n.proposals()[0].Status)
}

func TestNonceRules(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	alice := newAccount()
	n.block(alice.propose(t, "p", "", 5))

	gap := alice.signWithNonce(t, testChainId, 3, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})
	require.Equal(t, tx.CodeOK, n.check(gap).Code)
	res := n.block(gap)
	require.Equal(t, tx.CodeInvalidNonce, res.TxResults[0].Code)

	replay := alice.signWithNonce(t, testChainId, 0, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})
	require.Equal(t, tx.CodeInvalidNonce, n.check(replay).Code)
	res = n.block(replay)
	require.Equal(t, tx.CodeInvalidNonce, res.TxResults[0].Code)

	res = n.block(alice.vote(t, 0))
	require.Equal(t, tx.CodeOK, res.TxResults[0].Code)
}

func TestCheckTxCodes(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	alice := newAccount()

	require.Equal(t, tx.CodeUnsupportedTx, n.check([]byte("garbage")).Code)

	foreign := alice.signWithNonce(t, "other-chain", 0, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})
	require.Equal(t, tx.CodeInvalidTx, n.check(foreign).Code)

	require.Equal(t, tx.CodeNotFound, n.check(alice.signWithNonce(t, testChainId, 0, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})).Code)

	n.block(alice.propose(t, "p", "", 2))
	bob, carol := newAccount(), newAccount()
	require.Equal(t, tx.CodeOK, n.check(bob.signWithNonce(t, testChainId, 0, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})).Code)
	n.block(bob.vote(t, 0))
	require.Equal(t, tx.CodeDuplicateVote, n.check(bob.signWithNonce(t, testChainId, 1, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})).Code)
	n.block(carol.vote(t, 0))
	require.Equal(t, tx.CodeAlreadyAccepted, n.check(alice.signWithNonce(t, testChainId, 1, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})).Code)
}

func TestRestartRestoresRegistry(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	alice, bob := newAccount(), newAccount()
	n.block(alice.propose(t, "a", "first", 3), alice.propose(t, "b", "second", 1))
	n.block(bob.vote(t, 0), bob.vote(t, 1))

	before := n.proposals()
	info, err := n.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, int64(2), info.LastBlockHeight)

	n.restart()

	require.Equal(t, before, n.proposals())
	after, err := n.app.Info(context.Background(), &abcitypes.RequestInfo{})
	require.NoError(t, err)
	require.Equal(t, info.LastBlockHeight, after.LastBlockHeight)
	require.Equal(t, info.LastBlockAppHash, after.LastBlockAppHash)

	// voters survive too
	res := n.block(bob.vote(t, 0))
	require.Equal(t, tx.CodeDuplicateVote, res.TxResults[0].Code)
}

func TestAppHashDeterministic(t *testing.T) {
	run := func() []byte {
		n := newTestNode(t, types.GenesisState{})
		alice := &account{pv: pvcrypto.NewPV(ed25519.GenPrivKeyFromSecret([]byte("alice")))}
		bob := &account{pv: pvcrypto.NewPV(ed25519.GenPrivKeyFromSecret([]byte("bob")))}
		n.block(alice.propose(t, "p", "", 2))
		return n.block(bob.vote(t, 0), bob.vote(t, 0)).AppHash
	}
	require.Equal(t, run(), run())
}

func TestProposalFiltering(t *testing.T) {
	n := newTestNode(t, types.GenesisState{})
	alice := newAccount()
	good := alice.propose(t, "p", "", 1)
	foreign := alice.signWithNonce(t, "other-chain", 1, tx.TxTypeVote, &tx.VoteTx{Proposal: 0})
	ctx := context.Background()

	prep, err := n.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good, []byte("garbage"), foreign},
		MaxTxBytes: 1 << 20,
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{good}, prep.Txs)

	prep, err = n.app.PrepareProposal(ctx, &abcitypes.RequestPrepareProposal{
		Txs:        [][]byte{good},
		MaxTxBytes: int64(len(good)) - 1,
	})
	require.NoError(t, err)
	require.Empty(t, prep.Txs)

	proc, err := n.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: [][]byte{good}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_ACCEPT, proc.Status)

	proc, err = n.app.ProcessProposal(ctx, &abcitypes.RequestProcessProposal{Txs: [][]byte{good, foreign}})
	require.NoError(t, err)
	require.Equal(t, abcitypes.ResponseProcessProposal_REJECT, proc.Status)
}

func TestQueryPaths(t *testing.T) {
	n := newTestNode(t, types.GenesisState{Proposals: []types.GenesisProposal{{Name: "g", Quorum: 1}}})
	n.block()

	res := n.query("/proposal/", []byte{0})
	require.Equal(t, tx.CodeOK, res.Code)
	var p types.Proposal
	require.NoError(t, json.Unmarshal(res.Value, &p))
	require.Equal(t, "g", p.Name)

	res = n.query("/proposal", binary.BigEndian.AppendUint64(nil, 0))
	require.Equal(t, tx.CodeOK, res.Code)

	require.Equal(t, tx.CodeNotFound, n.query("/proposal/", []byte{9}).Code)
	require.Equal(t, tx.CodeInvalidTx, n.query("/proposal/", nil).Code)
	require.Equal(t, CodeUnknownPath, n.query("/accounts/", nil).Code)
}
