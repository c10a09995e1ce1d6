package app

import (
	"context"
	"fmt"

	"github.com/calehh/propvote/config"
	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/state"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/tx/handler"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const AppVersion uint64 = 1

var Version = "v0.1.0"

var _ abcitypes.Application = &VoteApp{}

type VoteApp struct {
	cfg     *config.AppConfig
	logger  cmtlog.Logger
	metrics *Metrics

	db       *state.StateDB
	reg      *registry.Registry
	events   *eventBuffer
	txHdlrs  map[tx.TxType]handler.TxHandler
	queriers map[string]Querier

	chainId string
	// working state of the block being executed, nil between blocks
	st *state.State
}

func NewVoteApp(cfg *config.AppConfig, logger cmtlog.Logger, metrics *Metrics) (app *VoteApp, err error) {
	logger = logger.With("module", "app")
	if metrics == nil {
		metrics = NopMetrics()
	}

	db, err := state.NewStateDB(cfg.DataDir(), logger)
	if err != nil {
		return nil, err
	}

	events := &eventBuffer{}
	app = &VoteApp{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		db:       db,
		events:   events,
		reg:      registry.New(logger, registry.WithNotifier(registry.Notifiers{events, metrics})),
		txHdlrs:  make(map[tx.TxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	if err = app.restore(); err != nil {
		db.Close()
		return nil, err
	}
	app.registerTxHandler()
	app.registerQuerier()
	return
}

// restore loads the committed proposals into the registry.
func (app *VoteApp) restore() error {
	st := app.db.State()
	recs, err := st.Records()
	if err != nil {
		return fmt.Errorf("load proposals: %w", err)
	}
	if err = app.reg.Restore(recs); err != nil {
		return fmt.Errorf("restore registry: %w", err)
	}
	app.chainId = st.Header().ChainId
	app.metrics.Proposals.Set(float64(len(recs)))
	app.logger.Info("registry restored", "proposals", len(recs), "height", st.Header().Height)
	return nil
}

func (app *VoteApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("vote app stopped")
}

func (app *VoteApp) Registry() *registry.Registry {
	return app.reg
}

func (app *VoteApp) registerTxHandler() {
	app.txHdlrs = map[tx.TxType]handler.TxHandler{
		tx.TxTypeCreateProposal: handler.NewCreateProposalTxHandler(app.logger, app.events),
		tx.TxTypeVote:           handler.NewVoteTxHandler(app.logger, app.events),
	}
}

func (app *VoteApp) registerQuerier() {
	app.queriers["/proposals/"] = NewProposalsQuerier(app.reg, app.db, app.logger)
	app.queriers["/proposal/"] = NewProposalQuerier(app.reg, app.db, app.logger)
	app.queriers["/nonce/"] = NewNonceQuerier(app.db, app.logger)
}

// workingState returns the state the current block writes to and points
// the registry at it.
func (app *VoteApp) workingState() *state.State {
	if app.st == nil {
		app.st = app.db.NewState()
		app.reg.SetStore(app.st)
	}
	return app.st
}

func (app *VoteApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	gs, err := types.ParseGenesisState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.workingState()
	st.SetChainId(chain.ChainId)
	app.chainId = chain.ChainId
	for _, p := range gs.Proposals {
		index, err := app.reg.CreateProposal(p.Name, p.Description, p.Quorum, types.GenesisAuthority)
		if err != nil {
			app.logger.Error("InitChain create proposal fail", "name", p.Name, "err", err)
			return nil, err
		}
		app.logger.Info("genesis proposal", "index", index, "name", p.Name, "quorum", p.Quorum)
	}
	// genesis events are not attached to any block
	app.events.Drain()
	h, err := st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func (app *VoteApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             "propvote",
		Version:          Version,
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *VoteApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *VoteApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *VoteApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *VoteApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *VoteApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *VoteApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
