package app

import (
	"context"
	"fmt"

	"github.com/calehh/propvote/state"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/tx/handler"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

// parseTx decodes and authenticates txDat. With allowNonceGap a nonce ahead
// of the stored one is accepted, so a client can queue several txs in the
// mempool.
func (app *VoteApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.Tx, caller types.Address, err error) {
	btx, err = tx.UnmarshalTx(txDat)
	if err != nil {
		return
	}
	if err = btx.Verify(app.chainId); err != nil {
		return
	}
	caller, err = btx.Sender()
	if err != nil {
		return
	}
	nonce, err := st.Nonce(caller)
	if err != nil {
		return
	}
	if btx.Nonce != nonce && !(allowNonceGap && btx.Nonce > nonce) {
		err = fmt.Errorf("%w: expect %d got %d", tx.ErrTxNonceInvalid, nonce, btx.Nonce)
	}
	return
}

func (app *VoteApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: tx.CodeOK}
	btx, caller, err := app.parseTx(app.db.State(), check.Tx, true)
	if err != nil {
		app.logger.Debug("check tx parse fail", "err", err)
		res.Code = handler.ResultCode(err)
		res.Log = err.Error()
		return res, nil
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		res.Code = tx.CodeUnsupportedTx
		res.Log = tx.ErrUnsupportedTxType.Error()
		return res, nil
	}
	if err = h.Check(ctx, app.reg, btx, caller); err != nil {
		app.logger.Debug("check tx fail", "type", btx.Type, "caller", caller, "err", err)
		res.Code = handler.ResultCode(err)
		res.Log = err.Error()
		return res, nil
	}
	return res, nil
}

// wellFormed reports whether txDat could ever be applied: it decodes, names
// a known type and carries a valid signature. Nonce and registry checks are
// left to FinalizeBlock, which turns them into per-tx result codes.
func (app *VoteApp) wellFormed(txDat []byte) bool {
	btx, err := tx.UnmarshalTx(txDat)
	if err != nil {
		return false
	}
	if _, ok := app.txHdlrs[btx.Type]; !ok {
		return false
	}
	return btx.Verify(app.chainId) == nil
}

func (app *VoteApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	txs := make([][]byte, 0, len(proposal.Txs))
	var size int64
	for _, stx := range proposal.Txs {
		if !app.wellFormed(stx) {
			app.logger.Debug("drop malformed tx from proposal", "height", proposal.Height)
			continue
		}
		size += int64(len(stx))
		if proposal.MaxTxBytes > 0 && size > proposal.MaxTxBytes {
			break
		}
		txs = append(txs, stx)
	}
	app.logger.Debug("PrepareProposal", "height", proposal.Height, "txs", len(txs))
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

func (app *VoteApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	for _, stx := range proposal.Txs {
		if !app.wellFormed(stx) {
			app.logger.Error("reject proposal with malformed tx", "height", proposal.Height)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func (app *VoteApp) deliverTx(ctx context.Context, st *state.State, txDat []byte) *abcitypes.ExecTxResult {
	// leftovers from a failed tx must not leak into the next result
	app.events.Drain()

	btx, caller, err := app.parseTx(st, txDat, false)
	if err != nil {
		return app.rejectTx(err)
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return app.rejectTx(tx.ErrUnsupportedTxType)
	}
	// an authenticated tx uses up its nonce whatever the registry decides
	if err = st.SetNonce(caller, btx.Nonce+1); err != nil {
		return app.rejectTx(err)
	}
	res, err := h.Deliver(ctx, app.reg, btx, caller)
	if err != nil {
		return app.rejectTx(err)
	}
	app.metrics.delivered(btx.Type.String())
	return res
}

func (app *VoteApp) rejectTx(err error) *abcitypes.ExecTxResult {
	code := handler.ResultCode(err)
	app.metrics.rejected(code)
	if code == tx.CodeInternal {
		app.logger.Error("tx failed", "err", err)
	}
	return &abcitypes.ExecTxResult{Code: code, Log: err.Error()}
}

func (app *VoteApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	st := app.workingState()
	st.Header().Height = uint64(req.Height)

	results := make([]*abcitypes.ExecTxResult, len(req.Txs))
	for i, stx := range req.Txs {
		results[i] = app.deliverTx(ctx, st, stx)
	}
	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs), "proposals", st.Header().Proposals)
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: results,
		AppHash:   h.Bytes(),
	}, nil
}

func (app *VoteApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	h, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Commit", "height", app.st.Header().Height, "hash", h)
	app.st = nil
	return &abcitypes.ResponseCommit{}, nil
}
