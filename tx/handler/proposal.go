package handler

import (
	"context"
	"encoding/binary"

	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

type CreateProposalTxHandler struct {
	logger cmtlog.Logger
	events EventSource
}

func NewCreateProposalTxHandler(logger cmtlog.Logger, events EventSource) (h *CreateProposalTxHandler) {
	logger = logger.With("module", "createProposalTx")
	h = &CreateProposalTxHandler{
		logger: logger,
		events: events,
	}
	return
}

func (h *CreateProposalTxHandler) Check(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) error {
	if _, ok := btx.Tx.(*tx.CreateProposalTx); !ok {
		return tx.ErrInvalidTx
	}
	return nil
}

func (h *CreateProposalTxHandler) Deliver(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) (res *abcitypes.ExecTxResult, err error) {
	ptx, ok := btx.Tx.(*tx.CreateProposalTx)
	if !ok {
		return nil, tx.ErrInvalidTx
	}
	index, err := reg.CreateProposal(ptx.Name, ptx.Description, ptx.Quorum, caller)
	if err != nil {
		h.logger.Error("create proposal fail", "caller", caller, "err", err)
		return nil, err
	}
	h.logger.Info("proposal created", "index", index, "name", ptx.Name, "quorum", ptx.Quorum, "caller", caller)
	res = &abcitypes.ExecTxResult{
		Code:   tx.CodeOK,
		Data:   binary.BigEndian.AppendUint64(nil, index),
		Events: h.events.Drain(),
	}
	return
}

type VoteTxHandler struct {
	logger cmtlog.Logger
	events EventSource
}

func NewVoteTxHandler(logger cmtlog.Logger, events EventSource) (h *VoteTxHandler) {
	logger = logger.With("module", "voteTx")
	h = &VoteTxHandler{
		logger: logger,
		events: events,
	}
	return
}

func (h *VoteTxHandler) Check(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) error {
	vtx, ok := btx.Tx.(*tx.VoteTx)
	if !ok {
		return tx.ErrInvalidTx
	}
	return reg.CheckVote(vtx.Proposal, caller)
}

func (h *VoteTxHandler) Deliver(ctx context.Context, reg *registry.Registry, btx *tx.Tx, caller types.Address) (res *abcitypes.ExecTxResult, err error) {
	vtx, ok := btx.Tx.(*tx.VoteTx)
	if !ok {
		return nil, tx.ErrInvalidTx
	}
	if err = reg.VoteOnProposal(vtx.Proposal, caller); err != nil {
		h.logger.Info("vote rejected", "proposal", vtx.Proposal, "caller", caller, "err", err)
		return nil, err
	}
	h.logger.Info("vote recorded", "proposal", vtx.Proposal, "caller", caller)
	res = &abcitypes.ExecTxResult{
		Code:   tx.CodeOK,
		Events: h.events.Drain(),
	}
	return
}
