package app

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/state"
	"github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const CodeUnknownPath uint32 = 404

func (app *VoteApp) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	path := req.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	q, ok := app.queriers[path]
	if !ok {
		res = &abcitypes.ResponseQuery{}
		res.Code = CodeUnknownPath
		res.Log = "unknown query path " + req.Path
		return
	}
	res, err = q.Query(ctx, req)
	return
}

type Querier interface {
	Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error)
}

// ProposalsQuerier returns every proposal as a JSON array.
type ProposalsQuerier struct {
	reg    *registry.Registry
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalsQuerier(reg *registry.Registry, db *state.StateDB, logger cmtlog.Logger) (q *ProposalsQuerier) {
	q = &ProposalsQuerier{
		reg:    reg,
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalsQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	res.Value, err = json.Marshal(q.reg.GetAllProposals())
	if err != nil {
		res.Code = tx.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(q.db.Header().Height)
	return
}

// ProposalQuerier returns one proposal. Data is the big-endian index,
// leading zero bytes may be dropped.
type ProposalQuerier struct {
	reg    *registry.Registry
	db     *state.StateDB
	logger cmtlog.Logger
}

func NewProposalQuerier(reg *registry.Registry, db *state.StateDB, logger cmtlog.Logger) (q *ProposalQuerier) {
	q = &ProposalQuerier{
		reg:    reg,
		db:     db,
		logger: logger,
	}
	return
}

func (q *ProposalQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	if len(req.Data) == 0 || len(req.Data) > 8 {
		res.Code = tx.CodeInvalidTx
		res.Log = "proposal index must be 1 to 8 bytes"
		return
	}
	var idx uint64
	for _, v := range req.Data {
		idx <<= 8
		idx |= uint64(v)
	}
	var p types.Proposal
	p, err = q.reg.GetAProposal(idx)
	if err != nil {
		res.Code = tx.CodeNotFound
		res.Log = err.Error()
		return res, nil
	}
	res.Value, err = json.Marshal(p)
	if err != nil {
		res.Code = tx.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(q.db.Header().Height)
	return
}

// NonceQuerier returns the next nonce expected from an address. Data is
// the hex address string.
type NonceQuerier struct {
	db     *state.StateDB
	logger cmtlog.Logger
}

type NonceResult struct {
	Address types.Address `json:"address"`
	Nonce   uint64        `json:"nonce"`
}

func NewNonceQuerier(db *state.StateDB, logger cmtlog.Logger) (q *NonceQuerier) {
	q = &NonceQuerier{
		db:     db,
		logger: logger,
	}
	return
}

func (q *NonceQuerier) Query(ctx context.Context, req *abcitypes.RequestQuery) (res *abcitypes.ResponseQuery, err error) {
	res = &abcitypes.ResponseQuery{}
	addr := types.Address(strings.ToUpper(string(req.Data)))
	if len(addr) == 0 {
		res.Code = tx.CodeInvalidTx
		res.Log = "empty address"
		return
	}
	st := q.db.State()
	nonce, err := st.Nonce(addr)
	if err != nil {
		q.logger.Error("query nonce fail", "address", addr, "err", err)
		res.Code = tx.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	res.Value, err = json.Marshal(&NonceResult{Address: addr, Nonce: nonce})
	if err != nil {
		res.Code = tx.CodeInternal
		res.Log = err.Error()
		return res, nil
	}
	res.Height = int64(st.Header().Height)
	return
}
