// Package registry holds the proposal lifecycle: creation, one vote per
// caller, quorum evaluation and the Created -> Pending -> Accepted status
// machine.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/calehh/propvote/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

var (
	ErrNotFound          = errors.New("proposal not found")
	ErrDuplicateVote     = errors.New("you've voted already")
	ErrAlreadyAccepted   = errors.New("this proposal has been accepted already")
	ErrIllegalTransition = errors.New("illegal proposal status transition")
)

// Record is the full persisted form of a proposal, voter set included.
type Record struct {
	Proposal types.Proposal  `json:"proposal"`
	Voters   []types.Address `json:"voters"`
}

// Store persists records. PutRecord is called before a change is applied
// in memory; an error aborts the change.
type Store interface {
	PutRecord(rec *Record) error
}

type entry struct {
	proposal types.Proposal
	voters   map[types.Address]struct{}
	order    []types.Address
}

func (e *entry) record() *Record {
	voters := make([]types.Address, len(e.order))
	copy(voters, e.order)
	return &Record{Proposal: e.proposal, Voters: voters}
}

type Registry struct {
	mtx sync.RWMutex

	logger   cmtlog.Logger
	notifier Notifier
	store    Store

	proposals []*entry
}

type Option func(r *Registry)

func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

func WithStore(st Store) Option {
	return func(r *Registry) {
		r.store = st
	}
}

func New(logger cmtlog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:    logger.With("module", "registry"),
		notifier:  nopNotifier{},
		proposals: make([]*entry, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetStore swaps the persistence target. The app points it at the working
// state of each block.
func (r *Registry) SetStore(st Store) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.store = st
}

func (r *Registry) CreateProposal(name, description string, quorum int64, caller types.Address) (index uint64, err error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	index = uint64(len(r.proposals))
	e := &entry{
		proposal: types.Proposal{
			Index:       index,
			Name:        name,
			Description: description,
			Quorum:      quorum,
			Count:       0,
			Status:      types.ProposalStatusCreated,
		},
		voters: make(map[types.Address]struct{}),
		order:  []types.Address{},
	}
	if r.store != nil {
		if err = r.store.PutRecord(e.record()); err != nil {
			return 0, fmt.Errorf("store proposal %d: %w", index, err)
		}
	}
	r.proposals = append(r.proposals, e)
	r.logger.Debug("proposal created", "index", index, "caller", caller, "quorum", quorum)

	r.notifier.Notify(&types.EventProposalCreated{
		Proposal: index,
		Name:     name,
		Quorum:   quorum,
	})
	return index, nil
}

func (r *Registry) VoteOnProposal(index uint64, caller types.Address) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	e, err := r.checkVote(index, caller)
	if err != nil {
		return err
	}

	next := e.proposal
	next.Count += 1
	var ev types.Event
	switch {
	case next.Count >= next.Quorum:
		next.Status = types.ProposalStatusAccepted
		ev = &types.EventProposalApproved{Proposal: index, Name: next.Name, Count: next.Count}
	case next.Status == types.ProposalStatusCreated:
		next.Status = types.ProposalStatusPending
		ev = &types.EventProposalActive{Proposal: index, Name: next.Name, Count: next.Count}
	}
	if !e.proposal.Status.CanAdvanceTo(next.Status) {
		r.logger.Error("refuse status transition", "index", index, "from", e.proposal.Status, "to", next.Status)
		return ErrIllegalTransition
	}

	if r.store != nil {
		rec := &Record{Proposal: next, Voters: append(e.record().Voters, caller)}
		if err = r.store.PutRecord(rec); err != nil {
			return fmt.Errorf("store proposal %d: %w", index, err)
		}
	}
	e.proposal = next
	e.voters[caller] = struct{}{}
	e.order = append(e.order, caller)
	r.logger.Debug("vote recorded", "index", index, "caller", caller, "count", next.Count, "status", next.Status)

	if ev != nil {
		r.notifier.Notify(ev)
	}
	return nil
}

// CheckVote runs the VoteOnProposal validation without recording anything.
func (r *Registry) CheckVote(index uint64, caller types.Address) error {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	_, err := r.checkVote(index, caller)
	return err
}

func (r *Registry) checkVote(index uint64, caller types.Address) (*entry, error) {
	if index >= uint64(len(r.proposals)) {
		return nil, ErrNotFound
	}
	e := r.proposals[index]
	if e.proposal.Status == types.ProposalStatusAccepted {
		return nil, ErrAlreadyAccepted
	}
	if _, ok := e.voters[caller]; ok {
		return nil, ErrDuplicateVote
	}
	return e, nil
}

func (r *Registry) GetAllProposals() []types.Proposal {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	res := make([]types.Proposal, len(r.proposals))
	for i, e := range r.proposals {
		res[i] = e.proposal
	}
	return res
}

func (r *Registry) GetAProposal(index uint64) (types.Proposal, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if index >= uint64(len(r.proposals)) {
		return types.Proposal{}, ErrNotFound
	}
	return r.proposals[index].proposal, nil
}

func (r *Registry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.proposals)
}

// Records exports every proposal with its voters, in index order.
func (r *Registry) Records() []*Record {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	res := make([]*Record, len(r.proposals))
	for i, e := range r.proposals {
		res[i] = e.record()
	}
	return res
}

// Restore replaces the registry contents with recs. Records must be dense
// and ordered by index, and each must satisfy Count == len(Voters).
func (r *Registry) Restore(recs []*Record) error {
	proposals := make([]*entry, len(recs))
	for i, rec := range recs {
		p := rec.Proposal
		if p.Index != uint64(i) {
			return fmt.Errorf("restore: record %d has index %d", i, p.Index)
		}
		if !p.Status.Valid() {
			return fmt.Errorf("restore: proposal %d has status %v", i, p.Status)
		}
		e := &entry{
			proposal: p,
			voters:   make(map[types.Address]struct{}, len(rec.Voters)),
			order:    make([]types.Address, 0, len(rec.Voters)),
		}
		for _, v := range rec.Voters {
			if _, ok := e.voters[v]; ok {
				return fmt.Errorf("restore: proposal %d lists voter %s twice", i, v)
			}
			e.voters[v] = struct{}{}
			e.order = append(e.order, v)
		}
		if int64(len(e.order)) != p.Count {
			return fmt.Errorf("restore: proposal %d count %d but %d voters", i, p.Count, len(e.order))
		}
		proposals[i] = e
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.proposals = proposals
	r.logger.Info("registry restored", "proposals", len(proposals))
	return nil
}
