package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calehh/propvote/registry"
	"github.com/calehh/propvote/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState        = "s"
	KeyProposalBody = "p%v"
	KeyAccountNonce = "n%s"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrProposalIndexGap     = errors.New("proposal index gap")
	ErrCorruptProposalState = errors.New("corrupt proposal record")
)

// StateHeader is stored rlp encoded under KeyState.
type StateHeader struct {
	ChainId   string
	Height    uint64
	Proposals uint64
	RootHash  []byte
	Hash      []byte
}

func (h *StateHeader) clone() *StateHeader {
	n := *h
	n.RootHash = common.CopyBytes(h.RootHash)
	n.Hash = common.CopyBytes(h.Hash)
	return &n
}

// State is a view over the iavl tree at one height. It implements
// registry.Store so proposal changes land in the working tree of the block
// being executed.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	nonces map[types.Address]uint64
}

var _ registry.Store = &State{}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
		nonces: make(map[types.Address]uint64),
	}
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.clone(),
		nonces: make(map[types.Address]uint64),
	}
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyState))
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil
		}
		return err
	}
	if val == nil {
		return nil
	}
	if err = rlp.DecodeBytes(val, s.header); err != nil {
		return fmt.Errorf("decode state header: %w", err)
	}
	if h := s.db.Hash(); h != nil {
		s.calcHash(h, true)
	}
	return nil
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update flushes the header into the working tree and returns the app hash
// the block would commit to.
func (s *State) Update() (h common.Hash, err error) {
	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	if _, err = s.db.Set([]byte(KeyState), val); err != nil {
		// drops the block's proposal records too while the registry keeps
		// them. FinalizeBlock fails on this error and the node halts, so the
		// two only disagree until the registry is restored on restart.
		s.db.Rollback()
		return
	}
	h = s.calcHash(s.db.WorkingHash(), false)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	return
}

func (s *State) PutRecord(rec *registry.Record) error {
	idx := rec.Proposal.Index
	if idx > s.header.Proposals {
		return ErrProposalIndexGap
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyProposalBody, idx)
	if _, err = s.db.Set([]byte(key), val); err != nil {
		return err
	}
	if idx == s.header.Proposals {
		s.header.Proposals += 1
	}
	return nil
}

func (s *State) getRecord(idx uint64) (*registry.Record, error) {
	if idx >= s.header.Proposals {
		return nil, ErrNotFound
	}
	key := fmt.Sprintf(KeyProposalBody, idx)
	val, err := s.db.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, fmt.Errorf("%w: %d missing", ErrCorruptProposalState, idx)
	}
	rec := new(registry.Record)
	if err = json.Unmarshal(val, rec); err != nil {
		return nil, fmt.Errorf("%w: %d: %v", ErrCorruptProposalState, idx, err)
	}
	return rec, nil
}

// Records reads every stored proposal in index order.
func (s *State) Records() ([]*registry.Record, error) {
	recs := make([]*registry.Record, 0, s.header.Proposals)
	for i := uint64(0); i < s.header.Proposals; i++ {
		rec, err := s.getRecord(i)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *State) Nonce(addr types.Address) (nonce uint64, err error) {
	if n, ok := s.nonces[addr]; ok {
		return n, nil
	}
	key := fmt.Sprintf(KeyAccountNonce, addr)
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			return 0, err
		}
	}
	if val != nil {
		if err = rlp.DecodeBytes(val, &nonce); err != nil {
			return 0, err
		}
	}
	s.nonces[addr] = nonce
	return nonce, nil
}

func (s *State) SetNonce(addr types.Address, nonce uint64) error {
	val, err := rlp.EncodeToBytes(nonce)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(KeyAccountNonce, addr)
	if _, err = s.db.Set([]byte(key), val); err != nil {
		return err
	}
	s.nonces[addr] = nonce
	return nil
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}
