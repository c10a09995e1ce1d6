package indexer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ptx "github.com/calehh/propvote/tx"
	"github.com/calehh/propvote/types"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/libs/bytes"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

// BlockSource is the part of the CometBFT RPC client the indexer reads
// from.
type BlockSource interface {
	Status(ctx context.Context) (*ctypes.ResultStatus, error)
	Block(ctx context.Context, height *int64) (*ctypes.ResultBlock, error)
	BlockResults(ctx context.Context, height *int64) (*ctypes.ResultBlockResults, error)
	ABCIQuery(ctx context.Context, path string, data bytes.HexBytes) (*ctypes.ResultABCIQuery, error)
}

type ChainIndexer struct {
	logger   cmtlog.Logger
	db       *gorm.DB
	cli      BlockSource
	interval time.Duration

	// next height to index
	Height int64

	eventHandlers map[string]eventHandler
}

type eventHandler func(ctx context.Context, tx *gorm.DB, event abci.Event, height int64, txIndex int) error

func OpenDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Proposal{}, &ProposalEvent{}, &Height{}).Error; err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string, interval time.Duration) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return newChainIndexer(logger, db, cli, interval)
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli BlockSource, interval time.Duration) (*ChainIndexer, error) {
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		db:       db,
		cli:      cli,
		interval: interval,
		Height:   int64(h.Height + 1),
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalCreatedType:  c.handleEventProposalCreated,
		types.EventProposalActiveType:   c.handleEventProposalActive,
		types.EventProposalApprovedType: c.handleEventProposalApproved,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

// Start polls the node until ctx is done.
func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

// Sync indexes every committed block the indexer has not seen yet.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	st, err := c.cli.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	for st.SyncInfo.LatestBlockHeight >= c.Height {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.indexBlock(ctx, c.Height); err != nil {
			return err
		}
		c.Height++
	}
	return nil
}

// indexBlock writes the events of one block and the new height in a single
// transaction, so a failed block is retried from scratch.
func (c *ChainIndexer) indexBlock(ctx context.Context, height int64) error {
	res, err := c.cli.BlockResults(ctx, &height)
	if err != nil {
		return fmt.Errorf("get block results %d: %w", height, err)
	}
	blk, err := c.cli.Block(ctx, &height)
	if err != nil {
		return fmt.Errorf("get block %d: %w", height, err)
	}
	tx := c.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	for i, r := range res.TxsResults {
		if r == nil || r.Code != 0 {
			continue
		}
		if len(r.Events) == 0 && blk.Block != nil && i < len(blk.Block.Txs) {
			if err := c.handleSilentTx(ctx, tx, blk.Block.Txs[i]); err != nil {
				tx.Rollback()
				return fmt.Errorf("index block %d tx %d: %w", height, i, err)
			}
			continue
		}
		for _, event := range r.Events {
			if err := c.handleEvent(ctx, tx, event, height, i); err != nil {
				tx.Rollback()
				return fmt.Errorf("index block %d tx %d: %w", height, i, err)
			}
		}
	}
	if err := tx.Save(&Height{Id: 1, Height: uint64(height)}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}
	c.logger.Debug("block indexed", "height", height, "txs", len(res.TxsResults))
	return nil
}

func (c *ChainIndexer) handleEvent(ctx context.Context, tx *gorm.DB, event abci.Event, height int64, txIndex int) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(ctx, tx, event, height, txIndex)
	}
	return nil
}

func (c *ChainIndexer) handleEventProposalCreated(ctx context.Context, tx *gorm.DB, event abci.Event, height int64, txIndex int) error {
	ev := types.DecodeEventProposalCreated(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	proposal := Proposal{
		ProposalIndex:   ev.Proposal,
		Name:            ev.Name,
		Quorum:          ev.Quorum,
		Status:          uint64(types.ProposalStatusCreated),
		CreatedHeight:   uint64(height),
		UpdateTimestamp: time.Now().Unix(),
	}
	// the event carries no description
	if p, err := c.queryProposal(ctx, ev.Proposal); err != nil {
		c.logger.Error("query proposal fail", "proposal", ev.Proposal, "err", err)
	} else {
		proposal.Description = p.Description
	}
	if err := tx.Create(&proposal).Error; err != nil {
		return err
	}
	return tx.Create(&ProposalEvent{
		ProposalIndex: ev.Proposal,
		Type:          event.Type,
		Quorum:        ev.Quorum,
		Height:        uint64(height),
		TxIndex:       txIndex,
	}).Error
}

func (c *ChainIndexer) handleEventProposalActive(ctx context.Context, tx *gorm.DB, event abci.Event, height int64, txIndex int) error {
	ev := types.DecodeEventProposalActive(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	return c.advance(ctx, tx, event.Type, ev.Proposal, ev.Count, types.ProposalStatusPending, height, txIndex)
}

func (c *ChainIndexer) handleEventProposalApproved(ctx context.Context, tx *gorm.DB, event abci.Event, height int64, txIndex int) error {
	ev := types.DecodeEventProposalApproved(event)
	if ev == nil {
		c.logger.Error("decode event fail", "event", event)
		return nil
	}
	return c.advance(ctx, tx, event.Type, ev.Proposal, ev.Count, types.ProposalStatusAccepted, height, txIndex)
}

func (c *ChainIndexer) advance(ctx context.Context, tx *gorm.DB, typ string, index uint64, count int64, status types.ProposalStatus, height int64, txIndex int) error {
	proposal, err := c.loadProposal(ctx, tx, index)
	if err != nil {
		return err
	}
	proposal.Count = count
	proposal.Status = uint64(status)
	proposal.UpdateTimestamp = time.Now().Unix()
	switch status {
	case types.ProposalStatusPending:
		proposal.ActiveHeight = uint64(height)
	case types.ProposalStatusAccepted:
		if proposal.ActiveHeight == 0 {
			proposal.ActiveHeight = uint64(height)
		}
		proposal.AcceptedHeight = uint64(height)
	}
	if err := tx.Save(proposal).Error; err != nil {
		return err
	}
	return tx.Create(&ProposalEvent{
		ProposalIndex: index,
		Type:          typ,
		Count:         count,
		Quorum:        proposal.Quorum,
		Height:        uint64(height),
		TxIndex:       txIndex,
	}).Error
}

// handleSilentTx counts a successful vote that moved no status. Such a vote
// emits no event, so the tx itself is the only record of it.
func (c *ChainIndexer) handleSilentTx(ctx context.Context, tx *gorm.DB, dat []byte) error {
	btx, err := ptx.UnmarshalTx(dat)
	if err != nil {
		c.logger.Error("decode tx fail", "err", err)
		return nil
	}
	if btx.Type != ptx.TxTypeVote {
		return nil
	}
	vtx, ok := btx.Tx.(*ptx.VoteTx)
	if !ok {
		return nil
	}
	proposal, err := c.loadProposal(ctx, tx, vtx.Proposal)
	if err != nil {
		return err
	}
	proposal.Count++
	proposal.UpdateTimestamp = time.Now().Unix()
	return tx.Save(proposal).Error
}

// loadProposal returns the indexed row of a proposal. Proposals created at
// genesis have no created event, so they are fetched from the node the
// first time a vote mentions them.
func (c *ChainIndexer) loadProposal(ctx context.Context, tx *gorm.DB, index uint64) (*Proposal, error) {
	var proposal Proposal
	err := tx.Where("proposal_index = ?", index).First(&proposal).Error
	if err == nil {
		return &proposal, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p, err := c.queryProposal(ctx, index)
	if err != nil {
		return nil, err
	}
	proposal = Proposal{
		ProposalIndex: p.Index,
		Name:          p.Name,
		Description:   p.Description,
		Quorum:        p.Quorum,
		Status:        uint64(types.ProposalStatusCreated),
	}
	if err := tx.Create(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (c *ChainIndexer) queryProposal(ctx context.Context, index uint64) (*types.Proposal, error) {
	res, err := c.cli.ABCIQuery(ctx, "/proposal/", binary.BigEndian.AppendUint64(nil, index))
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query proposal %d: code %d: %s", index, res.Response.Code, res.Response.Log)
	}
	var p types.Proposal
	if err := json.Unmarshal(res.Response.Value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func (c *ChainIndexer) getProposals(status *uint64, page int, pageSize int) ([]Proposal, uint64, error) {
	page, pageSize = normalizePage(page, pageSize)
	q := c.db.Model(&Proposal{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	proposals := make([]Proposal, 0)
	err := q.Order("proposal_index desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalByIndex(index uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("proposal_index = ?", index).First(&proposal).Error
	return proposal, err
}

func (c *ChainIndexer) getEventsByProposal(index *uint64, page int, pageSize int) ([]ProposalEvent, uint64, error) {
	page, pageSize = normalizePage(page, pageSize)
	q := c.db.Model(&ProposalEvent{})
	if index != nil {
		q = q.Where("proposal_index = ?", *index)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	events := make([]ProposalEvent, 0)
	err := q.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (c *ChainIndexer) indexedHeight() (uint64, error) {
	h := Height{Id: 1}
	if err := c.db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	return h.Height, nil
}
