package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

// Proposal is the latest known view of one registry proposal. The registry
// index starts at 0, so it lives in its own column instead of the row id.
type Proposal struct {
	Id              uint64 `gorm:"primary_key" json:"-"`
	ProposalIndex   uint64 `gorm:"unique_index" json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Quorum          int64  `json:"quorum"`
	Count           int64  `json:"count"`
	Status          uint64 `gorm:"index" json:"status"`
	CreatedHeight   uint64 `json:"created_height"`
	ActiveHeight    uint64 `json:"active_height"`
	AcceptedHeight  uint64 `json:"accepted_height"`
	UpdateTimestamp int64  `json:"update_timestamp"`
}

// ProposalEvent is one lifecycle event as it appeared in a block.
type ProposalEvent struct {
	Id            uint64 `gorm:"primary_key" json:"-"`
	ProposalIndex uint64 `gorm:"index" json:"proposal"`
	Type          string `json:"type"`
	Count         int64  `json:"count"`
	Quorum        int64  `json:"quorum"`
	Height        uint64 `json:"height"`
	TxIndex       int    `json:"tx_index"`
}
