package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmttypes "github.com/cometbft/cometbft/types"
)

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
)

const DefaultPower = 10

// GenesisProposal is a proposal created by the genesis authority when the
// chain starts.
type GenesisProposal struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quorum      int64  `json:"quorum"`
}

// GenesisState is the app_state section of the genesis file.
type GenesisState struct {
	Proposals []GenesisProposal `json:"proposals"`
}

func ParseGenesisState(dat []byte) (gs GenesisState, err error) {
	if len(dat) == 0 {
		return
	}
	err = json.Unmarshal(dat, &gs)
	if err != nil {
		err = fmt.Errorf("decode app_state: %w", err)
	}
	return
}

func NewGenesisDoc(chainID string, pk crypto.PubKey, state GenesisState) (*cmttypes.GenesisDoc, error) {
	if chainID == "" {
		return nil, errors.New("genesis doc must include non-empty chain_id")
	}
	appState, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	doc := &cmttypes.GenesisDoc{
		GenesisTime:     time.Now().Round(0).UTC(),
		ChainID:         chainID,
		InitialHeight:   1,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		Validators: []cmttypes.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: DefaultPower},
		},
		AppState: appState,
	}
	if err = doc.ValidateAndComplete(); err != nil {
		return nil, err
	}
	return doc, nil
}
