package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/calehh/propvote/config"
	"github.com/calehh/propvote/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/spf13/cobra"
)

const flagProposals = "proposals"

type printInfo struct {
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	Home       string          `json:"home" yaml:"home"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)

	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize validators's and node's configuration files.
Proposals listed in the --proposals file (a JSON object {"proposals":[...]})
are created by the genesis authority when the chain starts.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "node home directory")
	initCmd.Flags().String(flagProposals, "", "json file with the genesis proposals")
}

func readGenesisState(path string) (gs types.GenesisState, err error) {
	if path == "" {
		return
	}
	dat, err := os.ReadFile(path)
	if err != nil {
		return gs, err
	}
	return types.ParseGenesisState(dat)
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	proposalsFile, _ := cmd.Flags().GetString(flagProposals)

	if chainID == "" {
		chainID = fmt.Sprintf("test-chain-%v", rand.Uint64())
	}
	gs, err := readGenesisState(proposalsFile)
	if err != nil {
		return fmt.Errorf("read genesis proposals: %w", err)
	}

	appConfig := config.DefaultConfig(home)
	genFile := appConfig.GenesisFile()
	if !overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists, use --%s to replace it", genFile, types.FlagOverwrite)
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(appConfig)
	if err != nil {
		return err
	}
	appGenesis, err := types.NewGenesisDoc(chainID, pk, gs)
	if err != nil {
		return err
	}
	if err = appGenesis.SaveAs(genFile); err != nil {
		return fmt.Errorf("failed to export genesis file %v", err)
	}
	if err = config.WriteConfigFile(appConfig.ConfigFile(), appConfig); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	toPrint := printInfo{
		ChainID:    chainID,
		NodeID:     nodeID,
		Home:       appConfig.RootDir,
		AppMessage: appGenesis.AppState,
	}
	return displayInfo(toPrint)
}
