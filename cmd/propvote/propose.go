package main

import (
	"errors"

	"github.com/calehh/propvote/tx"
	"github.com/spf13/cobra"
)

type proposeArguments struct {
	Url         string
	Key         string
	Nonce       int64
	NoSend      bool
	Name        string
	Description string
	Quorum      int64
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Create a proposal",
	RunE:  proposeRun,
}

func init() {
	urlFlag(proposeCmd, &proposeArgs.Url)
	keyFlag(proposeCmd, &proposeArgs.Key)
	nonceFlag(proposeCmd, &proposeArgs.Nonce)
	noSendFlag(proposeCmd, &proposeArgs.NoSend)
	proposeCmd.Flags().StringVar(&proposeArgs.Name, "name", "", "proposal name")
	proposeCmd.Flags().StringVar(&proposeArgs.Description, "desc", "", "proposal description")
	proposeCmd.Flags().Int64VarP(&proposeArgs.Quorum, "quorum", "q", 1, "votes needed for acceptance")
}

func proposeRun(cmd *cobra.Command, args []string) error {
	if proposeArgs.Name == "" {
		return errors.New("--name is required")
	}
	return send(proposeArgs.Url, proposeArgs.Key, proposeArgs.Nonce, proposeArgs.NoSend, tx.TxTypeCreateProposal, &tx.CreateProposalTx{
		Name:        proposeArgs.Name,
		Description: proposeArgs.Description,
		Quorum:      proposeArgs.Quorum,
	})
}
