package main

import (
	"github.com/calehh/propvote/tx"
	"github.com/spf13/cobra"
)

type voteArguments struct {
	Url      string
	Key      string
	Nonce    int64
	NoSend   bool
	Proposal uint64
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Vote on a proposal",
	RunE:  voteRun,
}

func init() {
	urlFlag(voteCmd, &voteArgs.Url)
	keyFlag(voteCmd, &voteArgs.Key)
	nonceFlag(voteCmd, &voteArgs.Nonce)
	noSendFlag(voteCmd, &voteArgs.NoSend)
	voteCmd.Flags().Uint64VarP(&voteArgs.Proposal, "proposal", "p", 0, "proposal index")
}

func voteRun(cmd *cobra.Command, args []string) error {
	return send(voteArgs.Url, voteArgs.Key, voteArgs.Nonce, voteArgs.NoSend, tx.TxTypeVote, &tx.VoteTx{Proposal: voteArgs.Proposal})
}
