package main

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/calehh/propvote/types"
	"github.com/spf13/cobra"
)

type proposalsArguments struct {
	Url   string
	Index int64
}

var proposalsArgs proposalsArguments

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List proposals, or show one with --index",
	RunE:  proposalsRun,
}

func init() {
	urlFlag(proposalsCmd, &proposalsArgs.Url)
	proposalsCmd.Flags().Int64VarP(&proposalsArgs.Index, "index", "i", -1, "proposal index")
}

func printProposal(p types.Proposal) {
	fmt.Printf("index:%d name:%q status:%s votes:%d/%d desc:%q\n", p.Index, p.Name, p.Status, p.Count, p.Quorum, p.Description)
}

func proposalsRun(cmd *cobra.Command, args []string) error {
	c, err := newTxClient(proposalsArgs.Url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if proposalsArgs.Index >= 0 {
		var p types.Proposal
		data := binary.BigEndian.AppendUint64(nil, uint64(proposalsArgs.Index))
		if err := c.query(ctx, "/proposal/", data, &p); err != nil {
			return err
		}
		printProposal(p)
		return nil
	}
	var ps []types.Proposal
	if err := c.query(ctx, "/proposals/", nil, &ps); err != nil {
		return err
	}
	for _, p := range ps {
		printProposal(p)
	}
	return nil
}
