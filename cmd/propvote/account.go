package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/calehh/propvote/crypto"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url string
	Key string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the address and next nonce of a key",
	RunE:  accountRun,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the address and public key of a key file",
	RunE:  showRun,
}

type newAccountArguments struct {
	Out string
}

var newAccountArgs newAccountArguments

var newAccountCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new signing key",
	RunE:  newAccountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	keyFlag(accountCmd, &accountArgs.Key)
	keyFlag(showCmd, &accountArgs.Key)
	newAccountCmd.Flags().StringVarP(&newAccountArgs.Out, "out", "o", "./account_key.json", "key file to create")
	accountCmd.AddCommand(showCmd)
	accountCmd.AddCommand(newAccountCmd)
}

func accountRun(cmd *cobra.Command, args []string) error {
	pv, err := crypto.LoadFilePV(accountArgs.Key)
	if err != nil {
		return err
	}
	c, err := newTxClient(accountArgs.Url)
	if err != nil {
		return err
	}
	nonce, err := c.nonce(context.Background(), pv)
	if err != nil {
		return err
	}
	fmt.Printf("addr:%s nonce:%d\n", pv.Address(), nonce)
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	pv, err := crypto.LoadFilePV(accountArgs.Key)
	if err != nil {
		return err
	}
	fmt.Printf("addr:%s pk:%s\n", pv.Address(), hex.EncodeToString(pv.PublicKey()))
	return nil
}

func newAccountRun(cmd *cobra.Command, args []string) error {
	pv, err := crypto.GenFilePV(newAccountArgs.Out)
	if err != nil {
		return err
	}
	fmt.Printf("addr:%s key:%s\n", pv.Address(), newAccountArgs.Out)
	return nil
}
