package main

import "github.com/spf13/cobra"

const DefaultKeyPath = "./config/priv_validator_key.json"

func urlFlag(cmd *cobra.Command, url *string) {
	cmd.Flags().StringVarP(url, "url", "u", "http://127.0.0.1:26657", "propvote node rpc url")
}

func keyFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "key", "k", DefaultKeyPath, "private key file")
}

func nonceFlag(cmd *cobra.Command, nonce *int64) {
	cmd.Flags().Int64VarP(nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
}

func noSendFlag(cmd *cobra.Command, noSend *bool) {
	cmd.Flags().BoolVarP(noSend, "nosend", "", false, "print the signed transaction instead of sending it")
}
