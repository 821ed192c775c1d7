package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smpit",
	Short: "Self-hosted AWS Secrets Manager emulator",
	Long: `smpit is a self-hosted, SQLite-backed emulation of the AWS Secrets
Manager API. It speaks the JSON 1.1 RPC protocol with SigV4
authentication, so the standard AWS SDKs and CLI work against it
unchanged.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
