// delivery-agent keeps a delivery boy's terminal connected to the notifier
// and alerts on new assignments.
//
// Usage:
//
//	delivery-agent --url ws://localhost:8080/ws/delivery --token $TOKEN
//	delivery-agent token --id 42 --secret $JWT_SECRET
//	delivery-agent --version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := runCmd()
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}
