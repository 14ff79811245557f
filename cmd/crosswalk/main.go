package main

import (
	"os"

	cmd "github.com/mosaicnetworks/crosswalk/cmd/crosswalk/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewKeygenCmd(),
		cmd.NewRunCmd(),
		cmd.NewTestnetCmd(),
		cmd.NewVersionCmd(),
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
