package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "servicelogs",
		Short:        "servicelogs stores and searches application log entries",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd(), newMigrateCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of servicelogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "servicelogs version %s\n", Version)
			return err
		},
	})
	return rootCmd
}
