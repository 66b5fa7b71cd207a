package main

import (
	"log"
	"os"

	infra "github.com/pot-code/speedread/internal/infrastructure"
	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "speedread",
		Short:        "Speed reading training backend",
		SilenceUsage: true,
	}
	infra.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newStatsCmd())
	return rootCmd
}
