package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bikestore/internal/config"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "bikestore",
		Short:   "Bike store checkout API, payment reconciliation and cart client",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.Load()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(cartCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
