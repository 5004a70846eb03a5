package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	configPath string
	devMode    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "paymentctl",
		Short:        "Operator tooling for the payment webhook reconciler",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "developer mode")

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
