package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "maskwise",
	Short: "Maskwise - PII anonymization policy engine",
	Long: `Maskwise manages declarative PII anonymization policies.

It provides:
  - Exhaustive validation of YAML policy documents
  - Policy storage with an append-only version history
  - Curated compliance templates (GDPR, HIPAA, PCI DSS)
  - An audit trail for every policy mutation`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
