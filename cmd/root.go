// Package cmd implements the command-line interface for the reconciliation
// validation service.
package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/north-identity/reconvalidator/cmd/common"
	"github.com/north-identity/reconvalidator/cmd/httpd"
	"github.com/north-identity/reconvalidator/cmd/validate"
)

var (
	opts common.Options

	rootCmd = &cobra.Command{
		Use:   "reconvalidator",
		Short: "Cross-system identity reconciliation validator",
		Long: `reconvalidator pages through every record in a directory tenant,
cross-references each against the profile store, and reports classified
mismatches over a streaming API or as a CSV file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available everywhere.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(httpd.Command(&opts))
	rootCmd.AddCommand(validate.Command(&opts))
}
