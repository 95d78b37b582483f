package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fitsync/internal/config"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if reportIssues(cfg) {
				return fmt.Errorf("configuration is invalid: %s", opts.ConfigPath)
			}
			fmt.Printf("configuration is valid: %s\n", opts.ConfigPath)
			return nil
		},
	}
}

// reportIssues prints every validation issue and reports whether any is an
// error.
func reportIssues(cfg config.Config) bool {
	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	return hasError
}
