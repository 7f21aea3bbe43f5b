// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Print the configuration serve would use, after merging defaults, the
config file, flags and environment. Secrets and URL passwords are redacted.
Validation problems are reported after the output.`,
		RunE: runConfigShow,
	})
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := cfg.YAML()
	if err != nil {
		return oops.With("operation", "render config").Wrap(err)
	}
	cmd.Print(string(data))

	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate config").Wrap(err)
	}
	return nil
}
