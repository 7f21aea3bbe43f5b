// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contactsd Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/luan-services/contactsd/internal/config"
)

// serviceName labels logs and the control health service.
const serviceName = "contactsd"

// NewRootCmd creates the root command for the contactsd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contactsd",
		Short: "contactsd - accounts and contacts API",
		Long: `contactsd serves a JSON API for account registration, email
verification, password reset and per-account contact lists.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String(config.FlagConfigFile, "", "config file path (YAML)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig builds the effective config from the command's flags. It
// does not validate; each command checks what it needs.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, oops.With("operation", "load config").Wrap(err)
	}
	return cfg, nil
}
