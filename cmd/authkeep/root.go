// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authkeep/internal/config"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// defaultEnvFile is loaded into the environment before configuration is assembled.
const defaultEnvFile = ".env"

// NewRootCmd creates the root command for the authkeep CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authkeep",
		Short: "authkeep - user registration and login service",
		Long: `authkeep registers users with bcrypt-hashed passwords in PostgreSQL
and issues signed JWT session tokens on login.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file loaded before configuration (empty = skip)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewEnvCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}

// loadConfig assembles and validates the configuration for cmd. Flags named
// in config.FlagKeys that cmd carries and that were set explicitly win over
// the file and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:   configFile,
		DotEnv: envFile,
		Flags:  cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
