// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authkeep/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config files",
		Args:  cobra.NoArgs,
		RunE:  runConfigSchema,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a YAML config file",
		Long: `Validate FILE against the config schema and the semantic rules applied
at startup. The environment is not consulted.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfigValidate,
	})

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	config.BindFlags(show.Flags())
	cmd.AddCommand(show)

	return cmd
}

func runConfigSchema(cmd *cobra.Command, _ []string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	cmd.Println(string(schema))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("file", path).Wrap(err)
	}
	if err := config.ValidateFile(data); err != nil {
		return oops.With("file", path).Wrap(err)
	}

	cfg, err := config.FromFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("file", path).Wrap(err)
	}

	cmd.Printf("%s is valid\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := cfg.ShowYAML()
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}
