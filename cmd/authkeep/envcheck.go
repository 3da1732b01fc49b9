// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authkeep/internal/envfile"
)

// NewEnvCmd creates the env subcommand.
func NewEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Inspect the dotenv file",
	}

	var (
		path string
		fix  bool
	)
	check := &cobra.Command{
		Use:   "check",
		Short: "Check the .env encoding and whether JWT_SECRET is set",
		Long: `Check that the .env file is plain UTF-8 and that it defines JWT_SECRET.
A UTF-16 file (for example one saved by Windows editors) is not read correctly
by dotenv loaders; --fix rewrites it as UTF-8 in place. The secret value is
never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnvCheck(cmd, path, fix)
		},
	}
	check.Flags().StringVar(&path, "file", defaultEnvFile, "dotenv file to check")
	check.Flags().BoolVarP(&fix, "fix", "f", false, "rewrite the file as UTF-8 when needed")
	cmd.AddCommand(check)

	return cmd
}

func runEnvCheck(cmd *cobra.Command, path string, fix bool) error {
	report, err := envfile.Inspect(path, fix)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %s\n", report.Path, report.Encoding)

	if report.Encoding.NeedsFix() && !report.Fixed {
		cmd.Printf("The file is not plain UTF-8. Run with --fix to convert it.\n")
		return oops.Code("ENVFILE_ENCODING").
			With("path", report.Path).
			With("encoding", report.Encoding.String()).
			Errorf("%s is encoded as %s", report.Path, report.Encoding)
	}
	if report.Fixed {
		cmd.Printf("Converted %s from %s to UTF-8\n", report.Path, report.Encoding)
	}

	if !report.Secret.Set {
		cmd.Printf("%s is not set\n", envfile.SecretKey)
		return oops.Code("ENVFILE_SECRET_MISSING").
			With("path", report.Path).
			Errorf("%s is not set in %s", envfile.SecretKey, report.Path)
	}
	cmd.Printf("%s is set (%d bytes)\n", envfile.SecretKey, report.Secret.Length)
	return nil
}
