// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/authkeep/internal/auth"
	"github.com/holomush/authkeep/internal/logging"
)

// userOptions holds flags for user create.
type userOptions struct {
	username      string
	passwordStdin bool
}

// NewUserCmd creates the user subcommand.
func NewUserCmd() *cobra.Command {
	return newUserCmdWithDeps(nil)
}

func newUserCmdWithDeps(deps *UserDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer users",
	}

	opts := &userOptions{}
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user directly against the database",
		Long: `Register a user through the same path as POST /register. The password
is read from a no-echo terminal prompt, or from the first line of stdin with
--password-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUserCreateWithDeps(cmd, opts, deps)
		},
	}
	create.Flags().StringVar(&opts.username, "username", "", "username to register (required)")
	create.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")
	create.Flags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	_ = create.MarkFlagRequired("username") //nolint:errcheck // flag is defined above
	cmd.AddCommand(create)

	return cmd
}

func runUserCreateWithDeps(cmd *cobra.Command, opts *userOptions, deps *UserDeps) error {
	if deps == nil {
		deps = &UserDeps{}
	}
	if deps.DatabaseFactory == nil {
		deps.DatabaseFactory = defaultDatabaseFactory
	}
	if deps.PasswordReader == nil {
		deps.PasswordReader = readPassword
	}

	if opts.username == "" {
		return oops.Code("USERNAME_REQUIRED").Errorf("--username must not be empty")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	password, err := deps.PasswordReader(cmd, opts.passwordStdin)
	if err != nil {
		return err
	}
	if password == "" {
		return oops.Code("PASSWORD_REQUIRED").Errorf("password must not be empty")
	}
	if len(password) > auth.MaxPasswordBytes {
		return oops.Code("PASSWORD_TOO_LONG").Errorf("password must be at most %d bytes", auth.MaxPasswordBytes)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	db, err := deps.DatabaseFactory(ctx, poolConfig(cfg.Database))
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	service, err := newAuthService(cfg, db, logger)
	if err != nil {
		return err
	}

	result, err := service.Register(ctx, auth.Registration{Username: opts.username, Password: password})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUsername) {
			return oops.Code("USERNAME_TAKEN").With("username", opts.username).Errorf("user %q already exists", opts.username)
		}
		return err
	}

	cmd.Println(result.Message)
	return nil
}

// readPassword prompts twice on the terminal without echo. With fromStdin
// the first line of stdin is used instead.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		return readLine(cmd.InOrStdin())
	}

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", oops.Code("PASSWORD_PROMPT_FAILED").Errorf("stdin is not a terminal; use --password-stdin")
	}

	cmd.PrintErr("Password: ")
	first, err := term.ReadPassword(fd)
	cmd.PrintErrln()
	if err != nil {
		return "", oops.Code("PASSWORD_PROMPT_FAILED").Wrap(err)
	}
	cmd.PrintErr("Confirm password: ")
	second, err := term.ReadPassword(fd)
	cmd.PrintErrln()
	if err != nil {
		return "", oops.Code("PASSWORD_PROMPT_FAILED").Wrap(err)
	}
	if string(first) != string(second) {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
