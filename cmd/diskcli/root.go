package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sagarc03/diskcli/backend"
	"github.com/sagarc03/diskcli/config"
	"github.com/sagarc03/diskcli/keystore"
	"github.com/sagarc03/diskcli/output"
	"github.com/sagarc03/diskcli/session"
	"github.com/sagarc03/diskcli/vault"
)

// backendFactory builds the backend client for a loaded configuration.
type backendFactory func(cfg *config.Config, logger *slog.Logger) (backend.Client, error)

// app holds the state shared by all commands of one invocation.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	newBackend backendFactory

	cfgFile    string
	jsonOutput bool
	quiet      bool
	verbose    bool
	user       string

	logger *slog.Logger
	out    output.Formatter
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		newBackend: newStowryBackend,
		logger:     slog.New(slog.DiscardHandler),
		out:        output.NewFormatter(false, false, 0),
	}
}

func newStowryBackend(cfg *config.Config, logger *slog.Logger) (backend.Client, error) {
	return backend.NewStowry(backend.StowryConfig{
		Endpoint:        cfg.Backend.Endpoint,
		CredentialsPath: filepath.Join(cfg.Home, backend.CredentialsFileName),
		Timeout:         cfg.Backend.Timeout,
	}, backend.WithPrompt(promptCredentials), backend.WithLogger(logger))
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "diskcli",
		Version: version,
		Short:   "Multi-user command-line client for cloud storage",
		Long: `diskcli uploads, downloads and lists files in a cloud storage account.

Several local users can log in side by side. Each user's credential is kept
encrypted in its own directory under the diskcli home (default ~/.diskcli).
Commands act for --user, or for the default user when --user is omitted.

Examples:
  diskcli login --user alice
  diskcli set-default-user --user alice
  diskcli upload ./report.pdf /documents/report.pdf
  diskcli list /documents`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: <home>/config.yaml)")
	flags.String("home", "", "diskcli home directory (default: ~/.diskcli, env: DISKCLI_HOME)")
	flags.String("endpoint", "", "storage endpoint URL (env: DISKCLI_BACKEND_ENDPOINT)")
	flags.BoolVar(&a.jsonOutput, "json", false, "output as JSON")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress non-essential output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newSetDefaultUserCmd(a),
		newUploadCmd(a),
		newDownloadCmd(a),
		newListCmd(a),
		newUsersCmd(a),
	)

	return rootCmd
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	var files []string
	if a.cfgFile != "" {
		files = []string{a.cfgFile}
	}

	cfg, err := config.Load(files, cmd.Flags())
	if err != nil {
		return err
	}

	a.logger = setupLogging(a.stderr, cfg.Log, a.verbose)
	a.out = output.NewFormatter(a.jsonOutput, a.quiet, cfg.List.NameWidth)
	a.logger.Debug("config loaded", "home", cfg.Home, "endpoint", cfg.Backend.Endpoint)

	cmd.SetContext(config.WithContext(cmd.Context(), cfg))
	return nil
}

func addUserFlag(cmd *cobra.Command, a *app, usage string) {
	cmd.Flags().StringVarP(&a.user, "user", "u", "", usage)
}

// env is the opened diskcli home.
type env struct {
	cfg      *config.Config
	root     *os.Root
	vault    *vault.Vault
	defaults *session.DefaultUser
	resolver *session.Resolver
}

func (a *app) openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home directory: %w", err)
	}
	root, err := os.OpenRoot(cfg.Home)
	if err != nil {
		return nil, fmt.Errorf("open home directory: %w", err)
	}

	v := vault.New(root, keystore.New(cfg.Home), a.logger)
	defaults := session.NewDefaultUser(cfg.Home)
	resolver := session.NewResolver(v, defaults, func() (backend.Client, error) {
		return a.newBackend(cfg, a.logger)
	}, session.WithLogger(a.logger))

	return &env{
		cfg:      cfg,
		root:     root,
		vault:    v,
		defaults: defaults,
		resolver: resolver,
	}, nil
}

func (e *env) Close() error {
	return e.root.Close()
}

// displayUser is the user a failure is reported for: the explicit user, or
// the default one if it can be read.
func (e *env) displayUser(explicit string) string {
	user, err := e.resolver.EffectiveUser(explicit)
	if err != nil {
		return explicit
	}
	return user
}

// fail reports err through the formatter and returns the exit error.
func (a *app) fail(op, user string, err error) error {
	opErr := &output.OpError{Op: op, User: user, Err: err}
	a.logger.Debug("command failed", "op", op, "user", user, "err", err)
	_ = a.out.FormatError(a.stderr, opErr)
	return &exitError{code: 1, err: opErr}
}
