package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psaab/metconf/pkg/api"
	"github.com/psaab/metconf/pkg/config"
	"github.com/psaab/metconf/pkg/configstore"
	"github.com/psaab/metconf/pkg/daemon"
)

const logLevelEnv = "METCONF_LOG_LEVEL"

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "metcheck",
		Short: "Check, format and serve Paradyn session configurations",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			return setupLogging(stderr, logLevel)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: exitUsage, Message: err.Error()}
	})
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv(logLevelEnv),
		"log level: debug, info, warn or error (env "+logLevelEnv+")")

	rootCmd.AddCommand(
		newCheckCmd(),
		newDumpCmd(),
		newFmtCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// setupLogging installs the default slog handler on stderr.
func setupLogging(w io.Writer, level string) error {
	lvl := slog.LevelInfo
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return &ExitError{Code: exitUsage, Message: fmt.Sprintf("invalid log level %q", level)}
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})))
	return nil
}

// argsExactly is cobra.ExactArgs with a usage exit code.
func argsExactly(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &ExitError{Code: exitUsage, Message: err.Error()}
		}
		return nil
	}
}

func argsAtLeast(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return &ExitError{Code: exitUsage, Message: err.Error()}
		}
		return nil
	}
}

// loadFile reads and parses path. On a configuration error the diagnostic
// is rendered to w and an ExitError is returned.
func loadFile(w io.Writer, path string) (*config.ConfigSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ExitError{Code: exitInvalid, Message: err.Error()}
	}
	defer f.Close()

	src, err := config.ReadSource(f)
	if err != nil {
		return nil, &ExitError{Code: exitInvalid, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	cs, err := config.Parse(src)
	if err != nil {
		slog.Debug("configuration rejected", "path", path, "stage", config.Stage(err), "err", err)
		if werr := config.WriteDiagnostic(w, path, []byte(src), err); werr != nil {
			return nil, werr
		}
		return nil, &ExitError{Code: exitInvalid}
	}
	return cs, nil
}

var kindPlural = []struct {
	kind config.RecordKind
	noun string
}{
	{config.KindDaemon, "daemons"},
	{config.KindProcess, "processes"},
	{config.KindVisi, "visis"},
	{config.KindTunable, "tunables"},
}

func summarize(cs *config.ConfigSet) string {
	parts := make([]string, 0, len(kindPlural))
	for _, k := range kindPlural {
		parts = append(parts, fmt.Sprintf("%d %s", cs.Len(k.kind), k.noun))
	}
	return strings.Join(parts, ", ")
}

func newCheckCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate configuration files",
		Args:  argsAtLeast(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				cs, err := loadFile(cmd.ErrOrStderr(), path)
				if err != nil {
					var ee *ExitError
					if errors.As(err, &ee) && ee.Message != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "metcheck: %s\n", ee.Message)
					}
					failed++
					continue
				}
				if !quiet {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", path, summarize(cs))
				}
			}
			if failed > 0 {
				return &ExitError{Code: exitInvalid}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing for valid files")
	return cmd
}

func newFmtCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Print a configuration in canonical form",
		Args:  argsExactly(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := loadFile(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			out := cs.Format()
			if write {
				if err := configstore.WriteFile(args[0], []byte(out)); err != nil {
					return &ExitError{Code: exitInvalid, Message: err.Error()}
				}
				slog.Info("formatted", "path", args[0])
				return nil
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		addr          string
		history       int
		apiKeys       []string
		protectReads  bool
		requireConfig bool
	)
	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Serve a configuration over HTTP with metrics, reloading on SIGHUP",
		Args:  argsExactly(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if history < 1 {
				return &ExitError{Code: exitUsage, Message: "--history must be at least 1"}
			}
			opts := daemon.Options{
				ConfigFile:    args[0],
				APIAddr:       addr,
				HistorySize:   history,
				RequireConfig: requireConfig,
			}
			if len(apiKeys) > 0 {
				opts.Auth = &api.AuthConfig{APIKeys: apiKeys, ProtectReads: protectReads}
			} else if protectReads {
				return &ExitError{Code: exitUsage, Message: "--protect-reads requires --api-key"}
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := daemon.New(opts).Run(ctx); err != nil {
				return &ExitError{Code: exitInvalid, Message: err.Error()}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "metrics-addr", "127.0.0.1:9464", "HTTP listen address for /metrics and the API (empty to disable)")
	cmd.Flags().IntVar(&history, "history", 10, "number of loads kept for rollback")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "API key required for reload and rollback (repeatable)")
	cmd.Flags().BoolVar(&protectReads, "protect-reads", false, "also require an API key for the configuration views and events")
	cmd.Flags().BoolVar(&requireConfig, "require-config", false, "exit if the initial load fails")
	return cmd
}
