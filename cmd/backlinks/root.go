package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ryotapoi/backlinks/internal/core"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Vault    string
	LogLevel string
	Debounce time.Duration
}

// NewRootCommand creates the root command of the backlinks CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "backlinks",
		Short: "Incrementally maintained backlink index for a markdown vault",
		Long: `Keeps a bidirectional link graph of a markdown vault in sync with its
files and answers "which documents link here" without rescanning the vault.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("backlinks version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Vault, "vault", ".", "vault root directory")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level)")
	pf.DurationVar(&opts.Debounce, "debounce", 0, "quiet period before pending changes are applied (overrides debounce)")

	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))
	cmd.AddCommand(newDiagnoseCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	return cmd
}

// env is a started backlink service over the selected vault, plus the
// unindexed scanner it replaced in the query hook.
type env struct {
	cfg   core.Config
	log   *slog.Logger
	vault *core.Vault
	scan  *core.Scanner
	hook  *core.Hook
	svc   *core.Service
}

// envOptions are per-command overrides applied on top of backlinks.yaml.
type envOptions struct {
	sort   string
	notify bool
}

func openEnv(ctx context.Context, cmd *cobra.Command, opts *RootOptions, eo envOptions) (*env, error) {
	vault, err := core.NewVault(opts.Vault)
	if err != nil {
		return nil, err
	}
	cfg, err := core.LoadConfig(vault.Root())
	if err != nil {
		return nil, err
	}
	if opts.Debounce > 0 {
		cfg.Debounce = opts.Debounce
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if eo.sort != "" {
		order, err := core.ParseSortOrder(eo.sort)
		if err != nil {
			return nil, err
		}
		cfg.SortOrder = order
	}
	if eo.notify {
		cfg.NotifyOnChange = true
	}

	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	resolver := core.NewVaultResolver(cfg.Resolver.CacheSize)
	scan := &core.Scanner{
		Store:    vault,
		Resolver: resolver,
		Compare:  core.ComparerFor(cfg.SortOrder),
		Config:   cfg,
		Logger:   log,
	}
	hook := core.NewHook(scan)
	svc, err := core.NewService(core.Options{
		Store:    vault,
		Resolver: resolver,
		Hook:     hook,
		Config:   cfg,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, vault: vault, scan: scan, hook: hook, svc: svc}, nil
}

func (e *env) Close() error { return e.svc.Close() }

// newLogger writes text records to a terminal and JSON records otherwise.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := core.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, hopts)), nil
}
