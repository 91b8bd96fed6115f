package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ryotapoi/backlinks/internal/core"
)

type watchOptions struct {
	target      string
	metricsAddr string
	sort        string
}

func newWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the link graph in sync with the vault until interrupted",
		Long: `Watch the vault for changes and keep the link graph in sync.

With --target, the backlinks of that document are printed on start and
again after every batch of applied changes. With --metrics-addr, Prometheus
metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "", "document whose backlinks are printed after each change")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on, e.g. :9090")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "source order (overrides sort_order)")
	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *watchOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, cmd, rootOpts, envOptions{sort: opts.sort, notify: opts.target != ""})
	if err != nil {
		return err
	}
	defer e.Close()

	w, err := core.NewWatcher(e.vault, e.log)
	if err != nil {
		return err
	}
	e.svc.Attach(w)

	if opts.target != "" {
		target := core.NormalizePath(opts.target)
		out := cmd.OutOrStdout()
		var mu sync.Mutex
		show := func() {
			mu.Lock()
			defer mu.Unlock()
			if err := printQueryText(out, target, e.svc.Graph().Backlinks(target)); err != nil {
				e.log.Warn("print backlinks failed", "err", err)
			}
		}
		show()
		e.svc.OnChange(func([]string) { show() })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			_ = w.Close()
			return err
		}
		<-gctx.Done()
		return w.Close()
	})
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			e.log.Info("serving metrics", "addr", opts.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	e.log.Info("watching vault", "vault", e.vault.Root(), "debounce", e.cfg.Debounce)
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
