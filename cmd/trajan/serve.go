package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/trajan/internal/adapters/http/api"
	"github.com/okian/trajan/internal/adapters/http/site"
	"github.com/okian/trajan/internal/adapters/http/swagger"
	"github.com/okian/trajan/internal/adapters/repository"
	service "github.com/okian/trajan/internal/app"
	"github.com/okian/trajan/internal/synth"
	"github.com/okian/trajan/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

type serveFlags struct {
	runFlags
	addr      string
	synthetic int
	seed      uint64
}

func newServeCommand(g *globals) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline once, then serve its results over HTTP",
		Example: `  trajan serve --frames 'data/input_w*.csv' --metadata data/supplementary.csv
  trajan serve --synthetic 500 --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, f)
		},
	}
	cmd.Flags().StringSliceVarP(&f.frames, "frames", "f", nil, "frame table path or glob (repeatable)")
	cmd.Flags().StringVarP(&f.metadata, "metadata", "m", "", "episode metadata table")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().IntVar(&f.synthetic, "synthetic", 0, "serve N generated episodes instead of reading tables")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "seed of the generated episodes")
	cmd.MarkFlagsMutuallyExclusive("frames", "synthetic")
	cmd.MarkFlagsOneRequired("frames", "synthetic")
	cmd.MarkFlagsRequiredTogether("frames", "metadata")
	return cmd
}

func runServe(cmd *cobra.Command, g *globals, f *serveFlags) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := g.cfg
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	log := logger.Named("serve")

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	if f.synthetic > 0 {
		episodes := synth.New(synth.WithEpisodes(f.synthetic), synth.WithSeed(f.seed)).Episodes()
		store, rejected := repository.NewMemStore(episodes...)
		report, err := svc.Run(ctx, store)
		if err != nil {
			return err
		}
		report.AddIngest(rejected, 0)
	} else if _, err := runPipeline(ctx, cfg, svc, input{frames: f.frames, metadata: f.metadata}); err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newHandler routes the results API, its docs and the root redirect.
func newHandler(ctx context.Context, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}
