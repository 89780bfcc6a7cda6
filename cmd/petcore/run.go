package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/nathoo/petcore/cli"
	"github.com/nathoo/petcore/config"
	"github.com/nathoo/petcore/engine"
	"github.com/nathoo/petcore/engine/rng"
	"github.com/nathoo/petcore/engine/save"
	"github.com/nathoo/petcore/engine/store"
	"github.com/nathoo/petcore/loader"
	"github.com/nathoo/petcore/logging"
	"github.com/nathoo/petcore/tui"
)

// collaborator is what a front end provides to the engine.
type collaborator interface {
	engine.Animator
	engine.Presenter
	engine.SceneChanger
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pet",
		Long: `Load the game data, restore the last save and run the pet. The
terminal UI is used when stdout is a terminal, the line-based driver
otherwise or with --plain.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPet(cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().String("script", "", "play chat lines from a file (implies --plain)")
	return cmd
}

func runPet(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	script, _ := cmd.Flags().GetString("script")
	plain := cfg.Plain || script != "" || !isTerminal()

	level, _ := logging.ParseLevel(cfg.LogLevel)
	var logOut io.Writer = cmd.ErrOrStderr()
	if !plain {
		// Log lines would tear the alternate screen.
		logOut = io.Discard
	}
	logger := logging.SetDefault("petcore", version, cfg.LogFormat, level, logOut)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defs, err := loader.Load(cfg.Game)
	if err != nil {
		return fmt.Errorf("loading game: %w", err)
	}

	var opts []store.Option
	if cfg.SaveBackend != config.BackendNone {
		persister, err := save.Open(ctx, cfg.SaveBackend, cfg.SavePath)
		if err != nil {
			return err
		}
		if c, ok := persister.(io.Closer); ok {
			defer c.Close()
		}
		opts = append(opts, store.WithPersister(persister), store.WithAutoSave(cfg.AutoSave))
	}
	opts = append(opts, store.WithVersion(defs.Game.Version), store.WithLogger(logger))
	st := store.New(opts...)

	if cfg.SaveBackend != config.BackendNone {
		restored, err := st.LoadAll(ctx)
		switch {
		case err != nil:
			logging.LogError(logger, "ignoring saved game", err)
		case restored:
			logger.Info("saved game restored", "backend", cfg.SaveBackend, "path", cfg.SavePath)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		if seed, err = rng.NewSeed(); err != nil {
			seed = time.Now().UnixNano()
		}
	}
	logger.Debug("rng seeded", "seed", seed)

	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	var front collaborator
	var bridge *tui.Bridge
	var printer *cli.Printer
	if plain {
		printer = cli.NewPrinter(cmd.OutOrStdout(), cfg.LineDelay)
		front = printer
	} else {
		bridge = tui.NewBridge(cfg.LineDelay)
		front = bridge
	}

	eng := engine.New(defs, st,
		engine.WithAnimator(front),
		engine.WithPresenter(front),
		engine.WithSceneChanger(front),
		engine.WithRNG(rng.NewRNG(seed)),
		engine.WithLogger(logger),
		engine.WithInterval(cfg.TaskInterval),
		engine.WithIdleInterval(cfg.IdleInterval),
		engine.WithMaxRetries(cfg.MaxRetries))
	eng.Start(ctx)
	defer shutdown(context.WithoutCancel(ctx), eng, st, cfg.SaveBackend != config.BackendNone, logger)

	if !plain {
		return tui.Run(ctx, eng, bridge)
	}

	c := cli.New(eng, printer)
	c.In = cmd.InOrStdin()
	if script != "" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
		c.Sync = true
	}
	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// shutdownTimeout bounds how long shutdown waits for an in-flight task.
const shutdownTimeout = 10 * time.Second

// shutdown stops eng, waits for the task it may be running and then, when
// persist is set, writes the final snapshot.
func shutdown(ctx context.Context, eng *engine.Engine, st *store.Store, persist bool, logger *slog.Logger) {
	eng.Destroy()
	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()
	select {
	case <-eng.Done():
	case <-timer.C:
		logger.Warn("engine still running a task at shutdown", "timeout", shutdownTimeout)
	}
	if !persist {
		return
	}
	if err := st.SaveAll(ctx); err != nil {
		logging.LogError(logger, "final save failed", err)
	}
}

// serveMetrics exposes the engine metrics on addr and returns a function
// that stops the server.
func serveMetrics(addr string) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	engine.RegisterMetrics(reg)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.With("addr", addr).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	slog.Info("metrics server started", "addr", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}, nil
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
