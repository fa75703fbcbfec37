package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/hostbridge/internal/api"
	"github.com/Iron-Ham/hostbridge/internal/bridge"
	"github.com/Iron-Ham/hostbridge/internal/config"
	"github.com/Iron-Ham/hostbridge/internal/event"
	"github.com/Iron-Ham/hostbridge/internal/lifecycle"
	"github.com/Iron-Ham/hostbridge/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run a headless host and print stream updates",
	Long: `Start the bridge against the configured endpoint and print graph state,
connection status, workspace token refreshes and matching bus events until
interrupted.

The config file is watched while monitoring: a changed endpoint restarts the
graph, and a changed in-flight limit or event pattern list applies in place.

Examples:
  # Monitor until Ctrl+C
  hostbridge monitor

  # Monitor for thirty seconds against the loopback remote
  HOSTBRIDGE_ENDPOINT_URL=loopback://local HOSTBRIDGE_ENDPOINT_WORKSPACE=demo \
    hostbridge monitor --duration 30s`,
	RunE: runMonitor,
}

var (
	monitorDuration time.Duration
	monitorNoWatch  bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().DurationVarP(&monitorDuration, "duration", "d", 0, "Stop after this long (0 runs until interrupted)")
	monitorCmd.Flags().BoolVar(&monitorNoWatch, "no-watch", false, "Do not reload the config file when it changes")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchPath := ""
	if !monitorNoWatch {
		watchPath = viper.ConfigFileUsed()
	}
	return monitor(ctx, cfg, monitorOptions{
		out:       newPrinter(cmd.OutOrStdout()),
		duration:  monitorDuration,
		watchPath: watchPath,
	})
}

type monitorOptions struct {
	out       *printer
	duration  time.Duration
	watchPath string
	bridge    []bridge.Option
}

// monitor runs a headless host until ctx is done or opts.duration elapses.
func monitor(ctx context.Context, cfg *config.Config, opts monitorOptions) error {
	if cfg.Endpoint.IsZero() {
		return fmt.Errorf("no endpoint configured\nRun 'hostbridge config set endpoint.url <url>' and 'hostbridge config set endpoint.workspace <name>'")
	}
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	h, err := newHost(cfg, opts.bridge...)
	if err != nil {
		return err
	}
	defer h.Close()

	out := opts.out
	h.logEvents(out)

	states := h.bridge.States()
	states.Subscribe(func(s lifecycle.State) {
		out.Printf("%s  state %s\n", stamp(), s)
	})
	defer states.Dispose()

	if err := h.bridge.Start(ctx); err != nil {
		return err
	}
	attachGraphStreams(h.bridge, out)

	if opts.watchPath != "" {
		w, err := config.NewWatcher(opts.watchPath, func(next *config.Config, err error) {
			if err != nil {
				out.Printf("%s  config rejected: %v\n", stamp(), err)
				return
			}
			if err := h.applyConfig(ctx, opts.watchPath, next); err != nil {
				out.Printf("%s  reconfigure failed: %v\n", stamp(), err)
			}
			if h.bridge.State() == lifecycle.StateStarted {
				attachGraphStreams(h.bridge, out)
			}
		}, config.WithWatcherLogger(h.logger))
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		w.Start()
		defer w.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.serveMetrics(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// attachGraphStreams subscribes to the streams owned by the current graph.
// They are disposed with it, so this runs again after every restart.
func attachGraphStreams(b *bridge.Bridge, out *printer) {
	conn := b.Connection()
	conn.Subscribe(func(s session.Status) {
		out.Printf("%s  connection %s\n", stamp(), s)
	})

	token := b.WorkspaceToken()
	token.Subscribe(func(t api.Token) {
		if t.IsZero() {
			return
		}
		out.Printf("%s  token for %s valid until %s\n", stamp(), t.Workspace, t.ExpiresAt.Format(time.TimeOnly))
	})

	auth := b.AuthInvalid()
	auth.Subscribe(func(e event.AuthInvalidEvent) {
		out.Printf("%s  credentials rejected for %s; update endpoint.api_key\n", stamp(), e.Workspace)
	})
}

func stamp() string {
	return time.Now().Format(time.TimeOnly)
}
