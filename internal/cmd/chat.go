package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Iron-Ham/hostbridge/internal/config"
	"github.com/Iron-Ham/hostbridge/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat host",
	Long: `Start the bridge against the configured endpoint and open a terminal UI
for creating sessions and exchanging messages. Graph state, connection
status and the workspace token are shown in the header.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// isInteractive reports whether both stdin and stdout are terminals.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func runChat(cmd *cobra.Command, args []string) error {
	if !isInteractive() {
		return fmt.Errorf("chat requires an interactive terminal\nUse 'hostbridge monitor' for a headless host")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Endpoint.IsZero() {
		return fmt.Errorf("no endpoint configured\nRun 'hostbridge config set endpoint.url <url>' and 'hostbridge config set endpoint.workspace <name>'")
	}

	h, err := newHost(cfg)
	if err != nil {
		return err
	}
	defer h.Close()

	if width, height, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		h.logger.Debug("terminal size", "width", width, "height", height)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := h.serveMetrics(ctx); err != nil {
			h.logger.Warn("metrics server failed", "error", err)
		}
	}()

	if err := h.bridge.Start(ctx); err != nil {
		return err
	}

	app := tui.New(h.bridge, cfg.Endpoint.Workspace)
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
