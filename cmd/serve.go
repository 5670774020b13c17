package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frewsxcv/template-tally/internal/monitoring"
	"github.com/frewsxcv/template-tally/internal/renderer"
	"github.com/frewsxcv/template-tally/internal/server"
	"github.com/frewsxcv/template-tally/internal/websocket"
)

func newServeCmd() *cobra.Command {
	var flags *StandardFlags

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Serve views, the admin API and the render report",
		Long: `Start an HTTP server that renders the views directory through the host
renderer, tracking every template and partial it renders.

Routes:
  /views/{path}               Render a view
  /report                     HTML render report
  /api/report                 JSON render report
  /api/templates/rendered     Rendered templates
  /api/templates/unrendered   Unrendered templates
  /ws/renders                 Live render events
  /health                     Health check

Examples:
  tally serve                 # Serve on localhost:8080
  tally serve --port 3000     # Custom port
  tally serve --host 0.0.0.0  # Listen on all interfaces`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
	flags = AddStandardFlags(cmd, "server")

	return cmd
}

func runServe(cmd *cobra.Command, flags *StandardFlags) error {
	if err := flags.ValidateFlags(cmd); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := newServer(ctx, cmd, a, flags)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", a.config.Server.ViewsDir, srv.Addr())
	return srv.Start(ctx)
}

// newServer wires the host renderer and the render feed to the app's bus.
func newServer(ctx context.Context, cmd *cobra.Command, a *app, flags *StandardFlags) (*server.Server, error) {
	serverConfig := a.config.Server
	if cmd.Flags().Changed("host") {
		serverConfig.Host = flags.Host
	}
	if cmd.Flags().Changed("port") {
		serverConfig.Port = flags.Port
	}

	hub := websocket.NewHub(
		websocket.WithLogger(a.logger),
		websocket.WithIdentifier(a.tracker.Identify),
		websocket.WithOriginPatterns(serverConfig.AllowedOrigins...),
	)
	a.subscribe(hub.Publish)

	viewsDir := filepath.Join(a.root, serverConfig.ViewsDir)
	views, err := renderer.NewViewRenderer(viewsDir, a.bus, renderer.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("creating view renderer: %w", err)
	}

	a.logger.Info(ctx, "Host renderer ready", "views", viewsDir)

	return server.New(serverConfig, a.tracker,
		server.WithLogger(a.logger),
		server.WithViews(views),
		server.WithFeed(hub),
		server.WithHealth(newHealthMonitor(a)),
	), nil
}

func newHealthMonitor(a *app) *monitoring.HealthMonitor {
	hm := monitoring.NewHealthMonitor(a.logger)
	if pinger, ok := a.store.(monitoring.Pinger); ok {
		hm.RegisterCheck(monitoring.StoreHealthChecker(pinger))
	}
	hm.RegisterCheck(monitoring.DiscoveryHealthChecker(a.scanner))
	hm.RegisterCheck(monitoring.GoroutineHealthChecker())
	return hm
}
