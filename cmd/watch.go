package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frewsxcv/template-tally/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		flags    *StandardFlags
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Reprint unrendered templates when template files change",
		Long: `Print the unrendered templates, then watch the root for template files
being added, changed or removed and print the list again after each batch of
changes.

Examples:
  tally watch                  # Table output
  tally watch -q               # Identifiers only
  tally watch --debounce 1s    # Wait longer for changes to settle`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, debounce)
		},
	}
	flags = AddStandardFlags(cmd, "output")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "Delay before a batch of changes is reported")

	return cmd
}

func runWatch(cmd *cobra.Command, flags *StandardFlags, debounce time.Duration) error {
	if err := flags.ValidateFlags(cmd); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if debounce <= 0 {
		return fmt.Errorf("invalid flags: debounce must be positive, got %s", debounce)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if err := printUnrendered(ctx, out, a, flags); err != nil {
		return err
	}

	w, err := watcher.New(a.root, a.scanner, debounce, watcher.WithLogger(a.logger))
	if err != nil {
		return err
	}
	w.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, event := range events {
			a.logger.Info(ctx, "Template changed", "template", event.Template.String(), "change", event.Type.String())
		}
		return printUnrendered(ctx, out, a, flags)
	})

	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()

	<-ctx.Done()
	return nil
}

func printUnrendered(ctx context.Context, w io.Writer, a *app, flags *StandardFlags) error {
	ids, err := a.tracker.UnrenderedTemplates(ctx)
	if err != nil {
		return fmt.Errorf("listing unrendered templates: %w", err)
	}
	return outputTemplates(w, flags, statusUnrendered, ids)
}
