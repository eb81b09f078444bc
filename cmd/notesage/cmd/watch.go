package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/output"
	"github.com/notesage/notesage/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the notes directory and keep the index current",
		Long: `Run an initial index, then watch the notes directory for changes and
update the index incrementally. Bursts of rapid saves are debounced so
each note is indexed once per burst. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := output.New(cmd.OutOrStdout())

			coord, cfg, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			if !skipInitial {
				out.Statusf("🔍", "Indexing notes in %s", cfg.Paths.NotesDir)
				result, err := coord.TriggerFullReindex(ctx)
				if err != nil {
					return err
				}
				out.Successf("Indexed %d notes", result.Indexed)
			}

			w, err := watcher.NewNotesWatcher(watcher.Options{
				DebounceWindow:  cfg.Watch.DebounceWindow,
				EventBufferSize: cfg.Watch.EventBufferSize,
			})
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			go func() {
				for err := range w.Errors() {
					slog.Warn("watcher error", slog.String("error", err.Error()))
				}
			}()

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- w.Start(ctx, cfg.Paths.NotesDir)
			}()

			out.Statusf("👀", "Watching %s for changes (Ctrl-C to stop)", cfg.Paths.NotesDir)

			runErr := coord.Run(ctx, w.Events())
			if err := <-watchErr; err != nil && !isContextErr(err) {
				return err
			}
			if runErr != nil && !isContextErr(runErr) {
				return runErr
			}

			out.Newline()
			out.Success("Stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Skip the initial full index")

	return cmd
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
