package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/output"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index all notes in the notes directory",
		Long: `Walk the notes directory and (re)index every markdown note.

Unchanged notes are detected by content hash and skipped, so repeated
runs are cheap. Notes whose files vanished are removed from the index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			coord, cfg, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			out.Statusf("🔍", "Indexing notes in %s", cfg.Paths.NotesDir)

			result, err := coord.TriggerFullReindex(cmd.Context())
			if err != nil {
				return err
			}

			out.Successf("Indexed %d notes in %s", result.Indexed, result.Duration.Round(1e6))
			if result.Removed > 0 {
				out.Statusf("", "Removed %d deleted notes", result.Removed)
			}
			if len(result.Failed) > 0 {
				out.Warning("Some notes failed to index:")
				ids := make([]string, 0, len(result.Failed))
				for id := range result.Failed {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					out.Statusf("", "%s: %v", id, result.Failed[id])
				}
			}
			return nil
		},
	}

	return cmd
}
