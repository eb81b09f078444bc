package cmd

import (
	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/output"
)

// newSimilarCmd creates the similar command.
func newSimilarCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "similar <note-id>",
		Short: "Find notes similar to an existing note",
		Long: `Find the notes nearest to the given note in embedding space.

The note id is its file name without extension, the same name used in
[[wiki links]]. The note itself never appears in its own results.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, cfg, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			if limit <= 0 {
				limit = cfg.Search.MaxResults
			}

			results, err := coord.FindSimilar(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			return renderSemanticResults(cmd, out, args[0], results, format)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
