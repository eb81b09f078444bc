package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/note"
	"github.com/notesage/notesage/internal/output"
)

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	var tag string
	var recent int
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed notes",
		Long: `List indexed notes, optionally filtered by tag.

With --recent N, lists the N most recently modified notes instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			coord, _, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			var docs []*note.Document
			if recent > 0 {
				docs = coord.RecentDocuments(recent)
			} else {
				docs = coord.ListDocuments(tag)
			}

			if format == "json" {
				type entry struct {
					ID       string    `json:"id"`
					Title    string    `json:"title,omitempty"`
					Path     string    `json:"path"`
					Tags     []string  `json:"tags,omitempty"`
					Modified time.Time `json:"modified,omitempty"`
				}
				entries := make([]entry, 0, len(docs))
				for _, doc := range docs {
					entries = append(entries, entry{
						ID:       doc.ID,
						Title:    doc.Metadata.Title,
						Path:     doc.Path,
						Tags:     doc.Metadata.Tags,
						Modified: doc.Metadata.Modified,
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			out := output.New(cmd.OutOrStdout())
			if len(docs) == 0 {
				out.Status("", "No notes found")
				return nil
			}
			for _, doc := range docs {
				title := doc.Metadata.Title
				if title == "" {
					title = doc.ID
				}
				out.Statusf("", "%s %s", out.Bold(title), out.Dim(doc.Path))
			}
			out.Newline()
			out.Statusf("", "%d notes", len(docs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Filter by tag")
	cmd.Flags().IntVar(&recent, "recent", 0, "Show only the N most recently modified notes")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
