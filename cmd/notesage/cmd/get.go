package cmd

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/notesage/notesage/internal/output"
)

// newGetCmd creates the get command.
func newGetCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get <note-id>",
		Short: "Show a note's content and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, _, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			doc, err := coord.GetDocument(args[0])
			if err != nil {
				return err
			}

			if format == "json" {
				payload := struct {
					ID       string    `json:"id"`
					Path     string    `json:"path"`
					Title    string    `json:"title,omitempty"`
					Tags     []string  `json:"tags,omitempty"`
					Created  time.Time `json:"created,omitempty"`
					Modified time.Time `json:"modified,omitempty"`
					Links    []string  `json:"links,omitempty"`
					Content  string    `json:"content"`
				}{
					ID:       doc.ID,
					Path:     doc.Path,
					Title:    doc.Metadata.Title,
					Tags:     doc.Metadata.Tags,
					Created:  doc.Metadata.Created,
					Modified: doc.Metadata.Modified,
					Links:    doc.Links,
					Content:  doc.RawText,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			out := output.New(cmd.OutOrStdout())
			title := doc.Metadata.Title
			if title == "" {
				title = doc.ID
			}
			out.Status("📝", out.Bold(title))
			out.Status("", out.Dim(doc.Path))
			if len(doc.Metadata.Tags) > 0 {
				out.Statusf("", "Tags: %s", strings.Join(doc.Metadata.Tags, ", "))
			}
			if len(doc.Links) > 0 {
				out.Statusf("", "Links: %s", strings.Join(doc.Links, ", "))
			}
			out.Code(doc.RawText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")

	return cmd
}
