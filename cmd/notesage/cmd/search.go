package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/notesage/notesage/internal/index"
	"github.com/notesage/notesage/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit         int
	keyword       bool
	hybrid        bool
	caseSensitive bool
	format        string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search notes semantically or by keyword",
		Long: `Search the indexed notes.

By default the query is embedded and matched against note embeddings
(semantic search). With --keyword the query is treated as a literal
substring and matched against note text with context snippets. With
--hybrid both searches run in parallel and both result sets are printed.

Examples:
  notesage search "ideas about spaced repetition"
  notesage search --keyword "sqlite" --limit 10
  notesage search --hybrid "gardening"
  notesage search "gardening" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			coord, cfg, err := openCoordinator()
			if err != nil {
				return err
			}
			defer func() { _ = coord.Close() }()

			limit := opts.limit
			if limit <= 0 {
				limit = cfg.Search.MaxResults
			}

			out := output.New(cmd.OutOrStdout())

			switch {
			case opts.hybrid:
				return runHybridSearch(cmd, coord, out, query, limit, opts)
			case opts.keyword:
				results, err := coord.KeywordSearch(cmd.Context(), query, opts.caseSensitive)
				if err != nil {
					return err
				}
				return renderKeywordResults(cmd, out, query, results, opts.format)
			default:
				results, err := coord.SemanticSearch(cmd.Context(), query, limit)
				if err != nil {
					return err
				}
				return renderSemanticResults(cmd, out, query, results, opts.format)
			}
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (semantic only)")
	cmd.Flags().BoolVarP(&opts.keyword, "keyword", "k", false, "Literal substring search instead of semantic")
	cmd.Flags().BoolVar(&opts.hybrid, "hybrid", false, "Run semantic and keyword search in parallel")
	cmd.Flags().BoolVar(&opts.caseSensitive, "case-sensitive", false, "Case-sensitive matching (keyword only)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// runHybridSearch runs both search legs concurrently and prints both
// result sets. Either leg failing fails the whole query.
func runHybridSearch(cmd *cobra.Command, coord *index.Coordinator, out *output.Writer, query string, limit int, opts searchOptions) error {
	var (
		semantic []index.SemanticResult
		keyword  []index.KeywordResult
	)

	g, gctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		semantic, err = coord.SemanticSearch(gctx, query, limit)
		return err
	})
	g.Go(func() error {
		var err error
		keyword, err = coord.KeywordSearch(gctx, query, opts.caseSensitive)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Semantic []index.SemanticResult `json:"semantic"`
			Keyword  []index.KeywordResult  `json:"keyword"`
		}{semantic, keyword})
	}

	if err := renderSemanticResults(cmd, out, query, semantic, opts.format); err != nil {
		return err
	}
	return renderKeywordResults(cmd, out, query, keyword, opts.format)
}

func renderSemanticResults(cmd *cobra.Command, out *output.Writer, query string, results []index.SemanticResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		out.Statusf("", "%d. %s %s", i+1, out.Bold(title), out.Dim(fmt.Sprintf("(similarity: %.3f)", r.Similarity)))
		out.Status("", "   "+out.Dim(r.Path))
		if r.Preview != "" {
			out.Status("", "   "+r.Preview)
		}
		out.Newline()
	}
	return nil
}

func renderKeywordResults(cmd *cobra.Command, out *output.Writer, query string, results []index.KeywordResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d notes containing %q:", len(results), query)
	out.Newline()
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		out.Statusf("", "%d. %s", i+1, out.Bold(title))
		out.Status("", "   "+out.Dim(r.Path))
		for _, snippet := range r.Snippets {
			out.Status("", "   "+snippet)
		}
		out.Newline()
	}
	return nil
}
