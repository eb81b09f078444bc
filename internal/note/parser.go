package note

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	sageerr "github.com/notesage/notesage/internal/errors"
)

var (
	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.+?)\r?\n---\r?\n?`)

	// Matches wiki-style links: [[target]]
	wikiLinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)
)

// Parse builds a Document from raw note bytes.
// Malformed frontmatter degrades to plain-text treatment: the whole file
// becomes the body and the parse error is recorded on the document.
func Parse(path string, content []byte, modTime time.Time) *Document {
	doc := &Document{
		ID:          IDForPath(path),
		Path:        path,
		ContentHash: HashContent(content),
		Metadata: Metadata{
			Modified: modTime,
		},
	}

	body := string(content)

	if m := frontmatterPattern.FindStringSubmatch(body); m != nil {
		meta, err := parseFrontmatter([]byte(m[1]))
		if err != nil {
			doc.ParseErr = sageerr.ParseError(
				fmt.Sprintf("frontmatter in %s", path), err)
		} else {
			meta.Modified = modTime
			doc.Metadata = meta
			body = body[len(m[0]):]
		}
	}

	doc.RawText = body
	doc.Links = extractLinks(body)

	return doc
}

// parseFrontmatter decodes YAML frontmatter into the fixed schema.
// Recognized keys are validated; everything else lands in Extra.
func parseFrontmatter(raw []byte) (Metadata, error) {
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return Metadata{}, err
	}

	meta := Metadata{}

	for key, value := range fields {
		switch key {
		case "title":
			s, ok := value.(string)
			if !ok {
				return Metadata{}, fmt.Errorf("title must be a string, got %T", value)
			}
			meta.Title = s
		case "tags":
			tags, err := toStringSlice(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("tags: %w", err)
			}
			meta.Tags = tags
		case "created":
			t, err := toTime(value)
			if err != nil {
				return Metadata{}, fmt.Errorf("created: %w", err)
			}
			meta.Created = t
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]any)
			}
			meta.Extra[key] = value
		}
	}

	return meta, nil
}

// toStringSlice accepts a YAML list of strings or a single string.
func toStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", value)
	}
}

// toTime accepts time.Time (yaml date) or an RFC3339 / date-only string.
func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unrecognized time format %q", v)
	default:
		return time.Time{}, fmt.Errorf("expected timestamp, got %T", value)
	}
}

// extractLinks returns all wiki-style link targets in order of appearance,
// deduplicated.
func extractLinks(body string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		target := m[1]
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, target)
	}
	return links
}
