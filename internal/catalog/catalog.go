// Package catalog turns user-supplied target lists into normalized targets.
//
// Three input formats are understood:
//   - plain text, one address per line, optionally "url, name, category"
//   - YAML, either a flat "targets" list or a "categories" map
//   - a browser bookmark export (Netscape bookmark HTML); folder names
//     become categories
//
// Addresses without a scheme get "https://". Duplicates (after
// normalization) keep their first occurrence.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/histprobe/internal/model"
)

// Format is a target list encoding.
type Format string

const (
	// FormatText is one address per line.
	FormatText Format = "text"

	// FormatYAML is a YAML document.
	FormatYAML Format = "yaml"

	// FormatBookmarks is a Netscape bookmark export.
	FormatBookmarks Format = "bookmarks"
)

// ErrEmptyCatalog is returned when a list yields no usable target.
var ErrEmptyCatalog = errors.New("target list contains no usable address")

// Entry is one raw list item before normalization.
type Entry struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name,omitempty"`
	Category string `yaml:"category,omitempty"`
}

// Rejection records an entry that could not become a target.
type Rejection struct {
	Entry Entry
	Err   error
}

// Result is the outcome of building targets from entries.
type Result struct {
	Targets    []model.Target
	Rejected   []Rejection
	Duplicates int
}

// DetectFormat picks a format from the file extension, falling back to
// sniffing the content.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".html", ".htm":
		return FormatBookmarks
	}

	head := bytes.ToLower(bytes.TrimSpace(data[:min(len(data), 512)]))
	switch {
	case bytes.HasPrefix(head, []byte("<!doctype netscape-bookmark-file")),
		bytes.HasPrefix(head, []byte("<html")),
		bytes.Contains(head, []byte("<dl>")):
		return FormatBookmarks
	case bytes.HasPrefix(head, []byte("targets:")),
		bytes.HasPrefix(head, []byte("categories:")),
		bytes.HasPrefix(head, []byte("---")):
		return FormatYAML
	default:
		return FormatText
	}
}

// Parse decodes data in the given format.
func Parse(format Format, data []byte) ([]Entry, error) {
	switch format {
	case FormatYAML:
		return ParseYAML(data)
	case FormatBookmarks:
		return ParseBookmarks(bytes.NewReader(data))
	case FormatText:
		return ParseText(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown target list format %q", format)
	}
}

// LoadFile reads a target list file and builds targets from it.
func LoadFile(path string) (Result, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read target list: %w", err)
	}

	entries, err := Parse(DetectFormat(path, data), data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return Build(entries)
}

// FromArgs builds targets from command-line addresses.
func FromArgs(args []string) (Result, error) {
	entries := make([]Entry, 0, len(args))
	for _, a := range args {
		entries = append(entries, Entry{URL: a})
	}
	return Build(entries)
}

// Build normalizes entries into targets, dropping duplicates and recording
// invalid addresses. It fails only when nothing usable is left.
func Build(entries []Entry) (Result, error) {
	var res Result
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		raw := strings.TrimSpace(e.URL)
		if raw == "" {
			continue
		}

		normalized, err := model.NormalizeURL(raw)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Entry: e, Err: err})
			continue
		}
		if seen[normalized] {
			res.Duplicates++
			continue
		}
		seen[normalized] = true

		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = DisplayName(normalized)
		}
		target, err := model.NewTarget("", normalized, name, NormalizeCategory(e.Category))
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Entry: e, Err: err})
			continue
		}
		res.Targets = append(res.Targets, target)
	}

	if len(res.Targets) == 0 {
		return res, ErrEmptyCatalog
	}
	return res, nil
}

// title returns s in title case. A Caser keeps state, so each call gets
// its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// DisplayName derives a readable name from a normalized URL:
// "https://www.example-news.co.uk/" becomes "Example-News".
func DisplayName(normalizedURL string) string {
	host := normalizedURL
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host, _, _ = strings.Cut(host, "/")
	host, _, _ = strings.Cut(host, ":")
	host = strings.TrimPrefix(host, "www.")

	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return host
	}
	return title(label)
}

// NormalizeCategory lowercases and trims a category so "News " and "news"
// group together.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// CategoryTitle returns the display form of a normalized category.
func CategoryTitle(category string) string {
	if category == "" {
		return "Uncategorized"
	}
	return title(category)
}
