package catalog

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"
)

// ParseText reads one entry per line. Blank lines and lines starting with
// '#' are ignored. A line may carry a name and category after the address,
// separated by commas.
func ParseText(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, ",", 3)
		e := Entry{URL: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			e.Name = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			e.Category = strings.TrimSpace(fields[2])
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return entries, nil
}

// yamlCatalog is the YAML list layout.
//
//	targets:
//	  - url: example.com
//	    name: Example
//	    category: news
//	categories:
//	  social:
//	    - example.social
type yamlCatalog struct {
	Targets    []Entry             `yaml:"targets"`
	Categories map[string][]string `yaml:"categories"`
}

// ParseYAML decodes a YAML target list. Entries under "categories" take
// the category from their key; the map is walked in key order.
func ParseYAML(data []byte) ([]Entry, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	entries := append([]Entry(nil), doc.Targets...)
	for _, category := range sortedKeys(doc.Categories) {
		for _, u := range doc.Categories[category] {
			entries = append(entries, Entry{URL: u, Category: category})
		}
	}
	return entries, nil
}

// ParseBookmarks extracts links from a Netscape bookmark export. The name
// of the innermost enclosing folder becomes the category.
func ParseBookmarks(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		folders []string

		pendingFolder string
		inFolderTitle bool
		folderTitle   strings.Builder

		current   *Entry
		linkTitle strings.Builder
	)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return entries, nil
			}
			return nil, z.Err()

		case html.StartTagToken:
			tag := z.Token()
			switch tag.DataAtom {
			case atom.H3:
				inFolderTitle = true
				folderTitle.Reset()
			case atom.Dl:
				folders = append(folders, pendingFolder)
				pendingFolder = ""
			case atom.A:
				href := attr(tag, "href")
				if !strings.HasPrefix(strings.ToLower(href), "http") {
					continue
				}
				current = &Entry{URL: href}
				if len(folders) > 0 {
					current.Category = folders[len(folders)-1]
				}
				linkTitle.Reset()
			}

		case html.TextToken:
			switch {
			case inFolderTitle:
				folderTitle.Write(z.Text())
			case current != nil:
				linkTitle.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.H3:
				inFolderTitle = false
				pendingFolder = strings.TrimSpace(folderTitle.String())
			case atom.Dl:
				if len(folders) > 0 {
					folders = folders[:len(folders)-1]
				}
			case atom.A:
				if current != nil {
					current.Name = strings.TrimSpace(linkTitle.String())
					entries = append(entries, *current)
					current = nil
				}
			}
		}
	}
}

func attr(t html.Token, key string) string {
	for _, a := range t.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
