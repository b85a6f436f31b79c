// Package report renders a sealed crawl Summary as CSV, plain text, and
// markdown artifacts.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/urlnorm"
)

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatCSV      Format = "csv"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

const (
	// TopN bounds the category and page rankings.
	TopN = 10

	timestampLayout = "2006-01-02 15:04:05"
)

// ErrUnknownFormat is returned for a format name the package cannot render.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat converts a config string into a Format.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatText, FormatMarkdown:
		return f, nil
	case "txt":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
	}
}

// Artifact is one rendered report file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// CategoryStats aggregates pages of one category within a language.
type CategoryStats struct {
	Name  string
	Pages int
	Words int
}

// Average returns words per page.
func (c CategoryStats) Average() float64 {
	return average(c.Words, c.Pages)
}

// LanguageStats aggregates pages of one language.
type LanguageStats struct {
	Name       string
	Pages      int
	Words      int
	Categories []CategoryStats
}

// Average returns words per page.
func (l LanguageStats) Average() float64 {
	return average(l.Words, l.Pages)
}

// Analysis is the breakdown shared by the text and markdown reports.
type Analysis struct {
	Languages []LanguageStats
	TopPages  []crawler.PageResult
}

// Analyze groups the pages of a summary by language and category. Languages
// and categories are ordered by page count descending, then by name.
func Analyze(summary crawler.Summary) Analysis {
	type bucket struct {
		stats LanguageStats
		cats  map[string]*CategoryStats
	}
	byLang := make(map[string]*bucket)
	for _, page := range summary.Pages {
		b, ok := byLang[page.Language]
		if !ok {
			b = &bucket{stats: LanguageStats{Name: page.Language}, cats: make(map[string]*CategoryStats)}
			byLang[page.Language] = b
		}
		b.stats.Pages++
		b.stats.Words += page.WordCount
		c, ok := b.cats[page.Category]
		if !ok {
			c = &CategoryStats{Name: page.Category}
			b.cats[page.Category] = c
		}
		c.Pages++
		c.Words += page.WordCount
	}

	out := Analysis{Languages: make([]LanguageStats, 0, len(byLang))}
	for _, b := range byLang {
		cats := make([]CategoryStats, 0, len(b.cats))
		for _, c := range b.cats {
			cats = append(cats, *c)
		}
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].Pages != cats[j].Pages {
				return cats[i].Pages > cats[j].Pages
			}
			return cats[i].Name < cats[j].Name
		})
		if len(cats) > TopN {
			cats = cats[:TopN]
		}
		b.stats.Categories = cats
		out.Languages = append(out.Languages, b.stats)
	}
	sort.Slice(out.Languages, func(i, j int) bool {
		if out.Languages[i].Pages != out.Languages[j].Pages {
			return out.Languages[i].Pages > out.Languages[j].Pages
		}
		return out.Languages[i].Name < out.Languages[j].Name
	})

	pages := sortedPages(summary.Pages)
	if len(pages) > TopN {
		pages = pages[:TopN]
	}
	out.TopPages = pages
	return out
}

// Label returns the file name stem for a base URL: the first host label once
// a leading "www." is removed.
func Label(baseURL string) string {
	host := strings.ToLower(urlnorm.Host(baseURL))
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	label = strings.Trim(label, "[]")
	if label == "" {
		return "unknown"
	}
	return label
}

// Render produces one artifact per requested format.
func Render(summary crawler.Summary, formats []Format) ([]Artifact, error) {
	label := Label(summary.BaseURL)
	out := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		var (
			data []byte
			err  error
			art  Artifact
		)
		switch f {
		case FormatCSV:
			data, err = CSV(summary)
			art = Artifact{Name: label + ".csv", ContentType: "text/csv"}
		case FormatText:
			data, err = Text(summary)
			art = Artifact{Name: label + "_report.txt", ContentType: "text/plain"}
		case FormatMarkdown:
			data, err = Markdown(summary)
			art = Artifact{Name: label + "_report.md", ContentType: "text/markdown"}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f, err)
		}
		art.Data = data
		out = append(out, art)
	}
	return out, nil
}

// WriteDir writes artifacts under dir, creating it if needed, and returns the
// written paths.
func WriteDir(ctx context.Context, dir string, artifacts []Artifact) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("report directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	paths := make([]string, 0, len(artifacts))
	for _, art := range artifacts {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, art.Name)
		if err := os.WriteFile(path, art.Data, 0o600); err != nil {
			return paths, fmt.Errorf("write %s: %w", art.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func sortedPages(pages []crawler.PageResult) []crawler.PageResult {
	out := make([]crawler.PageResult, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WordCount != out[j].WordCount {
			return out[i].WordCount > out[j].WordCount
		}
		return out[i].URL < out[j].URL
	})
	return out
}

func baseLanguageName(summary crawler.Summary) string {
	return urlnorm.LanguageName(summary.BaseLanguage)
}

func average(words, pages int) float64 {
	if pages == 0 {
		return 0
	}
	return float64(words) / float64(pages)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
