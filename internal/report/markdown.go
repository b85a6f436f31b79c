package report

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// Markdown renders the report as GitHub-flavored markdown.
func Markdown(summary crawler.Summary) ([]byte, error) {
	analysis := Analyze(summary)
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	md.H1("Web Crawl Results")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Base URL", "`" + summary.BaseURL + "`"},
			{"Date", summary.FinishedAt.Format(timestampLayout)},
			{"Base Language", baseLanguageName(summary)},
			{"Pages Crawled", numbers.Sprintf("%d", summary.TotalPages)},
			{"Total Words", numbers.Sprintf("%d", summary.TotalWords)},
			{"Average Words/Page", averageCell(summary)},
		},
	})
	md.PlainText("")
	if summary.Canceled {
		md.Warningf("Crawl was interrupted after %d page(s); results are partial.", summary.TotalPages)
		md.PlainText("")
	}

	md.H2("Breakdown by Language")
	md.PlainText("")
	if len(analysis.Languages) == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
	} else {
		rows := make([][]string, 0, len(analysis.Languages))
		for _, lang := range analysis.Languages {
			rows = append(rows, statsRow(lang.Name, lang.Pages, lang.Words, lang.Average()))
		}
		md.Table(markdown.TableSet{Header: statsHeader("Language"), Rows: rows})
		md.PlainText("")

		for _, lang := range analysis.Languages {
			md.H3("Categories - " + lang.Name)
			md.PlainText("")
			rows := make([][]string, 0, len(lang.Categories))
			for _, cat := range lang.Categories {
				rows = append(rows, statsRow(capitalize(cat.Name), cat.Pages, cat.Words, cat.Average()))
			}
			md.Table(markdown.TableSet{Header: statsHeader("Category"), Rows: rows})
			md.PlainText("")
		}
	}

	if len(analysis.TopPages) > 0 {
		md.H2(fmt.Sprintf("Top %d Pages by Word Count", TopN))
		md.PlainText("")
		rows := make([][]string, 0, len(analysis.TopPages))
		for i, page := range analysis.TopPages {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				numbers.Sprintf("%d", page.WordCount),
				page.Language,
				page.Category,
				page.URL,
			})
		}
		md.Table(markdown.TableSet{Header: []string{"#", "Words", "Language", "Category", "URL"}, Rows: rows})
		md.PlainText("")
	}

	md.H2("Word Count by Page")
	md.PlainText("")
	pages := sortedPages(summary.Pages)
	lines := make([]string, 0, len(pages))
	for _, page := range pages {
		lines = append(lines, pageLine(page))
	}
	if len(lines) > 0 {
		md.BulletList(lines...)
	}

	if err := md.Build(); err != nil {
		return nil, fmt.Errorf("build markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func statsHeader(first string) []string {
	return []string{first, "Pages", "Total Words", "Avg Words/Page"}
}

func statsRow(name string, pages, words int, avg float64) []string {
	return []string{
		name,
		numbers.Sprintf("%d", pages),
		numbers.Sprintf("%d", words),
		strconv.FormatFloat(avg, 'f', 1, 64),
	}
}

func averageCell(summary crawler.Summary) string {
	if summary.TotalPages == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(summary.AverageWords(), 'f', 1, 64)
}
