package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

var numbers = message.NewPrinter(language.English)

const rule = "============================================================"

// Text renders the plain-text report.
func Text(summary crawler.Summary) ([]byte, error) {
	analysis := Analyze(summary)
	var b bytes.Buffer

	fmt.Fprintf(&b, "Web Crawl Results for %s\n%s\n\n", summary.BaseURL, rule)
	fmt.Fprintf(&b, "Date: %s\n", summary.FinishedAt.Format(timestampLayout))
	fmt.Fprintf(&b, "Base language (from domain): %s\n", baseLanguageName(summary))
	if summary.Canceled {
		b.WriteString("Status: interrupted, partial results\n")
	}
	fmt.Fprintf(&b, "Total pages crawled: %s\n", numbers.Sprintf("%d", summary.TotalPages))
	fmt.Fprintf(&b, "Total words found: %s\n", numbers.Sprintf("%d", summary.TotalWords))
	if summary.TotalPages > 0 {
		fmt.Fprintf(&b, "Average words per page: %.1f\n", summary.AverageWords())
	} else {
		b.WriteString("Average words per page: N/A\n")
	}

	if len(analysis.Languages) > 0 {
		section(&b, "BREAKDOWN BY LANGUAGE")
		t := newTable()
		t.AppendHeader(table.Row{"Language", "Pages", "Total Words", "Avg Words/Page"})
		for _, lang := range analysis.Languages {
			t.AppendRow(table.Row{lang.Name, lang.Pages, lang.Words, lang.Average()})
		}
		b.WriteString(t.Render())
		b.WriteByte('\n')

		for _, lang := range analysis.Languages {
			section(&b, "BREAKDOWN BY CATEGORY - "+lang.Name)
			t := newTable()
			t.AppendHeader(table.Row{"Category", "Pages", "Total Words", "Avg Words/Page"})
			for _, cat := range lang.Categories {
				t.AppendRow(table.Row{capitalize(cat.Name), cat.Pages, cat.Words, cat.Average()})
			}
			b.WriteString(t.Render())
			b.WriteByte('\n')
		}
	}

	if len(analysis.TopPages) > 0 {
		section(&b, fmt.Sprintf("TOP %d PAGES BY WORD COUNT", TopN))
		for i, page := range analysis.TopPages {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, pageLine(page))
		}
	}

	section(&b, "Word count by page:")
	for _, page := range sortedPages(summary.Pages) {
		b.WriteString(pageLine(page))
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

func section(b *bytes.Buffer, title string) {
	fmt.Fprintf(b, "\n%s\n%s\n%s\n\n", rule, title, rule)
}

func pageLine(page crawler.PageResult) string {
	return numbers.Sprintf("%d words [%s] [%s] - %s", page.WordCount, page.Language, page.Category, page.URL)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, Transformer: thousands},
		{Number: 3, Align: text.AlignRight, Transformer: thousands},
		{Number: 4, Align: text.AlignRight, Transformer: oneDecimal},
	})
	return t
}

func thousands(v any) string {
	if n, ok := v.(int); ok {
		return numbers.Sprintf("%d", n)
	}
	return fmt.Sprint(v)
}

func oneDecimal(v any) string {
	if f, ok := v.(float64); ok {
		return strings.TrimSpace(fmt.Sprintf("%.1f", f))
	}
	return fmt.Sprint(v)
}
