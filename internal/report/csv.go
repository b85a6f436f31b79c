package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

var csvHeader = []string{"url", "html2text", "page_title", "timestamp"}

// CSV renders the page listing. The first row carries the base URL, the
// finish time, and an empty technologies column; the second row is the
// header. Pages follow in word-count order.
func CSV(summary crawler.Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := make([][]string, 0, len(summary.Pages)+2)
	rows = append(rows,
		[]string{summary.BaseURL, summary.FinishedAt.Format(timestampLayout), ""},
		csvHeader,
	)
	for _, page := range sortedPages(summary.Pages) {
		rows = append(rows, []string{page.URL, page.Text, page.Title, page.FetchedAt.Format(timestampLayout)})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
