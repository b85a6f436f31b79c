// Package extract parses fetched HTML into a title, visible text, and the raw
// links found on the page.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
)

// hiddenSelectors are removed before the visible text is collected.
const hiddenSelectors = "script, style, meta, noscript, template"

var wordPattern = regexp.MustCompile(`\b[a-zA-Z0-9]+\b`)

// Extractor implements crawler.Extractor using goquery.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses body and returns its title, collapsed visible text, and the
// href of every anchor in document order.
func (e *Extractor) Extract(body []byte) (crawler.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	out := crawler.Extraction{
		Title: pageTitle(doc),
		Links: anchorLinks(doc),
	}
	doc.Find(hiddenSelectors).Remove()
	out.Text = visibleText(doc.Selection)
	return out, nil
}

func pageTitle(doc *goquery.Document) string {
	return collapse(doc.Find("title").First().Text())
}

func anchorLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		links = append(links, href)
	})
	return links
}

// visibleText joins text nodes with spaces so adjacent block elements do not
// fuse their words together.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		writeText(&b, node)
	}
	return collapse(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "title" {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CountWords counts ASCII alphanumeric runs bounded by word boundaries.
func CountWords(text string) int {
	return len(wordPattern.FindAllStringIndex(text, -1))
}
