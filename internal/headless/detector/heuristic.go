// Package detector decides whether a site needs a rendering fetcher.
package detector

import (
	"bytes"
	"strings"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/extract"
)

const (
	defaultBodyThreshold = 2048
	defaultMinWords      = 20
	scriptCoveragePct    = 25
)

// Heuristic promotes pages whose static HTML looks like an empty shell that
// scripts fill in after load.
type Heuristic struct {
	// BodyLengthThreshold is the size under which script-heavy bodies promote.
	BodyLengthThreshold int
	// MinWords is the visible word count under which an app-shell marker promotes.
	MinWords int

	extractor crawler.Extractor
}

// NewHeuristic creates a detector. Zero values fall back to defaults.
func NewHeuristic(bodyThreshold, minWords int) *Heuristic {
	if bodyThreshold <= 0 {
		bodyThreshold = defaultBodyThreshold
	}
	if minWords <= 0 {
		minWords = defaultMinWords
	}
	return &Heuristic{
		BodyLengthThreshold: bodyThreshold,
		MinWords:            minWords,
		extractor:           extract.New(),
	}
}

var appShellMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote reports whether the probe response needs a headless fetch.
func (h *Heuristic) ShouldPromote(probe crawler.FetchResponse) bool {
	if !crawler.IsSuccess(probe.StatusCode) {
		return false
	}
	body := probe.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	if !hasAppShellMarker(body) {
		return false
	}
	return h.visibleWords(body) < h.MinWords
}

func (h *Heuristic) visibleWords(body []byte) int {
	out, err := h.extractor.Extract(body)
	if err != nil {
		return 0
	}
	return extract.CountWords(out.Text)
}

func hasAppShellMarker(body []byte) bool {
	for _, marker := range appShellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh reports whether script elements cover at least a quarter
// of the document. An unterminated script counts through the end of the body.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagEnd + 1

		end := total
		if relEnd := strings.Index(lower[contentStart:], closeTag); relEnd != -1 {
			end = contentStart + relEnd + len(closeTag)
		}
		covered += end - start
		pos = end
	}
	return covered*100/total >= scriptCoveragePct
}
