// Package normalize collapses extracted document text into a single linear
// string while preserving page-boundary markers, and answers which page is
// active at any character offset. Downstream segmentation works purely on
// the normalized form.
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pageMarkerPattern matches page-boundary markers inserted during text
// extraction, e.g. "[PAGE 12]" on its own line.
var pageMarkerPattern = regexp.MustCompile(`(?m)^\[PAGE (\d+)\]$`)

// crPattern strips carriage returns from CRLF sources.
var crPattern = regexp.MustCompile(`\r`)

// blankRunPattern collapses runs of three or more newlines down to two,
// so paragraph boundaries survive but extraction artifacts do not.
var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// pageBreak records the offset at which a page becomes active.
type pageBreak struct {
	offset int
	page   int
}

// Normalized is the linear text form consumed by the segmenter, plus the
// page index derived from boundary markers.
type Normalized struct {
	Text   string
	breaks []pageBreak
}

// Normalize joins per-page extracted text into one linear string with
// "[PAGE n]" markers between pages, 1-indexed in input order.
func Normalize(pages []string) Normalized {
	var sb strings.Builder
	for i, page := range pages {
		sb.WriteString("\n[PAGE ")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString("]\n")
		sb.WriteString(page)
	}
	return NormalizeText(sb.String())
}

// NormalizeText cleans already-linear text and indexes any page markers it
// contains. Sources without markers get page 0 for all offsets.
func NormalizeText(raw string) Normalized {
	text := crPattern.ReplaceAllString(raw, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	n := Normalized{Text: text}
	for _, m := range pageMarkerPattern.FindAllStringSubmatchIndex(text, -1) {
		page, _ := strconv.Atoi(text[m[2]:m[3]])
		n.breaks = append(n.breaks, pageBreak{offset: m[0], page: page})
	}
	return n
}

// PageAt returns the page active at a character offset, or 0 when the text
// carries no page markers or the offset precedes the first marker.
func (n Normalized) PageAt(offset int) int {
	i := sort.Search(len(n.breaks), func(i int) bool {
		return n.breaks[i].offset > offset
	})
	if i == 0 {
		return 0
	}
	return n.breaks[i-1].page
}

// Pages returns the highest page number seen, or 0 when unpaged.
func (n Normalized) Pages() int {
	if len(n.breaks) == 0 {
		return 0
	}
	max := 0
	for _, b := range n.breaks {
		if b.page > max {
			max = b.page
		}
	}
	return max
}
