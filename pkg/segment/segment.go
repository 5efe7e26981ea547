// Package segment scans normalized document text for hierarchical
// numbering patterns and produces the ordered raw segments that become
// statements. Output order always follows source order; the segmenter
// never re-orders what it finds.
package segment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coolbeans/statext/pkg/normalize"
	"github.com/coolbeans/statext/pkg/pattern"
)

// pageMarkerLine matches page-boundary marker lines so they can be
// dropped from segment bodies. Offsets are always taken before
// stripping.
var pageMarkerLine = regexp.MustCompile(`(?m)^\[PAGE \d+\]$\n?`)

// RawSegment is one (reference, title, body, page) tuple produced by
// segmentation, before it becomes a statement.
type RawSegment struct {
	// Reference is the numeric path matched at the heading, e.g. "3.2.1",
	// or a sequential integer in the paragraph fallback.
	Reference string `json:"reference"`

	// HierarchyPath joins the references of all previously seen ancestor
	// headings and the segment's own reference, e.g. "3 > 3.2 > 3.2.1".
	HierarchyPath string `json:"hierarchy_path"`

	// Title is the inline title text following the reference token on the
	// heading line, if any.
	Title string `json:"title,omitempty"`

	// Body is the trimmed clause text, spanning from the title start to
	// the next heading.
	Body string `json:"body"`

	// Page is the page active at the segment's start offset, 0 when the
	// source is unpaged.
	Page int `json:"page,omitempty"`

	// Offset is the character offset of the heading match in the
	// normalized text.
	Offset int `json:"offset"`
}

// Segmenter turns normalized text into ordered raw segments according to
// a segmentation profile.
type Segmenter struct {
	profile *pattern.Profile
}

// NewSegmenter creates a Segmenter using the built-in dotted-numeric
// profile.
func NewSegmenter() *Segmenter {
	return &Segmenter{profile: pattern.DefaultProfile()}
}

// NewSegmenterWithProfile creates a Segmenter using the given profile,
// falling back to the built-in one when nil.
func NewSegmenterWithProfile(p *pattern.Profile) *Segmenter {
	if p == nil {
		return NewSegmenter()
	}
	return &Segmenter{profile: p}
}

// match records one heading occurrence during the scan.
type match struct {
	reference string
	title     string
	offset    int // offset of the heading line in the text
	bodyStart int // offset where body text begins (start of inline title)
}

// Segment scans the normalized text line by line for the profile's heading
// pattern and returns raw segments in source order. Segments whose trimmed
// body is empty are dropped. When no heading matches anywhere, the whole
// text is split on blank-line boundaries instead, with sequential integer
// references in appearance order.
func (s *Segmenter) Segment(n normalize.Normalized) []RawSegment {
	matches := s.scanHeadings(n.Text)
	if len(matches) == 0 {
		return s.fallbackParagraphs(n)
	}

	paths := derivePaths(matches)

	segments := make([]RawSegment, 0, len(matches))
	for i, m := range matches {
		end := len(n.Text)
		if i+1 < len(matches) {
			end = matches[i+1].offset
		}
		body := cleanBody(n.Text[m.bodyStart:end])
		if body == "" {
			// Headings with nothing under them produce no statement, but
			// they already contributed to hierarchy paths above.
			continue
		}
		segments = append(segments, RawSegment{
			Reference:     m.reference,
			HierarchyPath: paths[i],
			Title:         m.title,
			Body:          body,
			Page:          n.PageAt(m.offset),
			Offset:        m.offset,
		})
	}
	return segments
}

// scanHeadings walks the text line by line and records every heading
// match with its character offsets.
func (s *Segmenter) scanHeadings(text string) []match {
	headingRe := s.profile.HeadingRegexp()
	refGroup := s.profile.Heading.ReferenceGroup
	titleGroup := s.profile.Heading.TitleGroup

	var matches []match
	offset := 0
	for offset <= len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[offset:]
			lineEnd = len(text) - offset
		} else {
			line = text[offset : offset+lineEnd]
		}

		if m := headingRe.FindStringSubmatchIndex(line); m != nil && m[0] == 0 {
			ref := groupText(line, m, refGroup)
			if ref != "" {
				title := ""
				bodyStart := offset + len(line)
				if titleGroup > 0 && groupStart(m, titleGroup) >= 0 {
					title = strings.TrimSpace(groupText(line, m, titleGroup))
					bodyStart = offset + groupStart(m, titleGroup)
				}
				matches = append(matches, match{
					reference: ref,
					title:     title,
					offset:    offset,
					bodyStart: bodyStart,
				})
			}
		}

		offset += lineEnd + 1
	}
	return matches
}

// derivePaths computes the hierarchy path for every match. The path at
// depth d joins the match's own reference with the references of all
// previously seen headings whose numeric paths are strict dot-prefixes of
// it, shallowest first.
func derivePaths(matches []match) []string {
	seen := make(map[string]bool, len(matches))
	paths := make([]string, len(matches))

	for i, m := range matches {
		parts := strings.Split(m.reference, ".")

		var chain []string
		for depth := 1; depth < len(parts); depth++ {
			prefix := strings.Join(parts[:depth], ".")
			if seen[prefix] {
				chain = append(chain, prefix)
			}
		}
		chain = append(chain, m.reference)
		paths[i] = strings.Join(chain, " > ")

		seen[m.reference] = true
	}
	return paths
}

// fallbackParagraphs splits the whole text on blank-line boundaries and
// assigns sequential integer references in appearance order.
func (s *Segmenter) fallbackParagraphs(n normalize.Normalized) []RawSegment {
	minLen := s.profile.Fallback.MinLength

	var segments []RawSegment
	offset := 0
	next := 1
	for _, block := range strings.Split(n.Text, "\n\n") {
		body := cleanBody(block)
		if body == "" || len(body) < minLen {
			offset += len(block) + 2
			continue
		}
		leading := len(block) - len(strings.TrimLeft(block, " \t\n"))
		start := offset + leading
		ref := strconv.Itoa(next)
		segments = append(segments, RawSegment{
			Reference:     ref,
			HierarchyPath: ref,
			Body:          body,
			Page:          n.PageAt(start),
			Offset:        start,
		})
		next++
		offset += len(block) + 2
	}
	return segments
}

// cleanBody trims a body slice and removes any page marker lines it
// spans.
func cleanBody(s string) string {
	return strings.TrimSpace(pageMarkerLine.ReplaceAllString(s, ""))
}

// groupText returns the text of capture group g, or "" when unmatched.
func groupText(s string, m []int, g int) string {
	start, end := m[2*g], m[2*g+1]
	if start < 0 || end < 0 {
		return ""
	}
	return s[start:end]
}

// groupStart returns the start index of capture group g, or -1.
func groupStart(m []int, g int) int {
	if 2*g >= len(m) {
		return -1
	}
	return m[2*g]
}
