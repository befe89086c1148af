package nextjs

import (
	"html/template"
	"strconv"
	"strings"
)

// Markers emitted by the Next.js document, in the order they must appear.
const (
	headMarker      = "<head>"
	bodyMarker      = `</head><body id="__django_nextjs_body"`
	bodyBeginMarker = `<div id="__django_nextjs_body_begin"`
	bodyEndMarker   = `<div id="__django_nextjs_body_end"`
)

// Sections are the five consecutive pieces of a page split at its markers.
// Joined back together they are the original page.
type Sections [5]string

// ExtractSections splits html at its markers. ok is false when any marker is
// missing or out of order.
func ExtractSections(html string) (s Sections, ok bool) {
	a := indexFrom(html, headMarker, 0)
	if a == -1 {
		return s, false
	}
	b := indexFrom(html, bodyMarker, a)
	if b == -1 {
		return s, false
	}
	c := indexFrom(html, bodyBeginMarker, b)
	if c == -1 {
		return s, false
	}
	d := indexFrom(html, bodyEndMarker, c)
	if d == -1 {
		return s, false
	}

	head := a + len(headMarker)
	return Sections{
		html[:head],
		html[head:b],
		html[b:c],
		html[c:d],
		html[d:],
	}, true
}

func (s Sections) String() string {
	return strings.Join(s[:], "")
}

// Map keys the sections section1 through section5. Values are template.HTML
// so templates emit them verbatim.
func (s Sections) Map() map[string]template.HTML {
	m := make(map[string]template.HTML, len(s))
	for i, section := range s {
		m["section"+strconv.Itoa(i+1)] = template.HTML(section)
	}
	return m
}

func indexFrom(s, substr string, from int) int {
	i := strings.Index(s[from:], substr)
	if i == -1 {
		return -1
	}
	return from + i
}
