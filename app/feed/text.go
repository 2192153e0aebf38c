package feed

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

var (
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	lineSpace   = regexp.MustCompile(`[ \t\r\f\v]*\n[ \t\r\f\v]*`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// CleanHTML strips markup, scripts and styles from an HTML fragment and returns
// plain text with paragraphs separated by a single blank line.
func CleanHTML(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	doc.Find("script, style, iframe").Remove()
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithNodes(&nethtml.Node{
			Type: nethtml.TextNode,
			Data: strings.TrimSpace(s.Text()) + "\n\n",
		})
	})

	var parts []string
	var walk func(n *nethtml.Node)
	walk = func(n *nethtml.Node) {
		if n.Type == nethtml.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	text = lineSpace.ReplaceAllString(text, "\n")
	return blankLines.ReplaceAllString(text, "\n\n")
}

// SelectText returns the first candidate whose cleaned text is longer than minLength
// runes, or "" when none qualifies.
func SelectText(candidates []string, minLength int) string {
	for _, candidate := range candidates {
		cleaned := CleanHTML(candidate)
		if utf8.RuneCountInString(strings.TrimSpace(cleaned)) > minLength {
			return cleaned
		}
	}
	return ""
}

// TruncateExcerpt keeps text up to threshold runes. Longer text is cut after the first
// period at or beyond the threshold, or hard-cut at the threshold when there is none.
func TruncateExcerpt(text string, threshold int) string {
	runes := []rune(text)
	if len(runes) <= threshold {
		return text
	}

	for i := threshold; i < len(runes); i++ {
		if runes[i] == '.' {
			return string(runes[:i+1])
		}
	}

	return string(runes[:threshold])
}

// Highlighter wraps vocabulary terms in <b> tags. Matching is case-insensitive and
// bounded by non-word runes; longer terms win over terms they contain.
type Highlighter struct {
	pattern *regexp.Regexp
}

func NewHighlighter(terms []string) *Highlighter {
	sorted := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			sorted = append(sorted, term)
		}
	}
	if len(sorted) == 0 {
		return &Highlighter{}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})

	quoted := make([]string, len(sorted))
	for i, term := range sorted {
		quoted[i] = regexp.QuoteMeta(term)
	}

	return &Highlighter{
		pattern: regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`),
	}
}

func (h *Highlighter) Run(text string) string {
	if h.pattern == nil {
		return text
	}

	matches := h.pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !atWordBoundary(text, m[0], m[1]) {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString("<b>")
		b.WriteString(text[m[0]:m[1]])
		b.WriteString("</b>")
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String()
}

func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// EscapeText makes plain text safe for Telegram HTML. Quotes are left as they are:
// Telegram only requires &, < and > to be escaped outside tags.
func EscapeText(text string) string {
	return htmlEscaper.Replace(text)
}

// CloseMarkup repairs text cut in the middle of markup: a trailing partial tag or
// entity is dropped and unclosed <b> and <i> tags are closed innermost first.
func CloseMarkup(text string) string {
	if i := strings.LastIndexByte(text, '<'); i >= 0 && !strings.Contains(text[i:], ">") {
		text = text[:i]
	}
	if i := strings.LastIndexByte(text, '&'); i >= 0 && !strings.Contains(text[i:], ";") {
		text = text[:i]
	}

	var open []string
	for rest := text; ; {
		i := strings.IndexByte(rest, '<')
		if i < 0 {
			break
		}
		rest = rest[i:]
		switch {
		case strings.HasPrefix(rest, "</"):
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		case strings.HasPrefix(rest, "<b>"):
			open = append(open, "</b>")
		case strings.HasPrefix(rest, "<i>"):
			open = append(open, "</i>")
		}
		rest = rest[1:]
	}

	for i := len(open) - 1; i >= 0; i-- {
		text += open[i]
	}

	return text
}
