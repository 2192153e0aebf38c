package feed

import (
	"context"
	"log/slog"
)

type PageSource interface {
	Run(ctx context.Context, url string) ([]byte, error)
}

var _ PageSource = (*PageFetcher)(nil)

// TextExtractor turns an entry into display text: the first usable text candidate,
// escaped for HTML, keyword-highlighted and truncated to an excerpt.
type TextExtractor struct {
	highlighter *Highlighter
	minLength   int
	threshold   int
	pages       PageSource
	readability *ContentExtractor
}

// NewTextExtractor builds an extractor. pages may be nil, which disables the
// full-page fallback for sources with extract_content enabled.
func NewTextExtractor(highlighter *Highlighter, minLength, threshold int, pages PageSource, readability *ContentExtractor) *TextExtractor {
	return &TextExtractor{
		highlighter: highlighter,
		minLength:   minLength,
		threshold:   threshold,
		pages:       pages,
		readability: readability,
	}
}

// Run never fails: an entry without usable text yields an empty Content and is posted
// with its title only.
func (e *TextExtractor) Run(ctx context.Context, entry Entry, src Source) Content {
	clean := SelectText(entry.TextCandidates, e.minLength)

	if clean == "" && src.Settings.ExtractContent {
		clean = e.fromPage(ctx, entry.Link)
	}

	if clean == "" {
		slog.Debug("No usable text in entry, posting title only", "source", entry.SourceName, "link", entry.Link)
		return Content{}
	}

	highlighted := e.highlighter.Run(EscapeText(clean))
	excerpt := CloseMarkup(TruncateExcerpt(highlighted, e.threshold))

	return Content{
		CleanText: clean,
		Excerpt:   excerpt,
	}
}

func (e *TextExtractor) fromPage(ctx context.Context, link string) string {
	if e.pages == nil || e.readability == nil {
		return ""
	}

	data, err := e.pages.Run(ctx, link)
	if err != nil {
		slog.Debug("Article page fetch failed", "link", link, "error", err)
		return ""
	}

	article, err := e.readability.Run(data, link)
	if err != nil {
		slog.Debug("Readability extraction failed", "link", link, "error", err)
		return ""
	}

	return SelectText([]string{article}, e.minLength)
}
