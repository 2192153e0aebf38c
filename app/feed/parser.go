package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses feed data into entries. Items without a link are dropped. now is the
// timestamp assigned to entries that carry no parseable date.
func (p *Parser) Run(data []byte, sourceName string, now time.Time) ([]Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}

		entries = append(entries, Entry{
			Link:           link,
			NormalizedLink: NormalizeLink(link),
			Title:          strings.TrimSpace(item.Title),
			TextCandidates: p.textCandidates(item),
			PublishedAt:    p.resolveTimestamp(item, now),
			SourceName:     sourceName,
			Attachments:    p.mediaContentURLs(item),
			Enclosures:     p.enclosureURLs(item),
		})
	}

	return entries, nil
}

func (p *Parser) textCandidates(item *gofeed.Item) []string {
	summary := ""
	if item.ITunesExt != nil {
		summary = item.ITunesExt.Summary
	}
	return []string{item.Description, summary, item.Content}
}

// resolveTimestamp prefers the declared publish time, then last-modified, then the
// Dublin Core created date, then now.
func (p *Parser) resolveTimestamp(item *gofeed.Item, now time.Time) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if created, ok := p.createdDate(item.Extensions); ok {
		return created
	}
	return now
}

func (p *Parser) createdDate(extensions ext.Extensions) (time.Time, bool) {
	for _, prefix := range []string{"dcterms", "dc"} {
		for _, e := range extensions[prefix]["created"] {
			value := strings.TrimSpace(e.Value)
			if value == "" {
				continue
			}
			if t, err := dateparse.ParseAny(value); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (p *Parser) mediaContentURLs(item *gofeed.Item) []string {
	media, ok := item.Extensions["media"]
	if !ok {
		return nil
	}

	var urls []string
	for _, content := range media["content"] {
		if u := strings.TrimSpace(content.Attrs["url"]); u != "" {
			urls = append(urls, u)
		}
	}
	for _, group := range media["group"] {
		for _, content := range group.Children["content"] {
			if u := strings.TrimSpace(content.Attrs["url"]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func (p *Parser) enclosureURLs(item *gofeed.Item) []string {
	var urls []string
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if u := strings.TrimSpace(enclosure.URL); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
