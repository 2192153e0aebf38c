package post

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"

	"github.com/lysyi3m/rss-relay/app/feed"
)

const ellipsis = "…"

// Post is a composed message ready for delivery.
type Post struct {
	Link       string
	SourceName string
	Title      string
	Body       string
	Caption    string
	Media      *feed.Media
}

type Rand interface {
	IntN(n int) int
}

type defaultRand struct{}

func (defaultRand) IntN(n int) int {
	return rand.IntN(n)
}

type Composer struct {
	template     feed.PostTemplate
	rnd          Rand
	captionLimit int
	captionCut   int
	keywords     []string
}

// NewComposer builds a composer for the template. rnd may be nil to use the global
// pseudo-random source.
func NewComposer(template feed.PostTemplate, rnd Rand, captionLimit, captionCut int) *Composer {
	if rnd == nil {
		rnd = defaultRand{}
	}

	fold := cases.Fold()
	keywords := make([]string, 0, len(template.IncidentKeywords))
	for _, kw := range template.IncidentKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, fold.String(kw))
		}
	}

	return &Composer{
		template:     template,
		rnd:          rnd,
		captionLimit: captionLimit,
		captionCut:   captionCut,
		keywords:     keywords,
	}
}

func (c *Composer) Run(entry feed.Entry, content feed.Content, media *feed.Media) Post {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = c.template.TitlePlaceholder
	}

	body := fmt.Sprintf("%s <b>%s</b>\n\n%s\n\n<i>%s: %s</i>\n<b>%s</b>\n\n%s",
		c.emoji(title),
		feed.EscapeText(title),
		content.Excerpt,
		c.template.SourceLabel,
		feed.EscapeText(entry.SourceName),
		c.template.Handle,
		strings.Join(c.template.Hashtags, " "),
	)

	return Post{
		Link:       entry.Link,
		SourceName: entry.SourceName,
		Title:      title,
		Body:       body,
		Caption:    Caption(body, c.captionLimit, c.captionCut),
		Media:      media,
	}
}

func (c *Composer) emoji(title string) string {
	if c.isIncident(title) && c.template.AlertEmoji != "" {
		return c.template.AlertEmoji
	}
	if len(c.template.Emojis) == 0 {
		return c.template.AlertEmoji
	}
	return c.template.Emojis[c.rnd.IntN(len(c.template.Emojis))]
}

func (c *Composer) isIncident(title string) bool {
	folded := cases.Fold().String(title)
	for _, kw := range c.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

// Caption returns body when it fits in limit runes, otherwise its first cut runes
// followed by an ellipsis.
func Caption(body string, limit, cut int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return string(runes[:cut]) + ellipsis
}
