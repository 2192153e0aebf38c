package feed

import (
	"time"
)

// Source registry types

type Source struct {
	Name       string         `yaml:"name"`
	URL        string         `yaml:"url"`
	AllowMedia bool           `yaml:"allow_media"`
	Settings   SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	Timeout        int  `yaml:"timeout"`         // seconds, 0 means the global feed timeout
	ExtractContent bool `yaml:"extract_content"` // readability fallback when the feed carries no usable text
}

// PostTemplate holds the channel-specific wording of a post.
type PostTemplate struct {
	Handle           string   `yaml:"handle"`
	Hashtags         []string `yaml:"hashtags"`
	SourceLabel      string   `yaml:"source_label"`
	TitlePlaceholder string   `yaml:"title_placeholder"`
	Emojis           []string `yaml:"emojis"`
	AlertEmoji       string   `yaml:"alert_emoji"`
	IncidentKeywords []string `yaml:"incident_keywords"`
	HighlightTerms   []string `yaml:"highlight_terms"`
}

type Registry struct {
	Post    PostTemplate `yaml:"post"`
	Sources []Source     `yaml:"sources"`
}

// Feed processing types

type Entry struct {
	Link           string
	NormalizedLink string
	Title          string
	TextCandidates []string // description, summary, content
	PublishedAt    time.Time
	SourceName     string
	Attachments    []string // media:content URLs in declaration order
	Enclosures     []string // enclosure URLs in declaration order
}

type Content struct {
	CleanText string
	Excerpt   string
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

type Media struct {
	Kind MediaKind
	URL  string
}
