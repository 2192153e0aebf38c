package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

var DefaultPostTemplate = PostTemplate{
	Handle:           "@osetia_lenta",
	Hashtags:         []string{"#Владикавказ", "#Осетия", "#Новости"},
	SourceLabel:      "Источник",
	TitlePlaceholder: "Без заголовка",
	Emojis:           []string{"📰", "📢", "🔥", "⚡", "🏔️", "🚨", "📍", "✨", "🎥"},
	AlertEmoji:       "🚨",
	IncidentKeywords: []string{"дтп", "авария", "происшествие"},
	HighlightTerms:   []string{"Владикавказ", "Северная Осетия", "Алания", "Осетия", "ДТП"},
}

// LoadRegistry reads the sources file. Missing template values fall back to
// DefaultPostTemplate; source order is preserved.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	registry, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("invalid registry %s: %w", path, err)
	}

	for _, src := range registry.Sources {
		slog.Debug("Source loaded", "source", src.Name, "url", src.URL, "allow_media", src.AllowMedia)
	}

	return registry, nil
}

func ParseRegistry(data []byte) (*Registry, error) {
	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	registry.Post = withTemplateDefaults(registry.Post)

	if err := validateRegistry(&registry); err != nil {
		return nil, err
	}

	return &registry, nil
}

// SourceByName returns the source with the given name, or false.
func (r *Registry) SourceByName(name string) (Source, bool) {
	for _, src := range r.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return Source{}, false
}

func withTemplateDefaults(t PostTemplate) PostTemplate {
	d := DefaultPostTemplate

	if t.Handle == "" {
		t.Handle = d.Handle
	}
	if t.Hashtags == nil {
		t.Hashtags = d.Hashtags
	}
	if t.SourceLabel == "" {
		t.SourceLabel = d.SourceLabel
	}
	if t.TitlePlaceholder == "" {
		t.TitlePlaceholder = d.TitlePlaceholder
	}
	if len(t.Emojis) == 0 {
		t.Emojis = d.Emojis
	}
	if t.AlertEmoji == "" {
		t.AlertEmoji = d.AlertEmoji
	}
	if t.IncidentKeywords == nil {
		t.IncidentKeywords = d.IncidentKeywords
	}
	if t.HighlightTerms == nil {
		t.HighlightTerms = d.HighlightTerms
	}

	return t
}

func validateRegistry(registry *Registry) error {
	if len(registry.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool, len(registry.Sources))
	for i, src := range registry.Sources {
		if src.Name == "" {
			return fmt.Errorf("source at index %d: name is required", i)
		}
		if src.URL == "" {
			return fmt.Errorf("source %q: url is required", src.Name)
		}
		if u, err := url.Parse(src.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("source %q: url must be an absolute http(s) URL", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %q is defined more than once", src.Name)
		}
		if src.Settings.Timeout < 0 {
			return fmt.Errorf("source %q: timeout must be non-negative", src.Name)
		}
		seen[src.Name] = true
	}

	return nil
}
