package feed

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	videoExtensions     = []string{".mp4", ".m4v", ".mov", ".webm"}
	photoExtensions     = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
	pagePhotoExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

	// Checked in this order; the first selector with an acceptable image wins.
	pageImageSelectors = []string{
		".entry-content img",
		".post-thumbnail img",
		"article img",
		"img.size-full",
		"img.wp-post-image",
	}
	imageSourceAttrs  = []string{"src", "data-src", "data-lazy-src"}
	nonContentMarkers = []string{"logo", "avatar"}
)

// Reasons reported when no media is attached.
const (
	NoMediaNotAllowed  = "media not allowed for source"
	NoMediaNoLink      = "entry has no link"
	NoMediaPageFailed  = "article page unavailable"
	NoMediaNoCandidate = "no suitable image found"
)

type MediaResolver struct {
	pages PageSource
}

func NewMediaResolver(pages PageSource) *MediaResolver {
	return &MediaResolver{pages: pages}
}

// Run finds at most one media item for the entry. A nil result comes with the reason
// it was not found; it is never an error.
func (r *MediaResolver) Run(ctx context.Context, entry Entry, allowMedia bool) (*Media, string) {
	if !allowMedia {
		return nil, NoMediaNotAllowed
	}

	if media := classifyFirst(entry.Attachments); media != nil {
		return media, ""
	}
	if media := classifyFirst(entry.Enclosures); media != nil {
		return media, ""
	}

	if entry.Link == "" || r.pages == nil {
		return nil, NoMediaNoLink
	}

	data, err := r.pages.Run(ctx, entry.Link)
	if err != nil {
		slog.Debug("Media page fetch failed", "link", entry.Link, "error", err)
		return nil, NoMediaPageFailed
	}

	if imageURL := findPageImage(data, entry.Link); imageURL != "" {
		return &Media{Kind: MediaPhoto, URL: imageURL}, ""
	}

	return nil, NoMediaNoCandidate
}

func classifyFirst(urls []string) *Media {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if hasExtension(u, videoExtensions) {
			return &Media{Kind: MediaVideo, URL: u}
		}
		if hasExtension(u, photoExtensions) {
			return &Media{Kind: MediaPhoto, URL: u}
		}
	}
	return nil
}

// hasExtension classifies by the URL path so query strings do not hide the extension.
func hasExtension(rawURL string, extensions []string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	ext := strings.ToLower(path.Ext(p))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func findPageImage(data []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	for _, selector := range pageImageSelectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src := imageSource(img)
			if src == "" || hasNonContentMarker(src) {
				return true
			}

			ref, err := url.Parse(src)
			if err != nil {
				return true
			}

			resolved := base.ResolveReference(ref).String()
			if !hasExtension(resolved, pagePhotoExtensions) {
				return true
			}

			found = resolved
			return false
		})
		if found != "" {
			return found
		}
	}

	return ""
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range imageSourceAttrs {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func hasNonContentMarker(src string) bool {
	lower := strings.ToLower(src)
	for _, marker := range nonContentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
