package feed

import (
	"net/url"
	"strings"
)

var unsafeLinkChars = strings.NewReplacer("\t", "", "\r", "", "\n", "")

// NormalizeLink returns the dedup identifier of a link: lower-cased scheme, host and
// path with trailing slashes removed. Query and fragment are dropped. Tabs and line
// breaks are removed first, so the identifier always fits on one line.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(unsafeLinkChars.Replace(link))

	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(link)
	}

	normalized := u.Scheme + "://" + u.Host + strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToLower(normalized)
}
