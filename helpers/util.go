package helpers

import (
	"net/url"
	"path"
	"strings"
)

// NormalizeSpace collapses runs of whitespace to single spaces and trims the
// result. Used on extracted page text where markup splits a value across nodes.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CategoryLabel derives a short label from a category listing URL, e.g.
// ".../impcat/cotton-fabric.html" -> "cotton-fabric". Falls back to the host
// when the path has no usable segment.
func CategoryLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return u.Host
	}
	return base
}
