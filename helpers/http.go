package helpers

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"

	"golang.org/x/net/html/charset"
)

var referers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
}

// DecorateRequest sets browser-like headers on req. The User-Agent comes from
// the identity rotator; the referer is picked at random so request fingerprints
// do not repeat a fixed pattern.
func DecorateRequest(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,hi;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Referer", referers[rand.IntN(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")
}

// ToUTF8 converts a response body to UTF-8 using the Content-Type header and
// the body content to detect the source encoding. Bodies already in UTF-8 are
// returned unchanged.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	converted, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return converted, nil
}
