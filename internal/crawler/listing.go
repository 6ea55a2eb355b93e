package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "apatel341/fabricworker/pkg/errors"
)

// ListingPage holds what one category listing page contributes to the
// crawl: detail URLs in document order and the next page, if any.
type ListingPage struct {
	ProductURLs []string
	NextURL     string
}

// ListingParser extracts product links and the pagination link from
// category listing pages.
type ListingParser struct {
	selectors Selectors
}

// NewListingParser creates a parser using the given selector set.
func NewListingParser(selectors Selectors) *ListingParser {
	return &ListingParser{selectors: selectors}
}

// Parse returns the product detail URLs found on the page, resolved to
// absolute form and deduplicated within the page. An absent next link
// means the category's last page; a page that cannot be parsed yields
// an error and contributes nothing.
func (p *ListingParser) Parse(page *PageContent) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, apperrors.NewParse(page.URL, "listing page not parseable", err)
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, apperrors.NewParse(page.URL, "listing page url invalid", err)
	}

	result := &ListingPage{}
	seen := make(map[string]struct{})
	doc.Find(p.selectors.ProductCard).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(p.selectors.ProductLink).First().Attr("href")
		if !ok {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		result.ProductURLs = append(result.ProductURLs, resolved)
	})

	if next, ok := doc.Find(p.selectors.NextPage).First().Attr("href"); ok {
		result.NextURL = resolveURL(base, next)
	}
	return result, nil
}

// resolveURL makes href absolute against base, returning "" for hrefs
// that cannot become a fetchable http(s) URL.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
