package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"apatel341/fabricworker/internal/model"
	apperrors "apatel341/fabricworker/pkg/errors"
)

// DetailParser extracts a raw product record from a product detail
// page. Every field is optional except the product's identity: the
// page URL must be absolute, and either the name or the site's display
// id must be present for the record to stand.
type DetailParser struct {
	selectors Selectors
}

// NewDetailParser creates a parser using the given selector set.
func NewDetailParser(selectors Selectors) *DetailParser {
	return &DetailParser{selectors: selectors}
}

// Parse extracts a record from the page. Missing optional fields leave
// their slots empty rather than failing the record.
func (p *DetailParser) Parse(page *PageContent) (*model.RawProductRecord, error) {
	u, err := url.Parse(page.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, apperrors.NewParse(page.URL, "detail page url is not absolute", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, apperrors.NewParse(page.URL, "detail page not parseable", err)
	}

	record := &model.RawProductRecord{
		ProductURL:  page.URL,
		ProductName: strings.TrimSpace(doc.Find(p.selectors.Name).First().Text()),
		DisplayID:   strings.TrimSpace(doc.Find(p.selectors.DisplayID).First().AttrOr(p.selectors.DisplayIDAttr, "")),
		// Price and unit live in separate text nodes under one span, so
		// the whole subtree's text is taken as-is
		PriceText:   strings.TrimSpace(doc.Find(p.selectors.Price).Text()),
		Location:    strings.TrimSpace(doc.Find(p.selectors.Location).First().Text()),
		Brand:       strings.TrimSpace(doc.Find(p.selectors.Brand).First().Text()),
		Description: strings.TrimSpace(doc.Find(p.selectors.Description).Text()),
	}

	doc.Find(p.selectors.Image).Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr(p.selectors.ImageAttr); ok && strings.TrimSpace(src) != "" {
			record.Images = append(record.Images, strings.TrimSpace(src))
		}
	})

	p.applySpecTable(doc, record)

	if record.ProductName == "" && record.DisplayID == "" {
		return nil, apperrors.NewParse(page.URL, "product identity not found", nil)
	}
	return record, nil
}

// applySpecTable walks the specification rows in document order and
// maps recognized keys onto the record. Keys are matched loosely after
// lowercasing and colon removal, so "Fabric Type:", "material" and
// "Prints/Pattern" all land. A key matching several fields fills each
// of them, and a later row overwrites an earlier one.
func (p *DetailParser) applySpecTable(doc *goquery.Document, record *model.RawProductRecord) {
	doc.Find(p.selectors.SpecRow).Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find(p.selectors.SpecKey).First().Text())
		value := strings.TrimSpace(row.Find(p.selectors.SpecValue).First().Text())
		if key == "" || value == "" {
			return
		}
		key = strings.ReplaceAll(strings.ToLower(key), ":", "")

		if strings.Contains(key, "fabric") || strings.Contains(key, "material") {
			record.FabricType = value
		}
		if strings.Contains(key, "pattern") {
			record.Pattern = value
		}
		if strings.Contains(key, "gsm") {
			record.GSM = value
		}
		if strings.Contains(key, "usage") {
			record.Usage = value
		}
		if strings.Contains(key, "availability") {
			record.Availability = value
		}
	})
}
