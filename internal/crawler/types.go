package crawler

import "errors"

// ErrRobotsDenied marks a URL the site's robots.txt forbids for our agent.
var ErrRobotsDenied = errors.New("blocked by robots.txt")

// PageContent is a fetched and charset-normalized page body.
type PageContent struct {
	URL        string
	StatusCode int
	Body       string
}

// Selectors contains CSS selectors for the catalog's listing and detail
// pages. Attribute lookups name the attribute separately so the same
// selector can be reused for both text and attribute extraction.
type Selectors struct {
	// Listing page
	ProductCard string
	ProductLink string
	NextPage    string

	// Detail page
	Name          string
	DisplayID     string
	DisplayIDAttr string
	Price         string
	Location      string
	Image         string
	ImageAttr     string
	Brand         string
	Description   string
	SpecRow       string
	SpecKey       string
	SpecValue     string
}

// DefaultSelectors returns the selector set for dir.indiamart.com
// category listings and www.indiamart.com product pages.
func DefaultSelectors() Selectors {
	return Selectors{
		ProductCard: "li.mList.tc.bgw",
		ProductLink: "a.prodNameClamp",
		NextPage:    `a[title="Next"]`,

		Name:          "h1.bo.center-heading",
		DisplayID:     "div.pdp_enq",
		DisplayIDAttr: "data-dispid",
		Price:         "span#askprice_pg-1",
		Location:      "span.city-highlight",
		Image:         "img#img_id",
		ImageAttr:     "data-zoom",
		Brand:         "h2.fs15",
		Description:   "div#descp2 div.pro-descN",
		SpecRow:       "div.isq-container table tbody tr",
		SpecKey:       "td.tdwdt",
		SpecValue:     "td.tdwdt1",
	}
}
