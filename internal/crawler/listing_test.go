package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<ul>
  <li class="mList tc bgw">
    <a class="prodNameClamp" href="https://www.indiamart.com/proddetail/cotton-fabric-101.html">Cotton Fabric</a>
  </li>
  <li class="mList tc bgw">
    <a class="prodNameClamp" href="/proddetail/polyester-fabric-102.html">Polyester Fabric</a>
  </li>
  <li class="mList tc bgw">
    <a class="prodNameClamp" href="https://www.indiamart.com/proddetail/cotton-fabric-101.html">Cotton Fabric (repeat)</a>
  </li>
  <li class="mList tc bgw">
    <span>a card without a product link</span>
  </li>
  <li class="mList tc bgw">
    <a class="prodNameClamp" href="javascript:void(0)">Broken</a>
  </li>
</ul>
<div class="pagination"><a title="Next" href="/impcat/cotton-fabric.html?page=2">Next</a></div>
</body></html>`

func TestListingParserExtractsLinks(t *testing.T) {
	parser := NewListingParser(DefaultSelectors())
	page := &PageContent{URL: "https://dir.indiamart.com/impcat/cotton-fabric.html", Body: listingHTML}

	listing, err := parser.Parse(page)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.indiamart.com/proddetail/cotton-fabric-101.html",
		"https://dir.indiamart.com/proddetail/polyester-fabric-102.html",
	}, listing.ProductURLs)
	assert.Equal(t, "https://dir.indiamart.com/impcat/cotton-fabric.html?page=2", listing.NextURL)
}

func TestListingParserLastPage(t *testing.T) {
	html := `<html><body>
<li class="mList tc bgw"><a class="prodNameClamp" href="/proddetail/yarn-1.html">Yarn</a></li>
</body></html>`
	parser := NewListingParser(DefaultSelectors())

	listing, err := parser.Parse(&PageContent{URL: "https://dir.indiamart.com/impcat/yarn.html", Body: html})
	require.NoError(t, err)
	assert.Len(t, listing.ProductURLs, 1)
	assert.Empty(t, listing.NextURL, "no next affordance means the chain ends")
}

func TestListingParserEmptyPage(t *testing.T) {
	parser := NewListingParser(DefaultSelectors())

	listing, err := parser.Parse(&PageContent{URL: "https://dir.indiamart.com/impcat/yarn.html", Body: "<html><body><p>No results</p></body></html>"})
	require.NoError(t, err)
	assert.Empty(t, listing.ProductURLs)
	assert.Empty(t, listing.NextURL)
}
