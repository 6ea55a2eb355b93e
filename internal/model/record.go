package model

// RawProductRecord is one product detail page as scraped, before any cleaning.
// ProductURL is the canonical identifier and must be non-empty and absolute for
// every persisted record; every other field may be empty when the page does not
// carry it.
type RawProductRecord struct {
	ProductName  string   `json:"product_name"`
	ProductURL   string   `json:"product_url"`
	PriceText    string   `json:"price_text,omitempty"`
	FabricType   string   `json:"fabric_type,omitempty"`
	Description  string   `json:"product_description,omitempty"`
	Images       []string `json:"images,omitempty"`
	DisplayID    string   `json:"display_id,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Location     string   `json:"location,omitempty"`
	GSM          string   `json:"gsm,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
	Usage        string   `json:"usage,omitempty"`
	Availability string   `json:"availability,omitempty"`
}

// ProcessedProductRecord is one row of the cleaned dataset. Price, Unit and
// Currency are nil when the raw price text could not be parsed.
type ProcessedProductRecord struct {
	ProductID  int
	FabricType string
	Price      *float64
	Unit       *string
	Currency   *string
}
