package transform

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "apatel341/fabricworker/pkg/errors"
)

// defaultPricePattern captures an optional currency marker, an amount
// with optional thousands separators and decimals, and an optional
// "/Unit" suffix. Matches notations like "₹ 250/Meter",
// "Rs. 1,200.50 / Piece" and "$15".
const defaultPricePattern = `(₹|Rs\.?|\$|€)?\s*([\d,]+\.?\d*)(?:\s*/\s*([A-Za-z]+))?`

// defaultSymbols maps captured currency markers to ISO codes.
var defaultSymbols = map[string]string{
	"₹":   "INR",
	"Rs.": "INR",
	"Rs":  "INR",
	"$":   "USD",
	"€":   "EUR",
}

// PriceParser extracts a numeric amount, unit and currency from the
// free-form price text found on product pages.
type PriceParser struct {
	pattern         *regexp.Regexp
	symbols         map[string]string
	defaultCurrency string
}

// NewPriceParser returns a parser for the catalog's price notation:
// rupee-first markers, with INR assumed for amounts carrying no marker.
func NewPriceParser() *PriceParser {
	parser, err := NewPriceParserWith(defaultPricePattern, defaultSymbols, "INR")
	if err != nil {
		panic(err)
	}
	return parser
}

// NewPriceParserWith builds a parser around a custom pattern. The
// pattern must expose three capture groups in order: currency marker,
// amount, unit.
func NewPriceParserWith(pattern string, symbols map[string]string, defaultCurrency string) (*PriceParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperrors.NewConfiguration("price pattern invalid", err)
	}
	if re.NumSubexp() < 3 {
		return nil, apperrors.NewConfiguration("price pattern needs marker, amount and unit groups", nil)
	}
	return &PriceParser{
		pattern:         re,
		symbols:         symbols,
		defaultCurrency: defaultCurrency,
	}, nil
}

// Parse extracts (price, unit, currency) from text. Nil results mean
// missing data, never an error: text without a recognizable amount
// yields three nils. The unit and currency marker are kept
// independently of whether the amount itself survives numeric
// conversion.
func (p *PriceParser) Parse(text string) (*float64, *string, *string) {
	match := p.pattern.FindStringSubmatch(text)
	if match == nil {
		return nil, nil, nil
	}

	var price *float64
	if amount := strings.ReplaceAll(match[2], ",", ""); amount != "" {
		if value, err := strconv.ParseFloat(amount, 64); err == nil {
			price = &value
		}
	}

	var unit *string
	if match[3] != "" {
		unit = &match[3]
	}

	var currency *string
	if code, ok := p.symbols[match[1]]; ok {
		currency = &code
	}
	if price != nil && currency == nil {
		code := p.defaultCurrency
		currency = &code
	}
	return price, unit, currency
}
