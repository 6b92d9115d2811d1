package provider

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errEmptyPrice  = errors.New("empty price string")
	nonNumeric     = regexp.MustCompile(`[^\d,.\-]`)
	renderPatterns = map[string]*regexp.Regexp{
		"PLN": regexp.MustCompile(`([0-9][0-9,.]*)\s*z`),
		"EUR": regexp.MustCompile(`€\s*([0-9][0-9,.]*)|([0-9][0-9,.]*)\s*€`),
		"GBP": regexp.MustCompile(`£\s*([0-9][0-9,.]*)`),
		"USD": regexp.MustCompile(`\$\s*([0-9][0-9,.]*)`),
	}
)

// ParsePrice converts a marketplace price string such as "1 234,56 zł",
// "12,50€" or "$1,234.56" into a decimal using the currency's
// separator conventions.
func ParsePrice(s, currency string) (decimal.Decimal, error) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, errEmptyPrice
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch strings.ToUpper(currency) {
	case "PLN", "EUR":
		switch {
		case hasComma && hasDot:
			// 1.234,56 or 1,234.56; the later separator is the decimal one
			if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
				cleaned = strings.ReplaceAll(cleaned, ".", "")
				cleaned = strings.Replace(cleaned, ",", ".", 1)
			} else {
				cleaned = strings.ReplaceAll(cleaned, ",", "")
			}
		case hasComma:
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	return decimal.NewFromString(cleaned)
}

// ExtractRenderPrice pulls the first price for the currency out of a
// listing page fragment
func ExtractRenderPrice(html, currency string) (decimal.Decimal, bool) {
	re, ok := renderPatterns[strings.ToUpper(currency)]
	if !ok {
		re = renderPatterns["USD"]
	}
	m := re.FindStringSubmatch(html)
	if m == nil {
		return decimal.Zero, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		p, err := ParsePrice(g, currency)
		if err != nil || !p.IsPositive() {
			return decimal.Zero, false
		}
		return p, true
	}
	return decimal.Zero, false
}

// parseVolume reads a volume string like "1,234" where separators are
// always thousands separators
func parseVolume(s string) int {
	s = strings.NewReplacer(",", "", ".", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// ExplosivenessHint is the cheap source-local heuristic attached to every
// priced quote: min(50, price/10) scaled by a log volume factor in (0,2].
func ExplosivenessHint(price decimal.Decimal, volume int) float64 {
	p, _ := price.Float64()
	base := math.Min(50, p*0.1)
	factor := 1.0
	if volume > 0 {
		factor = math.Min(2.0, math.Log10(1+float64(volume))/2)
	}
	return math.Round(base*factor*100) / 100
}
