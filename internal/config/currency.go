package config

import (
	"sort"
	"strings"
)

// steamCurrencyIDs maps ISO codes to the numeric ids the Steam market expects
var steamCurrencyIDs = map[string]int{
	"USD": 1, "GBP": 2, "EUR": 3, "CHF": 4, "RUB": 5, "PLN": 6, "BRL": 7, "JPY": 8,
	"NOK": 9, "IDR": 10, "MYR": 11, "PHP": 12, "SGD": 13, "THB": 14, "VND": 15,
	"KRW": 16, "TRY": 17, "UAH": 18, "MXN": 19, "CAD": 20, "AUD": 21, "NZD": 22,
	"CNY": 23, "INR": 24, "CLP": 25, "PEN": 26, "COP": 27, "ZAR": 28, "HKD": 29,
	"TWD": 30, "SAR": 31, "AED": 32,
}

// supportedCurrencies are the currencies both marketplaces quote in
var supportedCurrencies = map[string]bool{"USD": true, "EUR": true, "PLN": true, "GBP": true}

// Games maps short game names to marketplace application ids
var Games = map[string]int{
	"cs2":   730,
	"dota2": 570,
	"tf2":   440,
	"rust":  252490,
}

// NormalizeCurrency upper-cases a currency code and falls back to USD
// for anything both marketplaces do not support
func NormalizeCurrency(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if supportedCurrencies[c] {
		return c
	}
	return "USD"
}

// SteamCurrencyID returns the numeric Steam currency id, USD when unknown
func SteamCurrencyID(code string) int {
	if id, ok := steamCurrencyIDs[strings.ToUpper(code)]; ok {
		return id
	}
	return 1
}

// GameID resolves a game short name or returns false
func GameID(name string) (int, bool) {
	id, ok := Games[strings.ToLower(name)]
	return id, ok
}

// GameNames returns the known game short names in stable order
func GameNames() []string {
	names := make([]string, 0, len(Games))
	for n := range Games {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
