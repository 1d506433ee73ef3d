package handlers

import "strings"

// SelectorPreset holds ready-made selectors for a known shop.
type SelectorPreset struct {
	Price        string `json:"price"`
	Availability string `json:"availability"`
}

// PredefinedSelectors are offered when adding a product
var PredefinedSelectors = map[string]SelectorPreset{
	"Amazon": {
		Price:        "span.a-price-whole",
		Availability: "#availability > span",
	},
	"eBay": {
		Price:        "span#prcIsum",
		Availability: "span#qtySubTxt",
	},
	"Custom": {},
}

func lookupPreset(site string) (SelectorPreset, bool) {
	for name, preset := range PredefinedSelectors {
		if strings.EqualFold(name, site) {
			return preset, true
		}
	}
	return SelectorPreset{}, false
}
