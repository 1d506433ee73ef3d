package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Extractor reads price and availability out of a parsed page.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.Named("extractor")}
}

// Extract applies both selectors to doc. Each value is nil when its selector
// matches nothing or its text cannot be used; one failing never affects the other.
func (e *Extractor) Extract(doc *goquery.Document, priceSelector, availabilitySelector string) (price *float64, availability *string) {
	if doc == nil {
		return nil, nil
	}
	price = e.extractPrice(doc, priceSelector)
	availability = e.extractAvailability(doc, availabilitySelector)
	return price, availability
}

func (e *Extractor) extractPrice(doc *goquery.Document, selector string) (price *float64) {
	defer e.recoverField("price", selector, func() { price = nil })

	text, ok := firstText(doc, selector)
	if !ok {
		e.logger.Debug("price selector matched nothing", zap.String("selector", selector))
		return nil
	}
	v, ok := ParsePrice(text)
	if !ok {
		e.logger.Debug("price text is not a number", zap.String("selector", selector), zap.String("text", text))
		return nil
	}
	return &v
}

func (e *Extractor) extractAvailability(doc *goquery.Document, selector string) (availability *string) {
	defer e.recoverField("availability", selector, func() { availability = nil })

	text, ok := firstText(doc, selector)
	if !ok {
		e.logger.Debug("availability selector matched nothing", zap.String("selector", selector))
		return nil
	}
	text = strings.TrimSpace(text)
	return &text
}

func (e *Extractor) recoverField(field, selector string, reset func()) {
	if r := recover(); r != nil {
		e.logger.Warn("extraction failed",
			zap.String("field", field),
			zap.String("selector", selector),
			zap.String("panic", fmt.Sprint(r)))
		reset()
	}
}

func firstText(doc *goquery.Document, selector string) (string, bool) {
	if strings.TrimSpace(selector) == "" {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

// ParsePrice keeps only digits and '.' from text and parses the rest as a
// float, so "$1,234.56" yields 1234.56. It reports false when nothing
// parseable remains.
func ParsePrice(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
