package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shaibs3/PriceTracker/internal/display"
	"github.com/shaibs3/PriceTracker/internal/scheduler"
	"go.uber.org/zap"
)

// ProductCreator stores new products
type ProductCreator interface {
	CreateProduct(ctx context.Context, url, priceSelector, availabilitySelector string, threshold *float64) (int64, error)
}

// Tracker controls scheduled and manual scraping
type Tracker interface {
	Start(ctx context.Context, interval time.Duration) error
	Stop()
	ScrapeNow(ctx context.Context) error
	State() scheduler.State
}

// Display serves the rows built from the message queue
type Display interface {
	Refresh(ctx context.Context) error
	Rows() []display.ProductRow
	Alerts() []display.Alert
	History(ctx context.Context, productID int64) ([]display.HistoryRow, error)
}

// TrackerHandler exposes product management, tracking control and the display views
type TrackerHandler struct {
	// baseCtx outlives single requests; scheduled and manual scrapes run under it.
	baseCtx         context.Context
	products        ProductCreator
	tracker         Tracker
	display         Display
	defaultInterval time.Duration
	logger          *zap.Logger
}

// NewTrackerHandler creates a new tracker handler
func NewTrackerHandler(baseCtx context.Context, products ProductCreator, tracker Tracker, disp Display, defaultInterval time.Duration, logger *zap.Logger) *TrackerHandler {
	return &TrackerHandler{
		baseCtx:         baseCtx,
		products:        products,
		tracker:         tracker,
		display:         disp,
		defaultInterval: defaultInterval,
		logger:          logger.Named("tracker_handler"),
	}
}

// RegisterRoutes registers the routes for this handler
func (h *TrackerHandler) RegisterRoutes(router *mux.Router, logger *zap.Logger) {
	router.HandleFunc("/api/products", h.handleListProducts).Methods("GET")
	router.HandleFunc("/api/products", h.handleAddProduct).Methods("POST")
	router.HandleFunc("/api/products/{id}/history", h.handleHistory).Methods("GET")
	router.HandleFunc("/api/presets", h.handlePresets).Methods("GET")
	router.HandleFunc("/api/tracking", h.handleTrackingState).Methods("GET")
	router.HandleFunc("/api/tracking/start", h.handleStart).Methods("POST")
	router.HandleFunc("/api/tracking/stop", h.handleStop).Methods("POST")
	router.HandleFunc("/api/scrape", h.handleScrapeNow).Methods("POST")
	router.HandleFunc("/api/alerts", h.handleAlerts).Methods("GET")
}

// validateURL checks that a product URL can be fetched
func validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	// Only allow http and https schemes
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %q (only http and https are allowed)", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// parseThreshold accepts a JSON number, a numeric string, or nothing
func parseThreshold(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = strings.TrimSpace(s)
		if text == "" {
			return nil, nil
		}
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errors.New("alert threshold must be a number")
	}
	return &v, nil
}

type addProductRequest struct {
	URL                  string          `json:"url"`
	Site                 string          `json:"site"`
	PriceSelector        string          `json:"price_selector"`
	AvailabilitySelector string          `json:"availability_selector"`
	AlertThreshold       json.RawMessage `json:"alert_threshold"`
}

// handleAddProduct validates input before anything is stored
func (h *TrackerHandler) handleAddProduct(w http.ResponseWriter, req *http.Request) {
	var body addProductRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if body.Site != "" {
		preset, ok := lookupPreset(body.Site)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown site %q", body.Site))
			return
		}
		if body.PriceSelector == "" {
			body.PriceSelector = preset.Price
		}
		if body.AvailabilitySelector == "" {
			body.AvailabilitySelector = preset.Availability
		}
	}

	body.URL = strings.TrimSpace(body.URL)
	if body.URL == "" || strings.TrimSpace(body.PriceSelector) == "" {
		writeError(w, http.StatusBadRequest, "URL and price selector are required")
		return
	}
	if err := validateURL(body.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := parseThreshold(body.AlertThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.products.CreateProduct(req.Context(), body.URL, body.PriceSelector, body.AvailabilitySelector, threshold)
	if err != nil {
		h.logger.Error("failed to create product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to store product")
		return
	}
	h.logger.Info("product added", zap.Int64("product_id", id), zap.String("url", body.URL))

	if err := h.display.Refresh(req.Context()); err != nil {
		h.logger.Warn("display refresh after add failed", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                    id,
		"url":                   body.URL,
		"price_selector":        body.PriceSelector,
		"availability_selector": body.AvailabilitySelector,
		"alert_threshold":       threshold,
	})
}

func (h *TrackerHandler) handleListProducts(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": h.display.Rows(),
	})
}

func (h *TrackerHandler) handleHistory(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	rows, err := h.display.History(req.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", zap.Int64("product_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": id,
		"history":    rows,
	})
}

func (h *TrackerHandler) handlePresets(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, PredefinedSelectors)
}

func (h *TrackerHandler) handleTrackingState(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": h.tracker.State().String()})
}

func (h *TrackerHandler) handleStart(w http.ResponseWriter, req *http.Request) {
	var body struct {
		IntervalMinutes *int `json:"interval_minutes"`
	}
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	interval := h.defaultInterval
	if body.IntervalMinutes != nil {
		if *body.IntervalMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "Interval must be a positive number of minutes")
			return
		}
		interval = time.Duration(*body.IntervalMinutes) * time.Minute
	}

	if err := h.tracker.Start(h.baseCtx, interval); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"state":    h.tracker.State().String(),
		"interval": interval.String(),
	})
}

func (h *TrackerHandler) handleStop(w http.ResponseWriter, req *http.Request) {
	h.tracker.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": h.tracker.State().String()})
}

func (h *TrackerHandler) handleScrapeNow(w http.ResponseWriter, req *http.Request) {
	err := h.tracker.ScrapeNow(h.baseCtx)
	switch {
	case errors.Is(err, scheduler.ErrTrackingRunning):
		writeError(w, http.StatusConflict, "Tracking is already running")
		return
	case err != nil:
		h.logger.Error("manual scrape failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Scrape failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Scrape completed"})
}

func (h *TrackerHandler) handleAlerts(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": h.display.Alerts(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
