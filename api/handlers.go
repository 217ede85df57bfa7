// Package api exposes the aggregator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/pipeline"
	"github.com/aluiziolira/go-scrape-prices/sources"
)

// Searcher is the aggregator surface the handlers need.
type Searcher interface {
	Search(ctx context.Context, keyword string) (*models.SearchResult, error)
	ProductPage(ctx context.Context, store, url string) (models.ProductPage, error)
	Sources() []string
}

type Handlers struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewHandlers(searcher Searcher, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		searcher: searcher,
		logger:   logger.With("component", "api"),
	}
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Keyword string `json:"keyword"`
}

// SearchResponse is a search result with its listing count.
type SearchResponse struct {
	*models.SearchResult
	Count int `json:"count"`
}

// Search handles keyword searches across all stores.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		h.respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	result, err := h.searcher.Search(r.Context(), req.Keyword)
	switch {
	case errors.Is(err, pipeline.ErrEmptyKeyword):
		h.respondError(w, http.StatusBadRequest, "keyword is required")
		return
	case errors.Is(err, pipeline.ErrAllSourcesFailed):
		h.logger.Warn("search failed on every store", "keyword", req.Keyword, "error", err)
		h.respondError(w, http.StatusBadGateway, "no store could be queried")
		return
	case err != nil:
		h.logger.Error("search failed", "keyword", req.Keyword, "error", err)
		h.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.respondJSON(w, http.StatusOK, SearchResponse{SearchResult: result, Count: result.Count()})
}

// ProductPage reads one product's current price and stock state.
func (h *Handlers) ProductPage(w http.ResponseWriter, r *http.Request) {
	store := strings.TrimSpace(r.URL.Query().Get("store"))
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if store == "" || url == "" {
		h.respondError(w, http.StatusBadRequest, "store and url are required")
		return
	}

	page, err := h.searcher.ProductPage(r.Context(), store, url)
	if errors.Is(err, sources.ErrUnknownSource) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Warn("product page failed", "store", store, "url", url, "error", err)
		h.respondError(w, http.StatusBadGateway, "store could not be queried")
		return
	}
	h.respondJSON(w, http.StatusOK, page)
}

// Stores lists the stores searched by this instance.
func (h *Handlers) Stores(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string][]string{"stores": h.searcher.Sources()})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
