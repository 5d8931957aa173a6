package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/store"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// StockReader is the read side of the store used by the API
type StockReader interface {
	ListStocks(ctx context.Context, f store.StockFilter) ([]contracts.Stock, int, error)
	GetStockByTicker(ctx context.Context, ticker string) (*contracts.Stock, error)
	ListSnapshots(ctx context.Context, stockID int64) ([]contracts.StockSnapshot, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
}

// StockHandler serves stocks, snapshots and category counts
// ⭐ SSOT: 종목 조회 API 핸들러는 이 구조체에서만
type StockHandler struct {
	repo   StockReader
	cache  *redis.Cache
	logger *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(repo StockReader, cache *redis.Cache, log *logger.Logger) *StockHandler {
	return &StockHandler{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

// StockPage is the paginated stock list payload
type StockPage struct {
	Stocks []contracts.Stock `json:"stocks"`
	Total  int               `json:"total"`
	Page   int               `json:"page"`
	Limit  int               `json:"limit"`
}

// CategoryCount is one row of GET /api/categories
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// StockDetail is a stock with its weekly snapshots
type StockDetail struct {
	Stock     *contracts.Stock          `json:"stock"`
	Snapshots []contracts.StockSnapshot `json:"snapshots"`
}

// ListStocks returns a page of stocks, optionally filtered by category
// GET /api/stocks?category=Tech&page=1&limit=20
func (h *StockHandler) ListStocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	category := r.URL.Query().Get("category")
	if category != "" && !contracts.IsKnownCategory(category) {
		respondError(w, http.StatusBadRequest, "Unknown category: "+category)
		return
	}

	page, ok := queryInt(r, "page", 1)
	if !ok {
		respondError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxLimit)

	var result StockPage
	err := h.cache.GetOrSet(ctx, redis.StockListKey(category, page, limit), &result, redis.TTLShort, func() (interface{}, error) {
		stocks, total, err := h.repo.ListStocks(ctx, store.StockFilter{
			Category: category,
			Limit:    limit,
			Offset:   (page - 1) * limit,
		})
		if err != nil {
			return nil, err
		}
		if stocks == nil {
			stocks = []contracts.Stock{}
		}
		return StockPage{Stocks: stocks, Total: total, Page: page, Limit: limit}, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list stocks")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stocks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    result,
	})
}

// GetStock returns one stock and its snapshots ordered by week
// GET /api/stocks/{ticker}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticker := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["ticker"]))

	var detail StockDetail
	err := h.cache.GetOrSet(ctx, redis.StockKey(ticker), &detail, redis.TTLShort, func() (interface{}, error) {
		stock, err := h.repo.GetStockByTicker(ctx, ticker)
		if err != nil {
			return nil, err
		}
		snapshots, err := h.repo.ListSnapshots(ctx, stock.ID)
		if err != nil {
			return nil, err
		}
		if snapshots == nil {
			snapshots = []contracts.StockSnapshot{}
		}
		return StockDetail{Stock: stock, Snapshots: snapshots}, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Stock not found: "+ticker)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to get stock")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve stock")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    detail,
	})
}

// GetCategories returns every category with its stock count, taxonomy order
// first, then Others and Unclassified
// GET /api/categories
func (h *StockHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var counts []CategoryCount
	err := h.cache.GetOrSet(ctx, redis.CategoryCountsKey(), &counts, redis.TTLMedium, func() (interface{}, error) {
		byCategory, err := h.repo.CategoryCounts(ctx)
		if err != nil {
			return nil, err
		}

		labels := append(append([]string{}, contracts.Taxonomy...), contracts.CategoryOthers, contracts.CategoryUnclassified)
		out := make([]CategoryCount, 0, len(labels))
		for _, label := range labels {
			out = append(out, CategoryCount{Category: label, Count: byCategory[label]})
		}
		return out, nil
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to count categories")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve categories")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    counts,
	})
}
