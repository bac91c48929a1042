package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/poller"
	"github.com/pantrywatch/pantrywatch/internal/repository/mongodb"
	"github.com/pantrywatch/pantrywatch/internal/scheduler"
	"github.com/pantrywatch/pantrywatch/internal/service/compare"
)

// Searcher exposes the ad-hoc cross-platform search and the source health
// report of the poller.
type Searcher interface {
	SearchAll(ctx context.Context, query string, limit int) map[string][]models.Product
	SourceHealth() []poller.SourceStatus
}

// MonitorHandler exposes the engine's on-demand operations over HTTP.
type MonitorHandler struct {
	sched    *scheduler.Scheduler
	engine   *compare.Engine
	source   scheduler.InventorySource
	searcher Searcher
	repo     mongodb.Repository
	logger   *zap.Logger
}

// NewMonitorHandler constructs the HTTP handler adapter.
func NewMonitorHandler(
	sched *scheduler.Scheduler,
	engine *compare.Engine,
	source scheduler.InventorySource,
	searcher Searcher,
	repo mongodb.Repository,
	logger *zap.Logger,
) *MonitorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorHandler{
		sched:    sched,
		engine:   engine,
		source:   source,
		searcher: searcher,
		repo:     repo,
		logger:   logger,
	}
}

// Poll runs one polling cycle immediately, bypassing the schedule.
func (h *MonitorHandler) Poll(c *gin.Context) {
	summary, err := h.sched.RunPollNow(c.Request.Context())
	if err != nil {
		h.logger.Error("ad-hoc poll failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "polling cycle failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

type compareRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

// Compare returns the current best-price view for one item from the ledger.
func (h *MonitorHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, ok, err := h.findItem(c.Request.Context(), req.ItemID)
	if err != nil {
		h.logger.Error("failed to load inventory", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "inventory unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown item"})
		return
	}

	platforms := make([]string, 0)
	for _, status := range h.searcher.SourceHealth() {
		platforms = append(platforms, status.Platform)
	}

	c.JSON(http.StatusOK, h.engine.Compare(item, platforms))
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// Search queries every registered platform live, isolating failures.
func (h *MonitorHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	c.JSON(http.StatusOK, h.searcher.SearchAll(ctx, req.Query, req.Limit))
}

// GenerateList evaluates restock triggers and builds a draft list now.
func (h *MonitorHandler) GenerateList(c *gin.Context) {
	list, err := h.sched.GenerateListNow(c.Request.Context())
	if err != nil {
		h.logger.Error("ad-hoc list generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "list generation failed"})
		return
	}

	c.JSON(http.StatusCreated, list)
}

// GetList loads a previously generated list.
func (h *MonitorHandler) GetList(c *gin.Context) {
	list, err := h.repo.GetShoppingList(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}

	c.JSON(http.StatusOK, list)
}

// SourceHealth reports per-platform consecutive failed cycles so operators
// can spot persistently failing sources.
func (h *MonitorHandler) SourceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.searcher.SourceHealth())
}

func (h *MonitorHandler) findItem(ctx context.Context, itemID string) (models.InventoryItem, bool, error) {
	items, err := h.source.Items(ctx)
	if err != nil {
		return models.InventoryItem{}, false, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return item, true, nil
		}
	}
	return models.InventoryItem{}, false, nil
}
