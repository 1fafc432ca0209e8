package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/models"
	"github.com/codyseavey/tcg-inventory/internal/services"
)

type CollectionHandler struct {
	collection      *services.CollectionService
	snapshotService *services.SnapshotService
	log             logrus.FieldLogger
}

func NewCollectionHandler(collection *services.CollectionService, snapshot *services.SnapshotService, log logrus.FieldLogger) *CollectionHandler {
	return &CollectionHandler{
		collection:      collection,
		snapshotService: snapshot,
		log:             log,
	}
}

func (h *CollectionHandler) GetInventory(c *gin.Context) {
	filter := models.InventoryFilter{
		Rarity:   c.Query("rarity"),
		Color:    c.Query("color"),
		CardType: c.Query("card_type"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
		Order:    c.Query("order"),
	}

	var ok bool
	if filter.ManaMin, ok = queryFloat(c, "mana_min"); !ok {
		return
	}
	if filter.ManaMax, ok = queryFloat(c, "mana_max"); !ok {
		return
	}
	if filter.Page, ok = queryInt(c, "page"); !ok {
		return
	}
	if filter.PageSize, ok = queryInt(c, "page_size"); !ok {
		return
	}

	page, err := h.collection.List(c.Request.Context(), ownerID(c), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func queryFloat(c *gin.Context, key string) (*float64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &v, true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}

func (h *CollectionHandler) GetStats(c *gin.Context) {
	stats, err := h.collection.Stats(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *CollectionHandler) GetCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.collection.Get(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *CollectionHandler) AddCard(c *gin.Context) {
	var req models.AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
		return
	}
	if req.Quantity > models.MaxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
		return
	}

	rec, err := h.collection.AddCard(c.Request.Context(), ownerID(c), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *CollectionHandler) UpdateCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity != nil && *req.Quantity > models.MaxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity exceeds maximum allowed (9999)"})
		return
	}

	rec, err := h.collection.UpdateCard(c.Request.Context(), ownerID(c), id, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *CollectionHandler) DeleteCard(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.collection.Delete(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "card deleted"})
}

func (h *CollectionHandler) BulkDelete(c *gin.Context) {
	var req models.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.collection.BulkDelete(c.Request.Context(), ownerID(c), req.CardIDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *CollectionHandler) DeleteAll(c *gin.Context) {
	n, err := h.collection.DeleteAll(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// RefreshMissing starts a lookup for records still missing metadata
func (h *CollectionHandler) RefreshMissing(c *gin.Context) {
	result, err := h.collection.RefreshMissing(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !result.Started {
		c.JSON(http.StatusOK, gin.H{"message": "All cards already have metadata", "started": false, "count": 0})
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h *CollectionHandler) RefreshAll(c *gin.Context) {
	result, err := h.collection.RefreshAll(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (h *CollectionHandler) RefreshSelection(c *gin.Context) {
	var req models.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.collection.RefreshSelection(c.Request.Context(), ownerID(c), req.CardIDs)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// GetValueHistory returns daily inventory value snapshots for a period
func (h *CollectionHandler) GetValueHistory(c *gin.Context) {
	history, err := h.snapshotService.History(c.Request.Context(), ownerID(c), c.DefaultQuery("period", "month"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
