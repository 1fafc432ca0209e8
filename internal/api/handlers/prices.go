package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/services"
)

type PriceHandler struct {
	collection *services.CollectionService
	log        logrus.FieldLogger
}

func NewPriceHandler(collection *services.CollectionService, log logrus.FieldLogger) *PriceHandler {
	return &PriceHandler{
		collection: collection,
		log:        log,
	}
}

// GetAlerts lists the caller's price alerts, unread first. ?unread=true drops read ones.
func (h *PriceHandler) GetAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	alerts, err := h.collection.Alerts(ctx, ownerID(c), c.Query("unread") == "true")
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	unread, err := h.collection.UnreadAlerts(ctx, ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"unread": unread,
	})
}

func (h *PriceHandler) MarkAlertRead(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.collection.MarkAlertRead(c.Request.Context(), ownerID(c), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert marked as read"})
}
