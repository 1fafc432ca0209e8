package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/services"
)

// CardSearcher finds cards by name in the lookup service
type CardSearcher interface {
	SearchCards(ctx context.Context, query string) ([]services.CardMetadata, error)
}

type CardHandler struct {
	searcher CardSearcher
	log      logrus.FieldLogger
}

func NewCardHandler(searcher CardSearcher, log logrus.FieldLogger) *CardHandler {
	return &CardHandler{
		searcher: searcher,
		log:      log,
	}
}

// SearchCards looks up cards by name so a client can pick a printing before adding it
func (h *CardHandler) SearchCards(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	cards, err := h.searcher.SearchCards(c.Request.Context(), query)
	if err != nil {
		h.log.Warnf("API: card search for %q failed: %v", query, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "card search is unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cards":       cards,
		"total_count": len(cards),
	})
}
