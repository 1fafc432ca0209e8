package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/database"
	"github.com/codyseavey/tcg-inventory/internal/importer"
	"github.com/codyseavey/tcg-inventory/internal/jobs"
	"github.com/codyseavey/tcg-inventory/internal/services"
)

// OwnerHeader carries the authenticated user id set by the upstream auth layer
const OwnerHeader = "X-User-ID"

const ownerKey = "owner_id"

// RequireOwner rejects requests without an owner id and stores it on the context
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(OwnerHeader))
		if owner == "" || len(owner) > 64 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + OwnerHeader + " header"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrNoneSelected),
		errors.Is(err, services.ErrEmptyTemplate):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobActive),
		errors.Is(err, services.ErrTemplateAlreadyImported),
		errors.Is(err, services.ErrDuplicateHolding):
		return http.StatusConflict
	case errors.Is(err, services.ErrNoCards),
		errors.Is(err, services.ErrNothingOwned),
		errors.Is(err, services.ErrTemplateNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrNoNameColumn),
		errors.Is(err, importer.ErrEmptyTable),
		errors.Is(err, importer.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("API: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
