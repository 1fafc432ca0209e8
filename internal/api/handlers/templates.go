package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/services"
)

type TemplateHandler struct {
	templates *services.TemplateService
	log       logrus.FieldLogger
}

func NewTemplateHandler(templates *services.TemplateService, log logrus.FieldLogger) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		log:       log,
	}
}

// GetTemplates lists the caller's templates and every public one
func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context(), ownerID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

// ImportTemplate copies a template into the caller's inventory
func (h *TemplateHandler) ImportTemplate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result, err := h.templates.Import(c.Request.Context(), ownerID(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}
