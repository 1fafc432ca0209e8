package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/codyseavey/tcg-inventory/internal/services"
)

type ImportHandler struct {
	collection     *services.CollectionService
	maxUploadBytes int64
	log            logrus.FieldLogger
}

func NewImportHandler(collection *services.CollectionService, maxUploadBytes int64, log logrus.FieldLogger) *ImportHandler {
	return &ImportHandler{
		collection:     collection,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// readUpload returns the name and content of the multipart "file" field
func (h *ImportHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds the size limit"})
			return "", nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", nil, false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return "", nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return "", nil, false
	}
	return file.Filename, data, true
}

// Import merges an uploaded CSV or XLSX file into the caller's inventory. Rows are
// merged before the response; metadata lookups continue in the background.
func (h *ImportHandler) Import(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	opts := services.ImportOptions{
		CreateTemplate: formBool(c, "create_template"),
		TemplateName:   c.PostForm("template_name"),
		MakePublic:     formBool(c, "make_public"),
	}

	result, err := h.collection.ImportFile(c.Request.Context(), ownerID(c), filename, data, opts)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// Analyze describes how an upload would be read without importing it
func (h *ImportHandler) Analyze(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	analysis, err := h.collection.Analyze(filename, data)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Progress returns the caller's latest job state
func (h *ImportHandler) Progress(c *gin.Context) {
	c.JSON(http.StatusOK, h.collection.Poll(ownerID(c)))
}

func formBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

// bodyTooLarge reports whether err came from the MaxBytesReader limit. Some multipart
// paths flatten the error to its message.
func bodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}
