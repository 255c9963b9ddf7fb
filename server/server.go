// Package server - HTTP API for photo classification.
package server

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nutritrack/foodvision/common"
	"github.com/nutritrack/foodvision/nutrition"
	"github.com/nutritrack/foodvision/service"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ImageField is the multipart form field carrying the photo.
const ImageField = "image"

// multipartOverhead bounds the boundaries and part headers around the photo.
const multipartOverhead = 64 << 10

// Analyzer classifies a photo.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, k int) (*service.Result, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Handler serves the classification endpoints.
type Handler struct {
	analyzer Analyzer
	catalog  *nutrition.Catalog
	loadErr  error
	maxBytes int64
	logger   *zap.Logger
}

// NewHandler creates a handler.
//
// Arguments:
//   - analyzer: The analyzer, nil when the model failed to load.
//   - loadErr: The model load error reported while analyzer is nil.
//   - maxBytes: The upload size limit.
//   - logger: The logger.
//
// Returns:
//   - *Handler: The handler.
func NewHandler(analyzer Analyzer, loadErr error, maxBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil && loadErr == nil {
		loadErr = errors.Wrap(common.ErrModelUnavailable, "classifier not initialized")
	}
	return &Handler{
		analyzer: analyzer,
		catalog:  nutrition.DefaultCatalog(),
		loadErr:  loadErr,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// WithCatalog replaces the embedded food catalog used by the search endpoint.
func (h *Handler) WithCatalog(catalog *nutrition.Catalog) *Handler {
	if catalog != nil {
		h.catalog = catalog
	}
	return h
}

// NewRouter registers the routes on a new gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = h.maxBytes

	r.GET("/healthz", h.Health)
	v1 := r.Group("/v1")
	v1.POST("/classify", h.Classify)
	v1.GET("/foods", h.SearchFoods)
	return r
}

// Health reports whether the model is available.
func (h *Handler) Health(c *gin.Context) {
	if h.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": h.loadErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Classify accepts a raw image body or a multipart "image" field and an optional k.
func (h *Handler) Classify(c *gin.Context) {
	if h.analyzer == nil {
		h.fail(c, h.loadErr)
		return
	}

	k := 0
	if raw := c.Query("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.fail(c, errors.Wrapf(common.ErrInvalidArgument, "k must be a positive integer, got %q", raw))
			return
		}
		k = v
	}

	data, err := h.readImage(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), data, k)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchFoods looks up a food by free text in the catalog, e.g. GET /v1/foods?q=banana.
// It works without a loaded model.
func (h *Handler) SearchFoods(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		h.fail(c, errors.Wrap(common.ErrInvalidArgument, "q is required"))
		return
	}
	food, ok := h.catalog.Lookup(query)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no food matches " + strconv.Quote(query), Kind: "not_found"})
		return
	}
	c.JSON(http.StatusOK, food.Item())
}

func (h *Handler) readImage(c *gin.Context) ([]byte, error) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
		header, err := c.FormFile(ImageField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, errors.Wrapf(common.ErrInvalidArgument, "image exceeds %d bytes", h.maxBytes)
			}
			return nil, errors.Wrapf(common.ErrInvalidArgument, "no %q form field: %v", ImageField, err)
		}
		if header.Size > h.maxBytes {
			return nil, errors.Wrapf(common.ErrInvalidArgument, "image exceeds %d bytes", h.maxBytes)
		}
		f, err := header.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request body")
	}
	if int64(len(data)) > h.maxBytes {
		return nil, errors.Wrapf(common.ErrInvalidArgument, "image exceeds %d bytes", h.maxBytes)
	}
	return data, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	kind := common.Kind(err)
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("status", status),
		zap.Bool("user_facing", common.IsUserFacing(err)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Info("request rejected", fields...)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	switch common.Kind(err) {
	case common.KindDecode, common.KindInvalidArgument:
		return http.StatusBadRequest
	case common.KindModelUnavailable:
		return http.StatusServiceUnavailable
	case common.KindTimeout:
		return http.StatusGatewayTimeout
	case common.KindInference:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
