package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"

	"FinVision/internal/dashboard"
	"FinVision/internal/model"
)

// MaxUploadBytes caps the size of an uploaded chart image.
const MaxUploadBytes = 10 << 20

// Dashboard is the orchestrator surface exposed over HTTP.
type Dashboard interface {
	Select(id model.AssetID) dashboard.View
	Resolve(ctx context.Context) dashboard.View
	Refresh(ctx context.Context) (dashboard.View, error)
	Lookup(ctx context.Context, id model.AssetID) dashboard.View
	AnalyzeImage(ctx context.Context, image []byte, mimeType string) (dashboard.View, error)
}

// errorResponse is returned for failed requests. View is set when the
// failure still left a renderable state.
type errorResponse struct {
	Error string          `json:"error"`
	View  *dashboard.View `json:"view,omitempty"`
}

type Handler struct {
	dashboard Dashboard
}

// NewRouter builds the HTTP engine with health check and API routes.
func NewRouter(d Dashboard) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = MaxUploadBytes
	r.Use(gin.Recovery(), requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	SetupRoutes(r.Group("/api"), d)
	return r
}

// SetupRoutes registers the dashboard routes on r.
func SetupRoutes(r *gin.RouterGroup, d Dashboard) *Handler {
	h := &Handler{dashboard: d}

	r.GET("/view", h.GetView)
	r.POST("/select/:asset", h.SelectAsset)
	r.POST("/refresh", h.Refresh)
	r.GET("/assets/:asset", h.GetAsset)
	r.POST("/custom", h.UploadChart)

	return h
}

// GetView resolves the current selection.
func (h *Handler) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.Resolve(c.Request.Context()))
}

// SelectAsset changes the selection and resolves it.
func (h *Handler) SelectAsset(c *gin.Context) {
	id, err := model.ParseAssetID(c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.dashboard.Select(id)
	c.JSON(http.StatusOK, h.dashboard.Resolve(c.Request.Context()))
}

// Refresh evicts and refetches the selected asset.
func (h *Handler) Refresh(c *gin.Context) {
	v, err := h.dashboard.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), View: &v})
		return
	}
	c.JSON(http.StatusOK, v)
}

// GetAsset resolves one asset without changing the selection.
func (h *Handler) GetAsset(c *gin.Context) {
	id, err := model.ParseAssetID(c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.dashboard.Lookup(c.Request.Context(), id))
}

// UploadChart digitizes the image sent in the multipart field "chart".
func (h *Handler) UploadChart(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+(1<<20))

	image, mimeType, err := readChart(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	v, err := h.dashboard.AnalyzeImage(c.Request.Context(), image, mimeType)
	switch {
	case errors.Is(err, model.ErrBusy):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), View: &v})
	case err != nil:
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), View: &v})
	default:
		c.JSON(http.StatusOK, v)
	}
}

func readChart(c *gin.Context) ([]byte, string, error) {
	fh, err := c.FormFile("chart")
	if err != nil {
		return nil, "", fmt.Errorf("multipart field \"chart\" is required: %w", err)
	}
	if fh.Size > MaxUploadBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("image is empty")
	}

	mimeType := strings.TrimSpace(strings.Split(fh.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("unsupported content type %q, expected an image", mimeType)
	}
	return data, mimeType, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
