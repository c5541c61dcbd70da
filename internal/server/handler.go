package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/Dee-Olulo/OCR-system/internal/export"
	"github.com/Dee-Olulo/OCR-system/internal/extraction"
	"github.com/Dee-Olulo/OCR-system/internal/insurer"
	"github.com/Dee-Olulo/OCR-system/internal/pipeline"
	"github.com/Dee-Olulo/OCR-system/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OutcomeStore is the persistence surface the handler needs.
type OutcomeStore interface {
	Create(ctx context.Context, outcome *entity.ExtractionOutcome) error
	GetByID(ctx context.Context, id string) (*entity.ExtractionOutcome, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ExtractionOutcome, error)
}

// Handler exposes the extraction pipeline over HTTP. The serving layer stays
// thin: all extraction semantics live in the core packages.
type Handler struct {
	pipeline *pipeline.Service
	mapper   *insurer.Mapper
	outcomes OutcomeStore
	exporter *export.Exporter
	client   extraction.CompletionClient
	logger   *zap.Logger
}

// NewHandler creates an HTTP handler
func NewHandler(
	pipelineSvc *pipeline.Service,
	mapper *insurer.Mapper,
	outcomes OutcomeStore,
	exporter *export.Exporter,
	client extraction.CompletionClient,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		pipeline: pipelineSvc,
		mapper:   mapper,
		outcomes: outcomes,
		exporter: exporter,
		client:   client,
		logger:   logger,
	}
}

// Register mounts all routes
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.POST("/extract", h.extract)
	api.GET("/insurers", h.listInsurers)
	api.GET("/outcomes", h.listOutcomes)
	api.GET("/outcomes/:id", h.getOutcome)
	api.GET("/outcomes/:id/export", h.exportOutcome)
}

type extractRequest struct {
	Text    string `json:"text" binding:"required"`
	Insurer string `json:"insurer"`
}

func (h *Handler) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	if !h.client.Available(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "completion service is not reachable",
		})
		return
	}

	outcome, err := h.pipeline.Process(c.Request.Context(), req.Text, req.Insurer)
	if err != nil {
		h.respondPipelineError(c, err)
		return
	}

	if err := h.outcomes.Create(c.Request.Context(), outcome); err != nil {
		h.logger.Error("Failed to persist outcome", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist outcome"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) respondPipelineError(c *gin.Context, err error) {
	var notFound *insurer.ConfigNotFoundError
	switch {
	case errors.Is(err, pipeline.ErrNoInsurerDetected):
		available, _ := h.mapper.ListAvailable()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "could not detect insurer; pass \"insurer\" explicitly",
			"available": available,
		})
	case errors.As(err, &notFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("unknown insurer %q", notFound.Key),
			"available": notFound.Available,
		})
	default:
		h.logger.Error("Extraction pipeline failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
	}
}

func (h *Handler) listInsurers(c *gin.Context) {
	keys, err := h.mapper.ListAvailable()
	if err != nil {
		h.logger.Error("Failed to list insurers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list insurers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"insurers": keys})
}

func (h *Handler) listOutcomes(c *gin.Context) {
	outcomes, err := h.outcomes.ListRecent(c.Request.Context(), 20)
	if err != nil {
		h.logger.Error("Failed to list outcomes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list outcomes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

func (h *Handler) getOutcome(c *gin.Context) {
	outcome, err := h.outcomes.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOutcomeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "outcome not found"})
			return
		}
		h.logger.Error("Failed to load outcome", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load outcome"})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) exportOutcome(c *gin.Context) {
	outcome, err := h.outcomes.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrOutcomeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "outcome not found"})
			return
		}
		h.logger.Error("Failed to load outcome", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load outcome"})
		return
	}

	workbook, err := h.exporter.Workbook(outcome)
	if err != nil {
		h.logger.Error("Failed to build workbook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build workbook"})
		return
	}
	defer workbook.Close()

	buf, err := workbook.WriteToBuffer()
	if err != nil {
		h.logger.Error("Failed to render workbook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render workbook"})
		return
	}

	filename := fmt.Sprintf("outcome_%s.xlsx", outcome.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"model_available": h.client.Available(c.Request.Context()),
	})
}
