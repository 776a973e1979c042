// Package api exposes the three public operations of spec.md §6
// (CreateScan, GetJob, ListFindings) plus the supplemented DeleteJob and
// live-stream endpoints over HTTP, following the teacher's gin-based
// router/middleware/handler shape.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/sentryscan/internal/ingest"
	"github.com/rawblock/sentryscan/internal/store"
	"github.com/rawblock/sentryscan/pkg/models"
)

const (
	defaultFindingsLimit = 100
	maxFindingsLimit     = 1000
)

// scanner is the subset of ingest.Ingestor the API depends on.
type scanner interface {
	Scan(ctx context.Context, bucket, prefix string) (ingest.Result, error)
}

// jobReader is the subset of store.PostgresStore the API depends on.
type jobReader interface {
	GetJob(ctx context.Context, jobID string) (models.Job, error)
	CountObjectsByStatus(ctx context.Context, jobID string) (models.StatusCounts, error)
	CountFindings(ctx context.Context, jobID string) (int, error)
	ListFindings(ctx context.Context, bucket, prefix string, limit int, cursor int64) ([]models.Finding, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// APIHandler holds the dependencies shared across HTTP handlers.
type APIHandler struct {
	store   jobReader
	scanner scanner
	wsHub   *Hub
}

// SetupRouter builds the gin engine: CORS, the public health/stream
// endpoints, and the bearer-token-and-rate-limited scan/job endpoints.
// dbStore and ingestor are accepted as interfaces so the router can be
// exercised in tests against fakes instead of live infrastructure.
func SetupRouter(dbStore jobReader, ingestor scanner, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{store: dbStore, scanner: ingestor, wsHub: wsHub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	limiter := NewRateLimiter(30, 20)
	auth := r.Group("/api/v1")
	{
		auth.POST("/scans", AuthMiddleware(ScopeWrite), limiter.Middleware(costScanCreate), handler.handleCreateScan)
		auth.GET("/jobs/:id", AuthMiddleware(ScopeRead), limiter.Middleware(costRead), handler.handleGetJob)
		auth.DELETE("/jobs/:id", AuthMiddleware(ScopeWrite), limiter.Middleware(costJobDeletion), handler.handleDeleteJob)
		auth.GET("/findings", AuthMiddleware(ScopeRead), limiter.Middleware(costRead), handler.handleListFindings)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "sentryscan",
	})
}

// handleCreateScan implements CreateScan (spec.md §6).
// POST /api/v1/scans {"bucket": "...", "prefix": "..."}
func (h *APIHandler) handleCreateScan(c *gin.Context) {
	var req struct {
		Bucket string `json:"bucket"`
		Prefix string `json:"prefix"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket is required"})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context(), req.Bucket, req.Prefix)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed", "details": err.Error()})
		return
	}

	if h.wsHub != nil {
		h.wsHub.Broadcast(Event{Type: "job_created", JobID: result.JobID})
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":         result.JobID,
		"message":        "scan started",
		"object_count":   result.ObjectCount,
		"enqueued_count": result.EnqueuedCount,
	})
}

// handleGetJob implements GetJob (spec.md §6).
// GET /api/v1/jobs/:id
func (h *APIHandler) handleGetJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	ctx := c.Request.Context()
	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job", "details": err.Error()})
		return
	}

	counts, err := h.store.CountObjectsByStatus(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job status", "details": err.Error()})
		return
	}

	findingsCount, err := h.store.CountFindings(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count findings", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":         job.JobID,
		"bucket":         job.Bucket,
		"prefix":         job.Prefix,
		"status":         models.DeriveStatus(counts),
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
		"progress":       models.DeriveProgress(counts),
		"counts":         counts,
		"findings_count": findingsCount,
	})
}

// handleDeleteJob removes a job and its cascaded objects/findings. This is
// a supplemented administrative operation (spec.md's GLOSSARY defines Job
// deletion semantics implicitly via cascade FKs; no Non-goal excludes it).
func (h *APIHandler) handleDeleteJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	if err := h.store.DeleteJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "job_id": jobID})
}

// handleListFindings implements ListFindings (spec.md §6).
// GET /api/v1/findings?bucket=&prefix=&limit=&cursor=
func (h *APIHandler) handleListFindings(c *gin.Context) {
	limit := defaultFindingsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxFindingsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer in [1, 1000]"})
			return
		}
		limit = parsed
	}

	var cursor int64
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cursor must be a non-negative integer"})
			return
		}
		cursor = parsed
	}

	bucket := c.Query("bucket")
	prefix := c.Query("prefix")

	findings, err := h.store.ListFindings(c.Request.Context(), bucket, prefix, limit, cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list findings", "details": err.Error()})
		return
	}

	var nextCursor any
	if len(findings) == limit {
		nextCursor = findings[len(findings)-1].ID
	}

	out := make([]gin.H, len(findings))
	for i, f := range findings {
		out[i] = gin.H{
			"id":          strconv.FormatInt(f.ID, 10),
			"job_id":      f.JobID,
			"bucket":      f.Bucket,
			"key":         f.Key,
			"detector":    f.Detector,
			"masked_match": f.MaskedMatch,
			"context":     f.Context,
			"byte_offset": f.ByteOffset,
			"created_at":  f.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"findings":    out,
		"count":       len(findings),
		"next_cursor": nextCursor,
	})
}
