// Package api implements the optional HTTP/WebSocket job surface
// (SPEC_FULL.md C15): submit a join job against CSV tables, poll its
// status and result over REST, and watch per-phase metrics stream over
// a websocket hub as the job runs. Grounded on the teacher's
// internal/api (gin router, gorilla/websocket Hub, bearer-token auth,
// per-IP rate limiting) with the Bitcoin-forensics handlers replaced by
// job submission/status/result endpoints over internal/engine.
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires the job API's routes. jobs and wsHub must both be
// non-nil: /stream is served by wsHub.Subscribe. Persistence is whatever
// store the JobManager was built with, which may be nil.
func SetupRouter(jobs *JobManager, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
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
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &JobHandler{jobs: jobs}

	// ── Public endpoints (no auth) ─────────────────────────────
	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	// ── Protected endpoints (require bearer token if API_AUTH_TOKEN set) ──
	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	// Rate-limit job submission to 30 req/min per IP (burst=5): building
	// a join tree means loading every node's CSV from disk, so an
	// unbounded submission rate is a real resource-exhaustion vector.
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		jobsGroup := auth.Group("/jobs")
		jobsGroup.POST("", handler.handleSubmitJob)
		jobsGroup.GET("/:id", handler.handleGetJob)
		jobsGroup.GET("/:id/result", handler.handleGetJobResult)
		jobsGroup.GET("/:id/metrics", handler.handleGetJobMetrics)
	}

	return r
}

// JobHandler serves the job API's endpoints.
type JobHandler struct {
	jobs *JobManager
}

// handleHealth reports service status for discovery/readiness probes.
func (h *JobHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "oblivious-band-join",
	})
}

// handleSubmitJob accepts a JobRequest, starts the join in the
// background, and returns the new job's id for polling/streaming.
//
// POST /api/v1/jobs
func (h *JobHandler) handleSubmitJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	job, err := h.jobs.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     job.ID,
		"status": job.Status,
	})
}

// handleGetJob reports a job's current status.
//
// GET /api/v1/jobs/:id
func (h *JobHandler) handleGetJob(c *gin.Context) {
	job := h.jobs.Get(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         job.ID,
		"status":     job.Status,
		"createdAt":  job.CreatedAt,
		"finishedAt": job.FinishedAt,
		"error":      job.Error,
	})
}

// handleGetJobResult returns a finished job's joined rows.
//
// GET /api/v1/jobs/:id/result
func (h *JobHandler) handleGetJobResult(c *gin.Context) {
	job := h.jobs.Get(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Status != StatusDone {
		c.JSON(http.StatusConflict, gin.H{"error": "job has not finished", "status": job.Status})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"columns": job.Columns,
		"rows":    job.Result,
	})
}

// handleGetJobMetrics returns a finished job's per-phase metrics.
//
// GET /api/v1/jobs/:id/metrics
func (h *JobHandler) handleGetJobMetrics(c *gin.Context) {
	job := h.jobs.Get(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if job.Metrics == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "job has not produced metrics yet", "status": job.Status})
		return
	}
	c.JSON(http.StatusOK, job.Metrics)
}
