package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costargen/costargen/internal/buildinfo"
	"github.com/costargen/costargen/internal/config"
	"github.com/costargen/costargen/internal/costar"
	"github.com/costargen/costargen/internal/generate"
	log "github.com/costargen/costargen/internal/logging"
	"github.com/costargen/costargen/internal/quota"
)

// generateRequest is the POST /v1/generate body. Fields mirror the six
// COSTAR sections; only context and objective are required.
type generateRequest struct {
	Context   string `json:"context"`
	Objective string `json:"objective"`
	Style     string `json:"style"`
	Tone      string `json:"tone"`
	Audience  string `json:"audience"`
	Response  string `json:"response"`
}

func (r generateRequest) sections() costar.Sections {
	return costar.Sections{
		Context:   r.Context,
		Objective: r.Objective,
		Style:     r.Style,
		Tone:      r.Tone,
		Audience:  r.Audience,
		Response:  r.Response,
	}
}

// generateResponse is the success body for POST /v1/generate.
type generateResponse struct {
	RenderedText   string `json:"rendered_text"`
	ProviderUsed   string `json:"provider_used"`
	Degraded       bool   `json:"degraded"`
	Attempts       int    `json:"attempts"`
	QuotaRemaining int    `json:"quota_remaining"`
}

func subjectFrom(c *gin.Context) generate.Subject {
	plan, _ := config.ParsePlan(c.GetString(ctxPlanKey))
	return generate.Subject{
		ID:        c.GetString(ctxSubjectKey),
		Plan:      plan,
		Anonymous: c.GetBool(ctxAnonymousKey),
	}
}

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.service.Generate(c.Request.Context(), subjectFrom(c), req.sections())
	if err != nil {
		s.writeGenerateError(c, err)
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		RenderedText:   result.RenderedText,
		ProviderUsed:   result.ProviderUsed,
		Degraded:       result.Degraded,
		Attempts:       result.Attempts,
		QuotaRemaining: result.Quota.Remaining,
	})
}

func (s *Server) writeGenerateError(c *gin.Context, err error) {
	var quotaErr *generate.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "quota exceeded",
			"limit":      quotaErr.Decision.Limit,
			"used":       quotaErr.Decision.Used,
			"reset_time": quotaErr.Decision.ResetTime.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, quota.ErrPersistenceUnavailable):
		log.WithError(err).Errorf("Quota store unavailable, refusing request")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "quota accounting unavailable, try again later",
		})
	default:
		// Generation itself cannot fail once admitted; anything else
		// is a validation problem with the sections.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleQuota(c *gin.Context) {
	decision, err := s.service.Quota(c.Request.Context(), subjectFrom(c))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "quota accounting unavailable, try again later",
		})
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleProviders(c *gin.Context) {
	resp := gin.H{
		"providers": s.registry.Statuses(),
		"next":      s.registry.NextAvailable(),
	}
	if c.Query("probe") == "1" {
		resp["probe"] = s.registry.Probe(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUsage(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	report, err := s.recorder.Stats(c.Request.Context(), since)
	if err != nil {
		log.WithError(err).Errorf("Failed to assemble usage report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query usage"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": s.registry.Len(),
	})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
	})
}
