package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apierrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/pipeline"
	"shopping-assistant/internal/retrieval"
)

func respondBindError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respondError(c, apierrors.New(apierrors.ErrCodeRequestTooLarge))
		return
	}
	respondError(c, apierrors.NewWithMessage(apierrors.ErrCodeInvalidInput, err.Error()))
}

// respondPipelineError maps pipeline contract violations (for example a
// question that sanitized down to nothing) to client errors; anything else
// is an internal error.
func respondPipelineError(c *gin.Context, err error) {
	var tagged *pipeline.TaggedError
	if errors.As(err, &tagged) && tagged.Tag == "input_error" {
		respondError(c, apierrors.NewWithMessage(apierrors.ErrCodeInvalidInput, tagged.Message))
		return
	}
	respondError(c, apierrors.NewWithDetails(apierrors.ErrCodeInternalError, "", map[string]interface{}{
		"error": err.Error(),
	}))
}

// preflight runs the shared query-endpoint steps: session resolution, user
// history append and sanitization. It writes the error response itself and
// returns ok=false when the request must not reach the pipeline.
func (s *Server) preflight(c *gin.Context) (sessionID, question string, ok bool) {
	var payload models.QueryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindError(c, err)
		return "", "", false
	}

	session, err := s.deps.Sessions.GetOrCreate(c.Request.Context(), payload.SessionID)
	if err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return "", "", false
	}

	if err := s.deps.Sessions.AppendMessage(c.Request.Context(), session.ID, "user", payload.Q); err != nil {
		s.logger.Warn("history append failed", map[string]interface{}{"session_id": session.ID, "error": err.Error()})
	}

	result := s.deps.Sanitizer.Sanitize(payload.Q, s.cfg.Sanitizer.StrictMode)
	if !result.IsSafe {
		metrics.UnsafeQueriesBlocked.Inc()
		respondError(c, apierrors.NewUnsafeInputError(result.Warnings))
		return "", "", false
	}

	return session.ID, result.SanitizedText, true
}

func (s *Server) handleQuery(c *gin.Context) {
	sessionID, question, ok := s.preflight(c)
	if !ok {
		return
	}

	state, err := s.deps.Pipeline.Run(c.Request.Context(), question)
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	if err := s.deps.Sessions.AppendMessage(c.Request.Context(), sessionID, "assistant", state.Answer); err != nil {
		s.logger.Warn("history append failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"answer":            state.Answer,
			"intent":            state.Intent,
			"confidence":        state.Confidence,
			"retrieval_quality": state.RetrievalQuality,
			"context_count":     state.ContextCount,
			"quality_metrics":   state.QualityMetrics,
			"validation_failed": state.ValidationFailed,
			"session_id":        sessionID,
		},
		Meta: map[string]interface{}{
			"timestamp": time.Now().UTC(),
		},
	})
}

func (s *Server) handleQueryStream(c *gin.Context) {
	sessionID, question, ok := s.preflight(c)
	if !ok {
		return
	}

	events, err := s.deps.Pipeline.RunStream(c.Request.Context(), question)
	if err != nil {
		respondPipelineError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	var finalAnswer string
	for ev := range events {
		if ev.Type == pipeline.EventFinal {
			if answer, ok := ev.Data["answer"].(string); ok {
				finalAnswer = answer
			}
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()

	if finalAnswer != "" {
		if err := s.deps.Sessions.AppendMessage(c.Request.Context(), sessionID, "assistant", finalAnswer); err != nil {
			s.logger.Warn("history append failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}
}

func (s *Server) handleIngestDocuments(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondBindError(c, err)
		return
	}

	parsed, err := validation.ParseDocuments(raw)
	if err != nil {
		respondError(c, apierrors.NewWithMessage(apierrors.ErrCodeInvalidInput, err.Error()))
		return
	}

	if s.deps.Retriever == nil {
		respondError(c, apierrors.NewWithMessage(apierrors.ErrCodeVectorstoreError, "no retrieval backend configured"))
		return
	}

	docs := make([]retrieval.Document, 0, len(parsed))
	for _, d := range parsed {
		sanitized := s.deps.Sanitizer.Sanitize(d.TextContent(), false)
		docs = append(docs, retrieval.Document{
			ID:       d.ID,
			Title:    d.Title,
			Content:  sanitized.SanitizedText,
			Metadata: d.Metadata,
		})
	}

	if err := s.deps.Retriever.AddDocuments(c.Request.Context(), docs); err != nil {
		respondError(c, apierrors.NewIngestionError(err))
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    map[string]interface{}{"ingested": len(docs)},
	})
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	id := c.Param("id")

	session, err := s.deps.Sessions.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return
	}

	analytics, err := s.deps.Sessions.Analytics(c.Request.Context(), id)
	if err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"session":   session,
			"analytics": analytics,
		},
	})
}

func (s *Server) handleGetCart(c *gin.Context) {
	cart, err := s.deps.Sessions.Cart(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return
	}
	if cart == nil {
		cart = []models.CartItem{}
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: map[string]interface{}{"cart": cart}})
}

func (s *Server) handleAddCartItem(c *gin.Context) {
	var payload models.CartItemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := s.deps.Sessions.AddCartItem(c.Request.Context(), c.Param("id"), models.CartItem{
		Name:     payload.Name,
		SKU:      payload.SKU,
		Quantity: payload.Quantity,
		Price:    payload.Price,
		Metadata: payload.Metadata,
	})
	if err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: map[string]interface{}{"cart": session.ShoppingCart}})
}

func (s *Server) handleClearCart(c *gin.Context) {
	if err := s.deps.Sessions.ClearCart(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apierrors.AsAPIError(err))
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: map[string]interface{}{"cart": []models.CartItem{}}})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"app":         s.cfg.App.Name,
		"version":     s.cfg.App.Version,
		"environment": s.cfg.App.Environment,
		"timestamp":   time.Now().UTC(),
	})
}

func (s *Server) handleReady(c *gin.Context) {
	results := map[string]string{}
	ready := true

	for _, check := range s.deps.Readiness {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			results[check.Name] = err.Error()
			ready = false
		} else {
			results[check.Name] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": results})
}
