package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finsight/finsight/internal/rag"
)

type queryRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// handleQuery runs one question through the pipeline. The pipeline always
// terminates in an answer, so degraded outcomes are still 200s with a typed
// error_type field; quota denial maps to 429 and an unreadable quota store
// to 503.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session_missing", "no session established", s.logger)
		return
	}

	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", s.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", s.logger)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_question", "question is required and must be at most 2000 characters", s.logger)
		return
	}

	result, err := s.pipeline.Ask(r.Context(), sess.ID, sess.IPHash, req.Question)
	if err != nil {
		// Only context cancellation reaches here; the client is gone.
		s.logger.Debug("query canceled", "error", err)
		return
	}

	status := http.StatusOK
	switch result.Outcome {
	case rag.OutcomeQuotaExceeded:
		status = http.StatusTooManyRequests
	case rag.OutcomeQuotaUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result, s.logger)
}

type usageResponse struct {
	QueriesToday int    `json:"queries_today"`
	Remaining    int    `json:"remaining"`
	DailyLimit   int    `json:"daily_limit"`
	LastQuery    string `json:"last_query,omitempty"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session_missing", "no session established", s.logger)
		return
	}

	usage, err := s.quota.Usage(r.Context(), sess.ID)
	if err != nil {
		s.logger.Error("reading usage", "error", err)
		writeError(w, http.StatusInternalServerError, "usage_failed", "could not read usage", s.logger)
		return
	}

	resp := usageResponse{
		QueriesToday: usage.QueriesToday,
		Remaining:    usage.Remaining,
		DailyLimit:   usage.DailyLimit,
	}
	if usage.LastQuery != nil {
		resp.LastQuery = usage.LastQuery.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	writeJSON(w, http.StatusOK, resp, s.logger)
}
