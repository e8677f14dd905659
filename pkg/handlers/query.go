package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
	"github.com/queryhaven/queryhaven-engine/pkg/services"
)

// maxQuestionLength bounds incoming questions; anything longer is almost
// certainly not a business question.
const maxQuestionLength = 2000

// QueryHandler exposes the query pipeline over HTTP: a synchronous
// endpoint returning the terminal result, and an SSE endpoint streaming
// stage transitions and generation chunks.
type QueryHandler struct {
	orchestrator services.QueryOrchestrator
	logger       *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(orchestrator services.QueryOrchestrator, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("POST /api/query/stream", h.QueryStream)
}

func (h *QueryHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.QueryRequest, bool) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "empty_question", "Question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	if len(req.Question) > maxQuestionLength {
		if err := ErrorResponse(w, http.StatusBadRequest, "question_too_long", "Question exceeds the maximum length"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return &req, true
}

// Query handles POST /api/query requests.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	h.logger.Info("Query received",
		zap.String("question", logging.SanitizeQuestion(req.Question)),
		zap.String("session_id", req.SessionID))

	result := h.orchestrator.ProcessQuery(r.Context(), req)

	status := http.StatusOK
	if result.Failed() {
		status = http.StatusUnprocessableEntity
	}
	if err := WriteJSON(w, status, result); err != nil {
		h.logger.Error("Failed to encode query response", zap.Error(err))
	}
}

// QueryStream handles POST /api/query/stream requests. Each pipeline
// stage transition and generation chunk is written as one SSE data event;
// the terminal result is the final event.
func (h *QueryHandler) QueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("SSE not supported")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "SSE not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	eventChan := make(chan models.ProgressEvent, 100)
	resultChan := make(chan *models.QueryResult, 1)

	go func() {
		defer close(eventChan)
		result := h.orchestrator.ProcessQueryStream(r.Context(), req, func(event models.ProgressEvent) {
			select {
			case eventChan <- event:
			case <-r.Context().Done():
			}
		})
		resultChan <- result
	}()

	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	result := <-resultChan
	data, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("Failed to marshal result", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	flusher.Flush()
}
