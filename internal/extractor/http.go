package extractor

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxEventBytes = 1 << 20

// HTTPHandler exposes health and manual trigger endpoints.
type HTTPHandler struct {
	runner  *Runner
	logger  *zap.Logger
	timeout time.Duration
	router  chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes. timeout
// bounds a single synchronous extraction.
func NewHTTPHandler(runner *Runner, logger *zap.Logger, timeout time.Duration) *HTTPHandler {
	h := &HTTPHandler{
		runner:  runner,
		logger:  logger,
		timeout: timeout,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Group(func(r chi.Router) {
		if h.timeout > 0 {
			r.Use(middleware.Timeout(h.timeout))
		}
		r.Post("/api/v1/extractions", h.handleExtraction)
		r.Post("/api/v1/extractions/check", h.handleCheck)
	})

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleExtraction(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	outcome, err := h.runner.Handle(r.Context(), ev)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Verdict == CheckIgnore {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

func (h *HTTPHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}

	verdict, err := h.runner.Check(r.Context(), ev)
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verdict": verdict,
	})
}

func (h *HTTPHandler) decodeEvent(w http.ResponseWriter, r *http.Request) (ExtractionEvent, bool) {
	var ev ExtractionEvent
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid extraction event")
		return ev, false
	}
	if ev.DatasetID == "" {
		writeError(w, http.StatusBadRequest, "dataset_id is required")
		return ev, false
	}
	return ev, true
}

func (h *HTTPHandler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDatasetLocked):
		writeError(w, http.StatusConflict, err.Error())
	case IsInputError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("extraction request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "extraction failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
