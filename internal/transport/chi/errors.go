package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talk2shop/internal/domain"
	"github.com/kailas-cloud/talk2shop/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers is the ordered sentinel-to-status chain.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrQueryRequired, http.StatusBadRequest, codeQueryRequired),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, codeDimensionMismatch),
		sentinelHandler(domain.ErrEmbeddingTimeout, http.StatusGatewayTimeout, codeEmbeddingTimeout),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrChatUnavailable, http.StatusServiceUnavailable, codeChatUnavailable),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrQueryRequired,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingTimeout,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
		domain.ErrChatUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler exposes the validation detail: it names the offending field only.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidProduct) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.internalError(w, r, err)
}

// internalError answers 500 with a generic body and logs the cause.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
