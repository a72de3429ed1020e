package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/praisepoints/internal/middleware"
	"github.com/dukerupert/praisepoints/internal/points"
)

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, string(points.CodeInvalidInput), msg)
}

func internalError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(r.Context(), msg, "error", err, "request_id", middleware.RequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "INTERNAL", msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// writeServiceError maps domain errors to their HTTP status and hides
// everything else behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	var e *points.Error
	if !errors.As(err, &e) {
		internalError(w, r, logger, op+" failed", err)
		return
	}
	writeError(w, statusFor(e.Code), string(e.Code), e.Message)
}

func statusFor(code points.Code) int {
	switch code {
	case points.CodeNotFound:
		return http.StatusNotFound
	case points.CodeAccessDenied:
		return http.StatusForbidden
	case points.CodeConflict, points.CodeNotPending:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
