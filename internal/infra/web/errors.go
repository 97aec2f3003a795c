package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"paysession/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr maps domain errors to an HTTP status and a bounded reason code.
// Clients branch on the code, never on the message text.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrCode(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		writeErrCode(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		writeErrCode(w, http.StatusForbidden, "ACCESS_DENIED", err.Error())
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		writeErrCode(w, http.StatusConflict, domain.ReasonNotConfirmed, err.Error())
	case errors.Is(err, domain.ErrAmountMismatch):
		writeErrCode(w, http.StatusConflict, domain.ReasonAmountMismatch, err.Error())
	case errors.Is(err, domain.ErrCannotCancel):
		writeErrCode(w, http.StatusConflict, domain.ReasonCannotCancel, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelled):
		writeErrCode(w, http.StatusConflict, domain.ReasonAlreadyCancelled, err.Error())
	case errors.Is(err, domain.ErrActiveSessionExists):
		writeErrCode(w, http.StatusConflict, "ACTIVE_SESSION_EXISTS", err.Error())
	case errors.Is(err, domain.ErrSessionNotActive):
		writeErrCode(w, http.StatusConflict, "SESSION_NOT_ACTIVE", err.Error())
	case errors.Is(err, domain.ErrFreeAllowanceUsed):
		writeErrCode(w, http.StatusConflict, domain.ReasonAllowanceUsed, err.Error())
	case errors.Is(err, domain.ErrInvalidDuration):
		writeErrCode(w, http.StatusBadRequest, domain.ReasonDurationRequired, err.Error())
	case errors.Is(err, domain.ErrPriceQuoteRequired):
		writeErrCode(w, http.StatusPaymentRequired, "PAYMENT_REQUIRED", err.Error())
	case errors.Is(err, domain.ErrTokenInvalid):
		writeErrCode(w, http.StatusUnauthorized, "TOKEN_INVALID", err.Error())
	case errors.Is(err, domain.ErrGenerationFailed):
		writeErrCode(w, http.StatusBadGateway, "GENERATION_FAILED", err.Error())
	default:
		writeErrCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
