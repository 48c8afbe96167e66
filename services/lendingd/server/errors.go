package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lendingpool/core"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/flashloan"
	"lendingpool/native/lending"
	"lendingpool/native/token"
)

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

// statusFor maps protocol errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest), errors.Is(err, core.ErrUnknownModule):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrUnauthorized), errors.Is(err, core.ErrUnauthorized),
		errors.Is(err, token.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrUnknownReserve), errors.Is(err, lending.ErrNoPosition),
		errors.Is(err, token.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	}
	msg := err.Error()
	for _, prefix := range []string{"lending engine:", "token:", "flashloan:"} {
		if strings.HasPrefix(msg, prefix) {
			return http.StatusConflict
		}
	}
	if errors.Is(err, flashloan.ErrNotRepaid) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure renders err with its mapped status. Internal errors are not
// echoed to the client.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
