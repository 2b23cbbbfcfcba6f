// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/labelhub/internal/auth"
	"github.com/holomush/labelhub/pkg/errutil"
)

// Client-facing messages.
const (
	msgServerError     = "Server error"
	msgNotLoggedIn     = "Not logged in"
	msgPleaseLogIn     = "Please log in"
	msgUserNotFound    = "User not found"
	msgEmailTaken      = "Email already exists"
	msgInvalidBody     = "Invalid request body"
	msgLogoutFailed    = "Logout failed"
	msgTooManyRequests = "Too many requests"
	msgForbidden       = "Forbidden"
)

// validationCodes are errors whose message is safe to show the client.
var validationCodes = map[string]bool{
	"AUTH_MISSING_FIELDS":      true,
	"AUTH_INVALID_EMAIL":       true,
	"AUTH_WEAK_PASSWORD":       true,
	"AUTH_INVALID_NAME":        true,
	"AUTH_INVALID_COMPANY":     true,
	"AUTH_INVALID_CREDENTIALS": true,
}

// unauthorizedCodes mean the request has no usable session.
var unauthorizedCodes = map[string]bool{
	"COOKIE_MISSING":      true,
	"COOKIE_INVALID":      true,
	"SESSION_TOKEN_EMPTY": true,
	"SESSION_INVALID":     true,
	"SESSION_EXPIRED":     true,
}

type messageBody struct {
	Message string `json:"message"`
}

// isUnauthorized reports whether err means the caller is not logged in, as
// opposed to the session store failing.
func isUnauthorized(err error) bool {
	return unauthorizedCodes[errutil.Code(err)]
}

// writeError maps a service error to a status code and a client-safe message.
// Anything unrecognised is a 500 whose detail is only logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeMessage(w, http.StatusBadRequest, msgEmailTaken)
	case validationCodes[code]:
		writeMessage(w, http.StatusBadRequest, publicMessage(err))
	case code == "AUTH_ACCOUNT_LOCKED":
		if secs := retryAfterSeconds(err); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeMessage(w, http.StatusTooManyRequests, publicMessage(err))
	case isUnauthorized(err):
		writeMessage(w, http.StatusUnauthorized, msgNotLoggedIn)
	case code == "USER_NOT_FOUND" || errors.Is(err, auth.ErrNotFound):
		writeMessage(w, http.StatusNotFound, msgUserNotFound)
	default:
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
		writeMessage(w, http.StatusInternalServerError, msgServerError)
	}
}

// publicMessage returns the message of an error built with oops Errorf.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Error()
	}
	return err.Error()
}

func retryAfterSeconds(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	raw, ok := oopsErr.Context()["retry_after"].(string)
	if !ok {
		return 0
	}
	d, perr := time.ParseDuration(raw)
	if perr != nil {
		return 0
	}
	return int(d.Round(time.Second).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageBody{Message: message})
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have disconnected
	w.Write([]byte(text))
}
