// Package apperr declares the business error kinds shared by every store and
// maps them to HTTP status codes at the dashboard boundary.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrProjectNotRegistered = errors.New("project not registered")
	ErrVersionNotFound      = errors.New("version not found")
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrEpicNotFound         = errors.New("epic not found")
	ErrFeatureNotFound      = errors.New("feature not found")
	ErrScenarioNotFound     = errors.New("scenario not found")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrBugNotFound          = errors.New("bug not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrStatusKeyNotFound    = errors.New("status key not found")

	ErrDuplicateProject     = errors.New("project already exists")
	ErrDuplicateVersion     = errors.New("version already exists")
	ErrDuplicateTicket      = errors.New("ticket reference already exists")
	ErrDuplicateUser        = errors.New("user already exists")
	ErrDuplicateTestResults = errors.New("test results already recorded for this date")

	ErrProjectNameInvalid        = errors.New("invalid project name")
	ErrUnknownStatus             = errors.New("unknown status")
	ErrStatusTransitionForbidden = errors.New("status transition forbidden")
	ErrMalformedInput            = errors.New("malformed input")
	ErrIncorrectFieldsRequest    = errors.New("incorrect fields in request")
	ErrMissingField              = errors.New("missing field")
	ErrEmptyPayload              = errors.New("empty payload")

	ErrInvalidSignature = errors.New("invalid token signature")
	ErrCredentials      = errors.New("could not validate credentials")
	ErrAccessDenied     = errors.New("access denied")

	ErrInsertion   = errors.New("insertion acknowledged no row")
	ErrUpdate      = errors.New("update acknowledged no row")
	ErrUnavailable = errors.New("service unavailable")
)

var statusByKind = []struct {
	kind   error
	status int
}{
	{ErrProjectNotRegistered, http.StatusNotFound},
	{ErrVersionNotFound, http.StatusNotFound},
	{ErrTicketNotFound, http.StatusNotFound},
	{ErrEpicNotFound, http.StatusNotFound},
	{ErrFeatureNotFound, http.StatusNotFound},
	{ErrScenarioNotFound, http.StatusNotFound},
	{ErrCampaignNotFound, http.StatusNotFound},
	{ErrBugNotFound, http.StatusNotFound},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrStatusKeyNotFound, http.StatusNotFound},

	{ErrDuplicateProject, http.StatusConflict},
	{ErrDuplicateTicket, http.StatusConflict},
	{ErrDuplicateUser, http.StatusConflict},
	{ErrDuplicateVersion, http.StatusBadRequest},
	{ErrDuplicateTestResults, http.StatusBadRequest},

	{ErrProjectNameInvalid, http.StatusBadRequest},
	{ErrUnknownStatus, http.StatusBadRequest},
	{ErrStatusTransitionForbidden, http.StatusBadRequest},
	{ErrMalformedInput, http.StatusBadRequest},
	{ErrIncorrectFieldsRequest, http.StatusBadRequest},
	{ErrMissingField, http.StatusBadRequest},
	{ErrEmptyPayload, http.StatusUnprocessableEntity},

	{ErrInvalidSignature, http.StatusUnauthorized},
	{ErrCredentials, http.StatusUnauthorized},
	{ErrAccessDenied, http.StatusForbidden},

	{ErrInsertion, http.StatusInternalServerError},
	{ErrUpdate, http.StatusInternalServerError},
	{ErrUnavailable, http.StatusServiceUnavailable},
}

// HTTPStatus returns the status code for the first error kind found in
// err's chain, or 500 when err carries no known kind.
func HTTPStatus(err error) int {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// IsBusiness reports whether err carries one of the declared kinds.
func IsBusiness(err error) bool {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return true
		}
	}
	return false
}
