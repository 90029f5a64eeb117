package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// known maps server messages back to the shared sentinels.
var known = map[string]error{}

func init() {
	for _, err := range []error{
		common.ErrValidation,
		common.ErrInvalidCredentials,
		common.ErrUserAlreadyExists,
		common.ErrNoTokenProvided,
		common.ErrInvalidToken,
		common.ErrTokenExpired,
		common.ErrForbidden,
	} {
		known[err.Error()] = err
	}
}

func mapStatus(status int, message string) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status >= http.StatusInternalServerError:
		kind = ErrUnavailable
	}

	sentinel := known[message]
	if status == http.StatusBadRequest && sentinel == nil {
		// validation messages carry detail after the sentinel text
		detail := strings.TrimPrefix(message, common.ErrValidation.Error())
		if detail == message {
			detail = ": " + message
		}
		return fmt.Errorf("%w%s", common.ErrValidation, detail)
	}

	switch {
	case kind != nil && sentinel != nil:
		return fmt.Errorf("%w: %w", kind, sentinel)
	case kind != nil:
		return fmt.Errorf("%w: %s", kind, message)
	case sentinel != nil:
		return sentinel
	default:
		return fmt.Errorf("unexpected status %d: %s", status, message)
	}
}
