package models

import (
	"errors"
	"fmt"
)

// ErrPendingLogoutExhausted is returned when the broker keeps reporting a
// pending logout after the cache was cleared and the exchange re-run.
var ErrPendingLogoutExhausted = errors.New("broker still reports pending logout after re-authentication")

const mvpdRequiredMessage = "This video is only available for users of participating TV providers. " +
	"Set the provider (--mso) and account credentials (--username/--password or the config file)."

// ConfigurationRequiredError is an expected failure the user can fix by
// selecting a provider and supplying credentials.
type ConfigurationRequiredError struct {
	Reason string
}

func (e *ConfigurationRequiredError) Error() string {
	if e.Reason == "" {
		return mvpdRequiredMessage
	}
	return mvpdRequiredMessage + " (" + e.Reason + ")"
}

// HostnameMismatchError aborts a credential submission whose target host is
// not the provider's declared login host. Nothing has been sent when it is returned.
type HostnameMismatchError struct {
	Expected string
	Got      string
}

func (e *HostnameMismatchError) Error() string {
	return fmt.Sprintf("unexpected login URL hostname; expected %q but got %q. Aborting before submitting credentials", e.Expected, e.Got)
}

// AuthenticationError carries a provider or broker rejection, verbatim where
// the remote side supplied a message.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// ParseError reports an expected page element that could not be found.
type ParseError struct {
	Element string
	URL     string
}

func (e *ParseError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("unable to extract %s from %s", e.Element, e.URL)
	}
	return "unable to extract " + e.Element
}

// IsExpected reports whether err is a user-actionable failure rather than a bug
// or an upstream format change.
func IsExpected(err error) bool {
	var cfgErr *ConfigurationRequiredError
	var authErr *AuthenticationError
	return errors.As(err, &cfgErr) || errors.As(err, &authErr)
}
