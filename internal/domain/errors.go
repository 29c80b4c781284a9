package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. They are wrapped by the typed errors below and can be
// matched with errors.Is.
var (
	ErrNotInitialized           = errors.New("connector not initialized")
	ErrInvalidCredentialsFormat = errors.New("invalid login format, expected user@domain")
	ErrMissingChallenge         = errors.New("response missing WWW-Authenticate challenge header")
	ErrUnexpectedMessageType    = errors.New("unexpected NTLM message type")
	ErrConnectionDropped        = errors.New("connection dropped during NTLM handshake")
	ErrMalformedResponse        = errors.New("malformed calendar response")
	ErrNoDirectivesFound        = errors.New("no bot directives found in event")
	ErrInvalidDirectiveLine     = errors.New("invalid directive line")
	ErrMissingProjectCode       = errors.New("no project code in directives")
	ErrAmbiguousLocalTime       = errors.New("local time is ambiguous in zone")
	ErrNonexistentLocalTime     = errors.New("local time does not exist in zone")
	ErrTimestampOutOfRange      = errors.New("timestamp outside unsigned 32-bit epoch range")
)

// ConfigError reports a missing, unparsable or invalid configuration value.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or unexpected NTLM handshake message.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ntlm protocol error: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TransportError reports a connection failure (StatusCode 0) or an
// unexpected HTTP status.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("transport error: HTTP/%d", e.StatusCode)
	}
	return fmt.Sprintf("transport error: HTTP/%d: %v", e.StatusCode, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a response body that is not text or not a valid feed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DirectiveError reports a missing directive block, a malformed directive
// line or a missing required directive. Line holds the offending line, if any.
type DirectiveError struct {
	Line string
	Err  error
}

func (e *DirectiveError) Error() string {
	if e.Line == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: '%s'", e.Err, e.Line)
}

func (e *DirectiveError) Unwrap() error { return e.Err }

// TimeError reports an invalid zone name, an unparsable timestamp or a
// local time that does not resolve to exactly one instant.
type TimeError struct {
	Value string
	Err   error
}

func (e *TimeError) Error() string {
	return fmt.Sprintf("time error: %q: %v", e.Value, e.Err)
}

func (e *TimeError) Unwrap() error { return e.Err }

// EventError attaches the identity of a calendar event to a failure that
// occurred while processing it.
type EventError struct {
	ID      string
	Subject string
	Err     error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("failed to process event %s: %v", e.Subject, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }
