package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "transport status",
			err:  &TransportError{StatusCode: 403},
			want: "transport error: HTTP/403",
		},
		{
			name: "transport connection",
			err:  &TransportError{Err: errors.New("connection refused")},
			want: "transport error: connection refused",
		},
		{
			name: "directive line",
			err:  &DirectiveError{Line: "project=ABC", Err: ErrInvalidDirectiveLine},
			want: "invalid directive line: 'project=ABC'",
		},
		{
			name: "directive without line",
			err:  &DirectiveError{Err: ErrNoDirectivesFound},
			want: "no bot directives found in event",
		},
		{
			name: "config field",
			err:  &ConfigError{Field: "login", Err: ErrInvalidCredentialsFormat},
			want: "configuration error: login: invalid login format, expected user@domain",
		},
		{
			name: "event",
			err:  &EventError{Subject: "Standup", Err: &TimeError{Value: "Mars/Olympus", Err: errors.New("unknown time zone")}},
			want: `failed to process event Standup: time error: "Mars/Olympus": unknown time zone`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestEventError_Unwrap(t *testing.T) {
	err := fmt.Errorf("batch: %w", &EventError{
		Subject: "Review",
		Err:     &DirectiveError{Line: "owner", Err: ErrInvalidDirectiveLine},
	})

	var dirErr *DirectiveError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "owner", dirErr.Line)
	assert.ErrorIs(t, err, ErrInvalidDirectiveLine)

	var evErr *EventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "Review", evErr.Subject)
}
