package ntlm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AuthScheme is the scheme token used in Authorization and
// WWW-Authenticate headers.
const AuthScheme = "NTLM"

// EncodeHeader returns the Authorization header value for m.
func EncodeHeader(m Message) (string, error) {
	b, err := m.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to encode %s message: %w", m.Type(), err)
	}
	return AuthScheme + " " + base64.StdEncoding.EncodeToString(b), nil
}

var errMissingToken = errors.New("challenge header has no message token")

// DecodeHeader decodes the message carried in the second whitespace
// delimited token of a WWW-Authenticate or Authorization header value.
func DecodeHeader(value string) (Message, error) {
	tokens := strings.Fields(value)
	if len(tokens) < 2 {
		return nil, errMissingToken
	}
	b, err := base64.StdEncoding.DecodeString(tokens[1])
	if err != nil {
		return nil, fmt.Errorf("base64 decoding message failed: %w", err)
	}
	m, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("decoding message failed: %w", err)
	}
	return m, nil
}

// DecodeChallenge decodes a WWW-Authenticate header value and requires it
// to carry a challenge message.
func DecodeChallenge(value string) (*ChallengeMessage, error) {
	m, err := DecodeHeader(value)
	if err != nil {
		return nil, err
	}
	c, ok := m.(*ChallengeMessage)
	if !ok {
		return nil, &WrongTypeError{Got: m.Type(), Want: TypeChallenge}
	}
	return c, nil
}

// WrongTypeError is returned when a well formed message has an unexpected type.
type WrongTypeError struct {
	Got  MessageType
	Want MessageType
}

func (e *WrongTypeError) Error() string {
	return fmt.Sprintf("wrong message type: got %s, want %s", e.Got, e.Want)
}
