package ntlm

import (
	"encoding/binary"
	"fmt"
)

// DefaultAuthenticateFlags are the flags sent with the authenticate message.
const DefaultAuthenticateFlags = NegotiateUnicode | NegotiateNTLM

// AuthenticateMessage is the client's final message (type 3). It is written
// without VERSION and MIC fields.
type AuthenticateMessage struct {
	LMChallengeResponse       []byte
	NTChallengeResponse       []byte
	Domain                    string
	User                      string
	Workstation               string
	EncryptedRandomSessionKey []byte
	Flags                     Flags
}

func (m *AuthenticateMessage) Type() MessageType { return TypeAuthenticate }

// Marshal encodes the message with the payload in the conventional order:
// domain, user, workstation, LM response, NT response, session key.
func (m *AuthenticateMessage) Marshal() ([]byte, error) {
	w := newMessageWriter(TypeAuthenticate, 64)
	w.putUint32(60, uint32(m.Flags))

	strs := []struct {
		pos   int
		name  string
		value string
	}{
		{28, "domain", m.Domain},
		{36, "user", m.User},
		{44, "workstation", m.Workstation},
	}
	for _, s := range strs {
		b, err := encodeString(s.value, m.Flags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s.name, err)
		}
		if err := w.putField(s.pos, b); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", s.name, err)
		}
	}

	if err := w.putField(12, m.LMChallengeResponse); err != nil {
		return nil, fmt.Errorf("failed to encode LM response: %w", err)
	}
	if err := w.putField(20, m.NTChallengeResponse); err != nil {
		return nil, fmt.Errorf("failed to encode NT response: %w", err)
	}
	if err := w.putField(52, m.EncryptedRandomSessionKey); err != nil {
		return nil, fmt.Errorf("failed to encode session key: %w", err)
	}

	return w.bytes(), nil
}

func unmarshalAuthenticate(b []byte) (*AuthenticateMessage, error) {
	if len(b) < 64 {
		return nil, errShortMessage
	}

	m := &AuthenticateMessage{Flags: Flags(binary.LittleEndian.Uint32(b[60:64]))}

	raw := make(map[int][]byte, 6)
	for _, pos := range []int{12, 20, 28, 36, 44, 52} {
		v, err := readField(b, pos).slice(b)
		if err != nil {
			return nil, fmt.Errorf("field at %d: %w", pos, err)
		}
		raw[pos] = v
	}

	m.LMChallengeResponse = raw[12]
	m.NTChallengeResponse = raw[20]
	m.EncryptedRandomSessionKey = raw[52]

	var err error
	if m.Domain, err = decodeString(raw[28], m.Flags); err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	if m.User, err = decodeString(raw[36], m.Flags); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	if m.Workstation, err = decodeString(raw[44], m.Flags); err != nil {
		return nil, fmt.Errorf("workstation: %w", err)
	}

	return m, nil
}
