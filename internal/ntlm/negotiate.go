package ntlm

import (
	"encoding/binary"
	"fmt"
)

// DefaultNegotiateFlags are the capabilities announced by NewNegotiateMessage.
const DefaultNegotiateFlags = NegotiateUnicode | RequestTarget | NegotiateNTLM | NegotiateWorkstationSupplied

// NegotiateMessage is the first message of the handshake (type 1).
// Domain and workstation are OEM encoded.
type NegotiateMessage struct {
	Flags       Flags
	Domain      string
	Workstation string
	Version     *Version
}

// NewNegotiateMessage builds a negotiate message with DefaultNegotiateFlags,
// an empty domain and the given workstation name.
func NewNegotiateMessage(workstation string) *NegotiateMessage {
	return &NegotiateMessage{
		Flags:       DefaultNegotiateFlags,
		Workstation: workstation,
	}
}

func (m *NegotiateMessage) Type() MessageType { return TypeNegotiate }

// Marshal encodes the message. The VERSION structure is written only when
// the NegotiateVersion flag is set.
func (m *NegotiateMessage) Marshal() ([]byte, error) {
	headerLen := 32
	if m.Flags.Has(NegotiateVersion) {
		headerLen += 8
	}

	w := newMessageWriter(TypeNegotiate, headerLen)
	w.putUint32(12, uint32(m.Flags))
	if err := w.putField(16, []byte(m.Domain)); err != nil {
		return nil, fmt.Errorf("failed to encode domain: %w", err)
	}
	if err := w.putField(24, []byte(m.Workstation)); err != nil {
		return nil, fmt.Errorf("failed to encode workstation: %w", err)
	}
	if m.Flags.Has(NegotiateVersion) {
		v := Version{NTLMRevision: NTLMRevisionCurrent}
		if m.Version != nil {
			v = *m.Version
		}
		copy(w.header[32:40], v.marshal())
	}

	return w.bytes(), nil
}

func unmarshalNegotiate(b []byte) (*NegotiateMessage, error) {
	if len(b) < 16 {
		return nil, errShortMessage
	}
	m := &NegotiateMessage{Flags: Flags(binary.LittleEndian.Uint32(b[12:16]))}

	// Old clients omit the domain and workstation fields entirely.
	if len(b) < 32 {
		return m, nil
	}

	domain, err := readField(b, 16).slice(b)
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	workstation, err := readField(b, 24).slice(b)
	if err != nil {
		return nil, fmt.Errorf("workstation: %w", err)
	}
	m.Domain = string(domain)
	m.Workstation = string(workstation)

	if m.Flags.Has(NegotiateVersion) && len(b) >= 40 {
		m.Version = unmarshalVersion(b[32:40])
	}

	return m, nil
}
