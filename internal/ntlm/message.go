// Package ntlm implements the client side of the NTLM HTTP handshake:
// negotiate, challenge and authenticate message framing plus the NTLMv2
// challenge response. Session security (signing and sealing) is not
// implemented.
package ntlm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Signature prefixes every NTLM message.
var Signature = []byte("NTLMSSP\x00")

// MessageType identifies the kind of an NTLM message.
type MessageType uint32

const (
	TypeNegotiate    MessageType = 1
	TypeChallenge    MessageType = 2
	TypeAuthenticate MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case TypeNegotiate:
		return "negotiate"
	case TypeChallenge:
		return "challenge"
	case TypeAuthenticate:
		return "authenticate"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Flags is the NegotiateFlags bit set.
type Flags uint32

const (
	NegotiateUnicode                 Flags = 0x00000001
	NegotiateOEM                     Flags = 0x00000002
	RequestTarget                    Flags = 0x00000004
	NegotiateSign                    Flags = 0x00000010
	NegotiateSeal                    Flags = 0x00000020
	NegotiateDatagram                Flags = 0x00000040
	NegotiateLMKey                   Flags = 0x00000080
	NegotiateNTLM                    Flags = 0x00000200
	NegotiateAnonymous               Flags = 0x00000800
	NegotiateDomainSupplied          Flags = 0x00001000
	NegotiateWorkstationSupplied     Flags = 0x00002000
	NegotiateAlwaysSign              Flags = 0x00008000
	TargetTypeDomain                 Flags = 0x00010000
	TargetTypeServer                 Flags = 0x00020000
	NegotiateExtendedSessionSecurity Flags = 0x00080000
	NegotiateIdentify                Flags = 0x00100000
	RequestNonNTSessionKey           Flags = 0x00400000
	NegotiateTargetInfo              Flags = 0x00800000
	NegotiateVersion                 Flags = 0x02000000
	Negotiate128                     Flags = 0x20000000
	NegotiateKeyExchange             Flags = 0x40000000
	Negotiate56                      Flags = 0x80000000
)

// Has reports whether all bits of other are set in f.
func (f Flags) Has(other Flags) bool { return f&other == other }

// Message is any NTLM message that can be put on the wire.
type Message interface {
	Type() MessageType
	Marshal() ([]byte, error)
}

var (
	errShortMessage = errors.New("message too short")
	errBadSignature = errors.New("invalid NTLMSSP signature")
	errFieldBounds  = errors.New("field points outside message")
)

// Unmarshal decodes a negotiate, challenge or authenticate message.
func Unmarshal(b []byte) (Message, error) {
	if len(b) < 12 {
		return nil, errShortMessage
	}
	if !bytes.Equal(b[:8], Signature) {
		return nil, errBadSignature
	}

	switch t := MessageType(binary.LittleEndian.Uint32(b[8:12])); t {
	case TypeNegotiate:
		return unmarshalNegotiate(b)
	case TypeChallenge:
		return unmarshalChallenge(b)
	case TypeAuthenticate:
		return unmarshalAuthenticate(b)
	default:
		return nil, fmt.Errorf("unsupported message type %s", t)
	}
}

// Version is the optional VERSION structure carried when NegotiateVersion is set.
type Version struct {
	Major        uint8
	Minor        uint8
	Build        uint16
	NTLMRevision uint8
}

// NTLMRevisionCurrent is the only revision defined by the protocol.
const NTLMRevisionCurrent = 0x0F

func (v Version) marshal() []byte {
	b := make([]byte, 8)
	b[0] = v.Major
	b[1] = v.Minor
	binary.LittleEndian.PutUint16(b[2:4], v.Build)
	b[7] = v.NTLMRevision
	return b
}

func unmarshalVersion(b []byte) *Version {
	return &Version{
		Major:        b[0],
		Minor:        b[1],
		Build:        binary.LittleEndian.Uint16(b[2:4]),
		NTLMRevision: b[7],
	}
}

// field is the length/offset descriptor that points into a message payload.
type field struct {
	length uint16
	offset uint32
}

func readField(b []byte, pos int) field {
	return field{
		length: binary.LittleEndian.Uint16(b[pos : pos+2]),
		offset: binary.LittleEndian.Uint32(b[pos+4 : pos+8]),
	}
}

func (f field) slice(b []byte) ([]byte, error) {
	if f.length == 0 {
		return nil, nil
	}
	end := uint64(f.offset) + uint64(f.length)
	if end > uint64(len(b)) {
		return nil, errFieldBounds
	}
	return b[f.offset:end], nil
}

// messageWriter lays out a fixed-size header followed by a variable payload
// referenced from header fields.
type messageWriter struct {
	header  []byte
	payload []byte
}

func newMessageWriter(t MessageType, headerLen int) *messageWriter {
	w := &messageWriter{header: make([]byte, headerLen)}
	copy(w.header, Signature)
	binary.LittleEndian.PutUint32(w.header[8:12], uint32(t))
	return w
}

func (w *messageWriter) putUint32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(w.header[pos:pos+4], v)
}

func (w *messageWriter) putField(pos int, data []byte) error {
	if len(data) > 0xFFFF {
		return fmt.Errorf("field of %d bytes exceeds maximum length", len(data))
	}
	offset := len(w.header) + len(w.payload)
	binary.LittleEndian.PutUint16(w.header[pos:pos+2], uint16(len(data)))
	binary.LittleEndian.PutUint16(w.header[pos+2:pos+4], uint16(len(data)))
	binary.LittleEndian.PutUint32(w.header[pos+4:pos+8], uint32(offset))
	w.payload = append(w.payload, data...)
	return nil
}

func (w *messageWriter) bytes() []byte {
	out := make([]byte, 0, len(w.header)+len(w.payload))
	out = append(out, w.header...)
	return append(out, w.payload...)
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeUnicode returns s as UTF-16LE.
func encodeUnicode(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return utf16le.NewEncoder().Bytes([]byte(s))
}

func decodeUnicode(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encodeString encodes s using the character set selected by flags.
func encodeString(s string, flags Flags) ([]byte, error) {
	if flags.Has(NegotiateUnicode) {
		return encodeUnicode(s)
	}
	return []byte(s), nil
}

func decodeString(b []byte, flags Flags) (string, error) {
	if flags.Has(NegotiateUnicode) {
		return decodeUnicode(b)
	}
	return string(b), nil
}
