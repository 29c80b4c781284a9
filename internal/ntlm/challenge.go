package ntlm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// AVID identifies an AV_PAIR in the target information block.
type AVID uint16

const (
	AvEOL             AVID = 0x0000
	AvNbComputerName  AVID = 0x0001
	AvNbDomainName    AVID = 0x0002
	AvDNSComputerName AVID = 0x0003
	AvDNSDomainName   AVID = 0x0004
	AvDNSTreeName     AVID = 0x0005
	AvFlags           AVID = 0x0006
	AvTimestamp       AVID = 0x0007
	AvSingleHost      AVID = 0x0008
	AvTargetName      AVID = 0x0009
	AvChannelBindings AVID = 0x000A
)

// AVPair is one typed block of server supplied target information.
type AVPair struct {
	ID    AVID
	Value []byte
}

// Marshal encodes the pair as AvId, AvLen, Value.
func (p AVPair) Marshal() []byte {
	b := make([]byte, 4+len(p.Value))
	binary.LittleEndian.PutUint16(b[0:2], uint16(p.ID))
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(p.Value)))
	copy(b[4:], p.Value)
	return b
}

// TargetInfo is the ordered list of AV pairs sent by the server.
type TargetInfo []AVPair

// Bytes concatenates the encoded pairs in their original order. The result
// is the blob fed into the NTLMv2 response.
func (ti TargetInfo) Bytes() []byte {
	var out []byte
	for _, p := range ti {
		out = append(out, p.Marshal()...)
	}
	return out
}

// Get returns the value of the first pair with the given id.
func (ti TargetInfo) Get(id AVID) ([]byte, bool) {
	for _, p := range ti {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Timestamp returns the server time carried in the AvTimestamp pair.
func (ti TargetInfo) Timestamp() (time.Time, bool) {
	v, ok := ti.Get(AvTimestamp)
	if !ok || len(v) != 8 {
		return time.Time{}, false
	}
	return FiletimeTime(binary.LittleEndian.Uint64(v)), true
}

var errTruncatedAVPair = errors.New("truncated AV pair")

// ParseTargetInfo decodes AV pairs up to and including the terminating
// AvEOL pair.
func ParseTargetInfo(b []byte) (TargetInfo, error) {
	var ti TargetInfo
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, errTruncatedAVPair
		}
		id := AVID(binary.LittleEndian.Uint16(b[0:2]))
		n := int(binary.LittleEndian.Uint16(b[2:4]))
		if len(b) < 4+n {
			return nil, errTruncatedAVPair
		}
		var value []byte
		if n > 0 {
			value = make([]byte, n)
			copy(value, b[4:4+n])
		}
		ti = append(ti, AVPair{ID: id, Value: value})
		b = b[4+n:]
		if id == AvEOL {
			break
		}
	}
	return ti, nil
}

// ChallengeMessage is the server's reply to a negotiate message (type 2).
type ChallengeMessage struct {
	TargetName      string
	Flags           Flags
	ServerChallenge [8]byte
	TargetInfo      TargetInfo
	Version         *Version
}

func (m *ChallengeMessage) Type() MessageType { return TypeChallenge }

// Marshal encodes the challenge. Clients never send one; it exists so test
// servers can speak the protocol.
func (m *ChallengeMessage) Marshal() ([]byte, error) {
	headerLen := 48
	if m.Flags.Has(NegotiateVersion) {
		headerLen += 8
	}

	w := newMessageWriter(TypeChallenge, headerLen)
	name, err := encodeString(m.TargetName, m.Flags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode target name: %w", err)
	}
	if err := w.putField(12, name); err != nil {
		return nil, fmt.Errorf("failed to encode target name: %w", err)
	}
	w.putUint32(20, uint32(m.Flags))
	copy(w.header[24:32], m.ServerChallenge[:])
	if err := w.putField(40, m.TargetInfo.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to encode target info: %w", err)
	}
	if m.Flags.Has(NegotiateVersion) {
		v := Version{NTLMRevision: NTLMRevisionCurrent}
		if m.Version != nil {
			v = *m.Version
		}
		copy(w.header[48:56], v.marshal())
	}

	return w.bytes(), nil
}

func unmarshalChallenge(b []byte) (*ChallengeMessage, error) {
	if len(b) < 32 {
		return nil, errShortMessage
	}

	m := &ChallengeMessage{Flags: Flags(binary.LittleEndian.Uint32(b[20:24]))}
	copy(m.ServerChallenge[:], b[24:32])

	name, err := readField(b, 12).slice(b)
	if err != nil {
		return nil, fmt.Errorf("target name: %w", err)
	}
	if m.TargetName, err = decodeString(name, m.Flags); err != nil {
		return nil, fmt.Errorf("target name: %w", err)
	}

	if len(b) >= 48 {
		info, err := readField(b, 40).slice(b)
		if err != nil {
			return nil, fmt.Errorf("target info: %w", err)
		}
		if m.TargetInfo, err = ParseTargetInfo(info); err != nil {
			return nil, fmt.Errorf("target info: %w", err)
		}
	}

	if m.Flags.Has(NegotiateVersion) && len(b) >= 56 {
		m.Version = unmarshalVersion(b[48:56])
	}

	return m, nil
}
