package ntlm

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/md4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// filetimeEpochOffset is the number of 100ns ticks between 1601-01-01 and
// the Unix epoch.
const filetimeEpochOffset = 116444736000000000

// Filetime converts t to the protocol timestamp: 100ns ticks since
// 1601-01-01 UTC.
func Filetime(t time.Time) uint64 {
	return uint64(t.UnixNano()/100) + filetimeEpochOffset
}

// FiletimeTime is the inverse of Filetime.
func FiletimeTime(ft uint64) time.Time {
	ticks := int64(ft - filetimeEpochOffset)
	return time.Unix(0, ticks*100).UTC()
}

// NTOWFv1 is the NT hash: MD4 of the UTF-16LE password.
func NTOWFv1(password string) ([]byte, error) {
	pw, err := encodeUnicode(password)
	if err != nil {
		return nil, fmt.Errorf("failed to encode password: %w", err)
	}
	h := md4.New()
	h.Write(pw)
	return h.Sum(nil), nil
}

var upper = cases.Upper(language.Und)

// NTOWFv2 derives the NTLMv2 response key from the NT hash, the upper-cased
// user name and the domain.
func NTOWFv2(password, user, domain string) ([]byte, error) {
	ntHash, err := NTOWFv1(password)
	if err != nil {
		return nil, err
	}
	identity, err := encodeUnicode(upper.String(user) + domain)
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}
	return hmacMD5(ntHash, identity), nil
}

func hmacMD5(key []byte, data ...[]byte) []byte {
	mac := hmac.New(md5.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil)
}

// Response is the result of answering a server challenge.
type Response struct {
	LMChallengeResponse []byte
	NTChallengeResponse []byte
	SessionBaseKey      []byte
}

// clientBlob builds the NTLMv2 client structure that follows NTProofStr in
// the NT response.
func clientBlob(timestamp uint64, clientChallenge [8]byte, targetInfo []byte) []byte {
	blob := make([]byte, 0, 28+len(targetInfo)+4)
	blob = append(blob, 0x01, 0x01, 0, 0, 0, 0, 0, 0)
	var ts [8]byte
	for i := range ts {
		ts[i] = byte(timestamp >> (8 * i))
	}
	blob = append(blob, ts[:]...)
	blob = append(blob, clientChallenge[:]...)
	blob = append(blob, 0, 0, 0, 0)
	blob = append(blob, targetInfo...)
	return append(blob, 0, 0, 0, 0)
}

// ComputeResponse computes the NTLMv2 and LMv2 responses. It is
// deterministic in all of its inputs.
func ComputeResponse(serverChallenge [8]byte, targetInfo []byte, timestamp uint64, clientChallenge [8]byte, creds Credentials) (*Response, error) {
	key, err := NTOWFv2(creds.Password, creds.User, creds.Domain)
	if err != nil {
		return nil, err
	}

	blob := clientBlob(timestamp, clientChallenge, targetInfo)
	ntProof := hmacMD5(key, serverChallenge[:], blob)

	nt := make([]byte, 0, len(ntProof)+len(blob))
	nt = append(nt, ntProof...)
	nt = append(nt, blob...)

	lm := hmacMD5(key, serverChallenge[:], clientChallenge[:])
	lm = append(lm, clientChallenge[:]...)

	return &Response{
		LMChallengeResponse: lm,
		NTChallengeResponse: nt,
		SessionBaseKey:      hmacMD5(key, ntProof),
	}, nil
}

// Message wraps the response into an authenticate message.
func (r *Response) Message(creds Credentials, workstation string, flags Flags) *AuthenticateMessage {
	return &AuthenticateMessage{
		LMChallengeResponse: r.LMChallengeResponse,
		NTChallengeResponse: r.NTChallengeResponse,
		Domain:              creds.Domain,
		User:                creds.User,
		Workstation:         workstation,
		Flags:               flags,
	}
}

// Responder answers challenges on behalf of a fixed identity. Now and Rand
// default to the wall clock and crypto/rand.
type Responder struct {
	Credentials Credentials
	Workstation string
	Flags       Flags
	Now         func() time.Time
	Rand        io.Reader
}

// Respond builds the authenticate message for the given challenge using the
// current timestamp and a fresh client nonce.
func (r *Responder) Respond(challenge *ChallengeMessage) (*AuthenticateMessage, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	src := rand.Reader
	if r.Rand != nil {
		src = r.Rand
	}
	flags := r.Flags
	if flags == 0 {
		flags = DefaultAuthenticateFlags
	}

	var nonce [8]byte
	if _, err := io.ReadFull(src, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate client challenge: %w", err)
	}

	resp, err := ComputeResponse(challenge.ServerChallenge, challenge.TargetInfo.Bytes(), Filetime(now()), nonce, r.Credentials)
	if err != nil {
		return nil, err
	}

	return resp.Message(r.Credentials, r.Workstation, flags), nil
}
