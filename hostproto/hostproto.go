// Package hostproto defines the binary request/response envelope exchanged
// with the host over the device link. Messages are CBOR maps with exactly
// one kind field set.
package hostproto

import (
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// ChallengeSize is the required length of a host supplied challenge.
const ChallengeSize = 32

var (
	ErrNoRequestSet       = errors.New("query has no request set")
	ErrMultipleRequestsSet = errors.New("query has multiple request kinds set")
)

// Query is an inbound host message.
type Query struct {
	AuthCard *AuthCardRequest `cbor:"auth_card,omitempty"`
}

// AuthCardRequest carries one of the card authentication requests.
type AuthCardRequest struct {
	Initiate  *AuthCardInitiate  `cbor:"initiate,omitempty"`
	Challenge *AuthCardChallenge `cbor:"challenge,omitempty"`
	Result    *AuthCardResult    `cbor:"result,omitempty"`
}

// AuthCardInitiate starts an authentication session. A nil CardIndex accepts
// any configured card; a nil PairCard means no pairing.
type AuthCardInitiate struct {
	CardIndex *uint8 `cbor:"card_index,omitempty"`
	PairCard  *bool  `cbor:"pair_card,omitempty"`
}

// AuthCardChallenge asks the device to have the card sign a host challenge.
type AuthCardChallenge struct {
	Challenge []byte `cbor:"challenge"`
}

// AuthCardResult reports the verification boolean computed off-device.
type AuthCardResult struct {
	Verified bool `cbor:"verified"`
}

// Result is an outbound device message.
type Result struct {
	AuthCard *AuthCardResponse `cbor:"auth_card,omitempty"`
}

// AuthCardResponse carries one of the card authentication responses.
type AuthCardResponse struct {
	SerialSignature    *SerialSignature    `cbor:"serial_signature,omitempty"`
	ChallengeSignature *ChallengeSignature `cbor:"challenge_signature,omitempty"`
	FlowComplete       *FlowComplete       `cbor:"flow_complete,omitempty"`
}

// SerialSignature is the card's recoverable signature over its serial.
type SerialSignature struct {
	Serial    []byte `cbor:"serial"`
	Signature []byte `cbor:"signature"`
}

// ChallengeSignature is the card's recoverable signature over the challenge.
type ChallengeSignature struct {
	Signature []byte `cbor:"signature"`
}

// FlowComplete terminates a session from the host's point of view.
type FlowComplete struct {
	Dummy uint32 `cbor:"dummy"`
}

// HasResponse reports whether any response kind is set.
func (r *AuthCardResponse) HasResponse() bool {
	return r.SerialSignature != nil || r.ChallengeSignature != nil || r.FlowComplete != nil
}

// RequestsSet returns the number of request kinds set. A well formed query
// has exactly one.
func (r *AuthCardRequest) RequestsSet() int {
	n := 0
	if r.Initiate != nil {
		n++
	}
	if r.Challenge != nil {
		n++
	}
	if r.Result != nil {
		n++
	}

	return n
}

// DecodeQuery parses a raw host message.
func DecodeQuery(raw []byte) (*Query, error) {
	var q Query
	if err := cbor.Unmarshal(raw, &q); err != nil {
		return nil, err
	}

	if q.AuthCard != nil && q.AuthCard.RequestsSet() > 1 {
		return nil, ErrMultipleRequestsSet
	}

	return &q, nil
}

// Encode serializes the query. Used by hosts and tests driving a device.
func (q *Query) Encode() ([]byte, error) {
	return cbor.Marshal(q)
}

// Encode serializes the result for the device link.
func (r *Result) Encode() ([]byte, error) {
	if r.AuthCard == nil || !r.AuthCard.HasResponse() {
		return nil, ErrNoRequestSet
	}

	return cbor.Marshal(r)
}

// DecodeResult parses a raw device message. Host side helper.
func DecodeResult(raw []byte) (*Result, error) {
	var r Result
	if err := cbor.Unmarshal(raw, &r); err != nil {
		return nil, err
	}

	return &r, nil
}
