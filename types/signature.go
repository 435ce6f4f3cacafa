package types

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
)

// TagRawSignature wraps a raw r||s||v signature in a card response. It has
// the same value as the pubkey tag; the two never appear in the same
// template.
const TagRawSignature = uint8(0x80)

// ErrInvalidSignature is returned when a signature is not 65 bytes or its
// public key cannot be recovered.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature is a recoverable secp256k1 signature produced by a card.
type Signature struct {
	pubKey []byte
	r      []byte
	s      []byte
	v      byte
}

// SerialSignature is a card's signature over the hash of its own serial
// number, together with the serial it covers.
type SerialSignature struct {
	Serial    []byte
	Signature *Signature
}

// ParseRecoverableSignature parses a 65 byte r||s||v signature over message,
// recovering the signer public key.
func ParseRecoverableSignature(message, sig []byte) (*Signature, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignature
	}

	pubKey, err := crypto.Ecrecover(message, sig)
	if err != nil {
		return nil, err
	}

	return &Signature{
		pubKey: pubKey,
		r:      sig[0:32],
		s:      sig[32:64],
		v:      sig[64],
	}, nil
}

// VerifyRecoverable reports whether sig over message recovers to pubKey.
// pubKey may be in compressed or uncompressed form. This is the off-device
// check the host runs before reporting a verification result.
func VerifyRecoverable(pubKey, message, sig []byte) bool {
	parsed, err := ParseRecoverableSignature(message, sig)
	if err != nil {
		return false
	}

	recovered := parsed.PubKey()
	if len(pubKey) == 33 {
		recovered = CompressPublicKey(recovered)
	}

	return bytes.Equal(pubKey, recovered)
}

// PubKey returns the recovered uncompressed signer public key.
func (s *Signature) PubKey() []byte {
	return s.pubKey
}

func (s *Signature) R() []byte {
	return s.r
}

func (s *Signature) S() []byte {
	return s.s
}

func (s *Signature) V() byte {
	return s.v
}

// Raw returns the signature in r||s||v form.
func (s *Signature) Raw() []byte {
	out := make([]byte, 0, 65)
	out = append(out, s.r...)
	out = append(out, s.s...)
	out = append(out, s.v)

	return out
}

// CompressPublicKey converts an uncompressed secp256k1 public key to its
// 33 byte compressed form. Compressed input is returned unchanged.
func CompressPublicKey(pubKey []byte) []byte {
	if len(pubKey) == 33 {
		return pubKey
	}

	if (pubKey[64] & 1) == 1 {
		pubKey[0] = 3
	} else {
		pubKey[0] = 2
	}

	return pubKey[0:33]
}
