package types

import (
	"bytes"
	"crypto/sha256"
	"errors"
)

var (
	TagCertificate = uint8(0x8A)

	ErrBadCertificateLength = errors.New("certificate must be 103 bytes long")
	ErrInvalidCertificate   = errors.New("certificate signature does not match issuer")
)

// Certificate binds a card serial to its public key with a recoverable
// signature from the factory CA. Layout: serial (5) || compressed card
// public key (33) || r||s||v signature (65) over sha256(serial || key).
type Certificate struct {
	serial    []byte
	cardPub   []byte
	signature *Signature
}

// ParseCertificate parses the raw certificate a card serves in its select
// response.
func ParseCertificate(data []byte) (*Certificate, error) {
	if len(data) != CardSerialSize+33+65 {
		return nil, ErrBadCertificateLength
	}

	serial := data[0:CardSerialSize]
	cardPub := data[CardSerialSize : CardSerialSize+33]
	sigData := data[CardSerialSize+33:]

	msg := sha256.Sum256(data[:CardSerialSize+33])
	sig, err := ParseRecoverableSignature(msg[:], sigData)
	if err != nil {
		return nil, err
	}

	return &Certificate{
		serial:    serial,
		cardPub:   cardPub,
		signature: sig,
	}, nil
}

// Verify checks that the certificate was signed by the CA identified by
// caPub, in compressed or uncompressed form.
func (c *Certificate) Verify(caPub []byte) error {
	signer := c.signature.PubKey()
	if len(caPub) == 33 {
		signer = CompressPublicKey(signer)
	}

	if !bytes.Equal(caPub, signer) {
		return ErrInvalidCertificate
	}

	return nil
}

// Serial returns the certified card serial number.
func (c *Certificate) Serial() []byte {
	return c.serial
}

// CardPublicKey returns the certified compressed card public key.
func (c *Certificate) CardPublicKey() []byte {
	return c.cardPub
}

// Signature returns the CA signature.
func (c *Certificate) Signature() *Signature {
	return c.signature
}
