package wallet

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrShareDecrypt is a hard integrity failure: the share ciphertext,
	// nonce or MAC was tampered with and the share must be treated as
	// corrupted. Never retried.
	ErrShareDecrypt = errors.New("share authentication failed")

	ErrBadShareKey      = errors.New("share key must be 32 bytes")
	ErrBadShareSize     = errors.New("bad share size for its kind")
	ErrMixedShareKinds  = errors.New("mnemonic and arbitrary data shares are mutually exclusive")
	ErrDuplicateXCoords = errors.New("share x-coordinates must be pairwise distinct")
	ErrTooManyShares    = errors.New("shares in use exceed the configured total")
)

// ShareKind tags the payload stored in a share slot.
type ShareKind uint8

const (
	// ShareMnemonic is a 32 byte share of the wallet's seed.
	ShareMnemonic ShareKind = iota + 1
	// ShareArbitraryData is a share of user supplied data, up to 512 bytes.
	ShareArbitraryData
)

// Share is one slot of a shamir split. Kind zero means the slot is unused.
type Share struct {
	Kind ShareKind
	Data []byte
}

// InUse reports whether the slot holds a share.
func (s *Share) InUse() bool {
	return s.Kind != 0
}

// ShamirData is a full set of shares held during a flow, with each share's
// x-coordinate and independent encryption nonce and MAC in parallel arrays.
type ShamirData struct {
	Shares  [TotalShares]Share
	XCoords [TotalShares]uint8
	// Per share nonce (16 bytes, of which the first 12 feed the AEAD) and
	// 16 byte MAC.
	EncryptionData [TotalShares][NonceSize + MACSize]byte
}

// Validate checks the structural invariants of the share set. total is the
// wallet's configured total share count; more slots in use than that is a
// corrupted set.
func (sd *ShamirData) Validate(total uint8) error {
	var kind ShareKind
	var inUse uint8
	seen := make(map[uint8]bool)

	for i := range sd.Shares {
		share := &sd.Shares[i]
		if !share.InUse() {
			continue
		}
		inUse++

		if kind == 0 {
			kind = share.Kind
		} else if share.Kind != kind {
			return ErrMixedShareKinds
		}

		switch share.Kind {
		case ShareMnemonic:
			if len(share.Data) != BlockSize {
				return ErrBadShareSize
			}
		case ShareArbitraryData:
			if len(share.Data) == 0 || len(share.Data) > MaxArbitraryDataSize {
				return ErrBadShareSize
			}
		default:
			return fmt.Errorf("unknown share kind %d", share.Kind)
		}

		if seen[sd.XCoords[i]] {
			return ErrDuplicateXCoords
		}
		seen[sd.XCoords[i]] = true
	}

	if inUse > total {
		return ErrTooManyShares
	}

	return nil
}

// EncryptShares encrypts every in-use share in place with ChaCha20-Poly1305
// under key, generating an independent nonce per share. The ciphertext
// replaces the plaintext, the nonce and tag land in EncryptionData.
func (sd *ShamirData) EncryptShares(key []byte) error {
	aead, err := newShareAEAD(key)
	if err != nil {
		return err
	}

	for i := range sd.Shares {
		share := &sd.Shares[i]
		if !share.InUse() {
			continue
		}

		nonce := make([]byte, chacha20poly1305.NonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return err
		}

		sealed := aead.Seal(nil, nonce, share.Data, nil)
		copy(share.Data, sealed[:len(share.Data)])

		Zero(sd.EncryptionData[i][:])
		copy(sd.EncryptionData[i][:chacha20poly1305.NonceSize], nonce)
		copy(sd.EncryptionData[i][NonceSize:], sealed[len(share.Data):])
	}

	return nil
}

// DecryptShares reverses EncryptShares. Any authentication failure wipes the
// affected slot and returns ErrShareDecrypt.
func (sd *ShamirData) DecryptShares(key []byte) error {
	aead, err := newShareAEAD(key)
	if err != nil {
		return err
	}

	for i := range sd.Shares {
		share := &sd.Shares[i]
		if !share.InUse() {
			continue
		}

		nonce := sd.EncryptionData[i][:chacha20poly1305.NonceSize]
		sealed := make([]byte, 0, len(share.Data)+MACSize)
		sealed = append(sealed, share.Data...)
		sealed = append(sealed, sd.EncryptionData[i][NonceSize:]...)

		plain, err := aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			Zero(share.Data)
			return fmt.Errorf("%w: share %d", ErrShareDecrypt, i)
		}

		copy(share.Data, plain)
		Zero(plain)
	}

	return nil
}

// Zero wipes the share set in place.
func (sd *ShamirData) Zero() {
	for i := range sd.Shares {
		Zero(sd.Shares[i].Data)
		sd.Shares[i] = Share{}
		Zero(sd.EncryptionData[i][:])
	}

	sd.XCoords = [TotalShares]uint8{}
}

func newShareAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadShareKey
	}

	return chacha20poly1305.New(key)
}
