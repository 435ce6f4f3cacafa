// Package wallet holds the in-memory representation of a wallet whose seed
// is split into threshold secret shares stored on removable cards. All of it
// lives in volatile memory only; anything sensitive carries a Zero method
// callers must run on every flow exit path.
package wallet

import "errors"

const (
	// BlockSize is the size of a single mnemonic seed share.
	BlockSize = 32
	// NonceSize is the width of the per-share nonce field in the card layout.
	NonceSize = 16
	// MACSize is the size of the per-share authentication tag.
	MACSize = 16
	// ChecksumSize is the size of the wallet checksum field.
	ChecksumSize = 4
	// NameSize bounds the wallet name.
	NameSize = 16
	// IDSize is the size of the wallet id, a hash of the master public key.
	IDSize = 32
	// KeySize is the size of the key protecting the extended public key.
	KeySize = 32
	// BeneficiaryKeySize and BeneficiaryIVSize bound the beneficiary key material.
	BeneficiaryKeySize = 16
	BeneficiaryIVSize  = 16

	// TotalShares is the number of share slots, matching the card set size.
	TotalShares = 5
	// MinimumShares is the lowest allowed reconstruction threshold.
	MinimumShares = 2
	// MaxArbitraryDataSize bounds an arbitrary data share.
	MaxArbitraryDataSize = 512

	// MaxMnemonicWords and MaxMnemonicWordLength bound recovered mnemonics.
	MaxMnemonicWords      = 24
	MaxMnemonicWordLength = 16
	// MaxPassphraseLength bounds a user passphrase.
	MaxPassphraseLength = 65
)

const (
	infoPINSet = 1 << iota
	infoPassphraseSet
	infoArbitraryData
)

var (
	ErrInvalidShamirConfig = errors.New("invalid shamir configuration")
	ErrInvalidShareIndex   = errors.New("invalid share index")
	ErrInvalidChecksum     = errors.New("invalid wallet checksum")
	ErrArbitraryDataSize   = errors.New("arbitrary data exceeds maximum size")
)

// Wallet is the metadata and encrypted share material of one wallet as
// exchanged with a card.
type Wallet struct {
	Name [NameSize]byte

	Info               uint8
	PasswordDoubleHash [BlockSize]byte

	// One encrypted seed share followed by its nonce and MAC.
	ShareWithMacAndNonce [BlockSize + NonceSize + MACSize]byte
	ArbitraryDataShare   [MaxArbitraryDataSize]byte

	NumberOfMnemonics     uint8
	MinimumNumberOfShares uint8
	TotalNumberOfShares   uint8
	ArbitraryDataSize     uint16

	XCoord uint8
	// 30-bit checksum of the wallet fields. The low 2 bits (`01`) mark
	// whether the checksum holds a meaningful value.
	Checksum [ChecksumSize]byte

	// Key protecting the extended public key.
	Key [KeySize]byte

	BeneficiaryKey   [BeneficiaryKeySize]byte
	BeneficiaryKeyIV [BeneficiaryIVSize]byte

	// ID is the hash of the master public key.
	ID [IDSize]byte
}

// PINSet reports whether a PIN protects this wallet.
func (w *Wallet) PINSet() bool {
	return w.Info&infoPINSet != 0
}

// SetPIN marks the wallet as PIN protected.
func (w *Wallet) SetPIN() {
	w.Info |= infoPINSet
}

// UnsetPIN clears the PIN flag.
func (w *Wallet) UnsetPIN() {
	w.Info &^= infoPINSet
}

// PassphraseSet reports whether a passphrase is enabled.
func (w *Wallet) PassphraseSet() bool {
	return w.Info&infoPassphraseSet != 0
}

// SetPassphrase marks the wallet as passphrase enabled.
func (w *Wallet) SetPassphrase() {
	w.Info |= infoPassphraseSet
}

// UnsetPassphrase clears the passphrase flag.
func (w *Wallet) UnsetPassphrase() {
	w.Info &^= infoPassphraseSet
}

// HasArbitraryData reports whether the wallet stores arbitrary data instead
// of a mnemonic seed.
func (w *Wallet) HasArbitraryData() bool {
	return w.Info&infoArbitraryData != 0
}

// SetArbitraryData marks the wallet as holding arbitrary data shares.
func (w *Wallet) SetArbitraryData() {
	w.Info |= infoArbitraryData
}

// UnsetArbitraryData clears the arbitrary data flag.
func (w *Wallet) UnsetArbitraryData() {
	w.Info &^= infoArbitraryData
}

// Validate checks the share configuration and the stored checksum.
func (w *Wallet) Validate() error {
	if w.MinimumNumberOfShares < MinimumShares ||
		w.TotalNumberOfShares > TotalShares ||
		w.MinimumNumberOfShares > w.TotalNumberOfShares {
		return ErrInvalidShamirConfig
	}

	if w.XCoord >= TotalShares {
		return ErrInvalidShareIndex
	}

	if int(w.ArbitraryDataSize) > MaxArbitraryDataSize {
		return ErrArbitraryDataSize
	}

	if !w.VerifyChecksum() {
		return ErrInvalidChecksum
	}

	return nil
}

// Zero wipes the wallet in place.
func (w *Wallet) Zero() {
	*w = Wallet{}
}

// Zero overwrites a byte slice in memory with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
