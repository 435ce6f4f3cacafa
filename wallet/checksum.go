package wallet

import (
	"bytes"
	"crypto/sha256"
)

const (
	checksumTagMask    = uint8(0x03)
	checksumTagPresent = uint8(0x01)
)

// CalculateChecksum computes the wallet checksum: the top 30 bits of the
// SHA-256 of the serialized fields, with the low 2 bits of the last byte
// forced to `01` to mark the checksum as meaningful.
//
// The fields are serialized in this fixed order:
// name | xcor | number of mnemonics | total shares | share+nonce+mac |
// minimum shares | info | key | wallet id | arbitrary data share
func (w *Wallet) CalculateChecksum() [ChecksumSize]byte {
	digest := sha256.Sum256(w.serializeForChecksum())

	var checksum [ChecksumSize]byte
	copy(checksum[:], digest[:ChecksumSize])
	checksum[ChecksumSize-1] = (checksum[ChecksumSize-1] &^ checksumTagMask) | checksumTagPresent

	return checksum
}

// StoreChecksum computes and stores the checksum in the wallet.
func (w *Wallet) StoreChecksum() {
	w.Checksum = w.CalculateChecksum()
}

// VerifyChecksum reports whether the stored checksum matches the wallet
// fields. A nil wallet never verifies. Wallets whose checksum tag bits are
// not `01` predate checksums and verify unconditionally.
func (w *Wallet) VerifyChecksum() bool {
	if w == nil {
		return false
	}

	if w.Checksum[ChecksumSize-1]&checksumTagMask != checksumTagPresent {
		return true
	}

	return w.Checksum == w.CalculateChecksum()
}

func (w *Wallet) serializeForChecksum() []byte {
	buf := new(bytes.Buffer)
	buf.Write(w.Name[:])
	buf.WriteByte(w.XCoord)
	buf.WriteByte(w.NumberOfMnemonics)
	buf.WriteByte(w.TotalNumberOfShares)
	buf.Write(w.ShareWithMacAndNonce[:])
	buf.WriteByte(w.MinimumNumberOfShares)
	buf.WriteByte(w.Info)
	buf.Write(w.Key[:])
	buf.Write(w.ID[:])
	buf.Write(w.ArbitraryDataShare[:])

	return buf.Bytes()
}
