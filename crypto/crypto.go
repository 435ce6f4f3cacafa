package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// PairingTokenSalt is mixed into the pairing token derivation.
	PairingTokenSalt = "TapVault Pairing Password Salt"
	// PairingKeySize is the size of a provisioned trust key.
	PairingKeySize = 32

	pairingTokenIterations = 50000
)

var ErrBadOneShotPayload = errors.New("malformed one-shot payload")

// GenerateECDHSharedSecret computes the X coordinate of the ECDH point
// between priv and pub on secp256k1.
func GenerateECDHSharedSecret(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) []byte {
	x, _ := crypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())

	secret := make([]byte, 32)
	x.FillBytes(secret)

	return secret
}

// DerivePairingToken derives the pairing token from a user supplied pairing
// password. The password is NFKD normalized first so visually identical
// inputs derive the same token.
func DerivePairingToken(pass string) []byte {
	normalized := norm.NFKD.Bytes([]byte(pass))
	return pbkdf2.Key(normalized, norm.NFKD.Bytes([]byte(PairingTokenSalt)), pairingTokenIterations, 32, sha256.New)
}

// DerivePairingKey combines the pairing token with a fresh ECDH secret into
// the trust key written to the card.
func DerivePairingKey(token, secret []byte) []byte {
	h := sha256.New()
	h.Write(token)
	h.Write(secret)

	return h.Sum(nil)
}

// OneShotEncrypt encrypts data under secret with AES-CBC and a random IV,
// prefixing the sender public key so the receiver can derive the same
// secret. Layout: len(pubKey) || pubKey || iv || ciphertext.
func OneShotEncrypt(pubKeyData, secret, data []byte) ([]byte, error) {
	data = appendPadding(16, data)

	iv := make([]byte, 16)
	_, err := rand.Read(iv)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}

	ciphertext := make([]byte, len(data))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, data)

	encrypted := append([]byte{byte(len(pubKeyData))}, pubKeyData...)
	encrypted = append(encrypted, iv...)
	encrypted = append(encrypted, ciphertext...)

	return encrypted, nil
}

// OneShotDecrypt reverses OneShotEncrypt given the derived secret, returning
// the sender public key and the plaintext.
func OneShotDecrypt(payload, secret []byte) (pubKeyData, data []byte, err error) {
	if len(payload) < 1 {
		return nil, nil, ErrBadOneShotPayload
	}

	keyLen := int(payload[0])
	if len(payload) < 1+keyLen+16 {
		return nil, nil, ErrBadOneShotPayload
	}

	pubKeyData = payload[1 : 1+keyLen]
	iv := payload[1+keyLen : 1+keyLen+16]
	ciphertext := payload[1+keyLen+16:]

	if len(ciphertext) == 0 || len(ciphertext)%16 != 0 {
		return nil, nil, ErrBadOneShotPayload
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, nil, err
	}

	plain := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, ciphertext)

	data, err = removePadding(plain)
	if err != nil {
		return nil, nil, err
	}

	return pubKeyData, data, nil
}

func appendPadding(blockSize int, data []byte) []byte {
	paddingSize := blockSize - (len(data)+1)%blockSize
	zeroes := bytes.Repeat([]byte{0x00}, paddingSize)
	padding := append([]byte{0x80}, zeroes...)

	return append(data, padding...)
}

func removePadding(data []byte) ([]byte, error) {
	for i := len(data) - 1; i >= 0; i-- {
		switch data[i] {
		case 0x00:
			continue
		case 0x80:
			return data[:i], nil
		default:
			return nil, ErrBadOneShotPayload
		}
	}

	return nil, ErrBadOneShotPayload
}
