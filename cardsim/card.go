// Package cardsim emulates a vault card and its reader. It backs the demo
// binary and the flow tests; a production device talks to physical cards
// through the radio driver instead.
package cardsim

import (
	"bytes"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"

	tapvault "github.com/tapvault/tapvault-go"
	"github.com/tapvault/tapvault-go/apdu"
	"github.com/tapvault/tapvault-go/crypto"
	"github.com/tapvault/tapvault-go/types"
)

var cardVersion = []byte{0x01, 0x00}

// Card is an emulated vault card: a secp256k1 key, a factory certificate
// and a single pairing slot.
type Card struct {
	key        *secp256k1.PrivateKey
	serial     []byte
	cert       []byte
	pairingKey []byte
}

// Issue creates a card with a fresh key and a certificate signed by caKey.
// The serial is the 4 byte family id followed by the card number.
func Issue(caKey *secp256k1.PrivateKey, familyID [4]byte, number uint8) (*Card, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	serial := append(familyID[:], number)

	certified := append(append([]byte{}, serial...), key.PubKey().SerializeCompressed()...)
	msg := sha256.Sum256(certified)
	cert := append(certified, signRecoverable(caKey, msg[:])...)

	return &Card{
		key:    key,
		serial: serial,
		cert:   cert,
	}, nil
}

// Serial returns the card serial number.
func (c *Card) Serial() []byte {
	return c.serial
}

// PublicKey returns the uncompressed card public key.
func (c *Card) PublicKey() []byte {
	return c.key.PubKey().SerializeUncompressed()
}

// Certificate returns the raw factory certificate.
func (c *Card) Certificate() []byte {
	return c.cert
}

// PairingKey returns the provisioned trust key, nil before pairing.
func (c *Card) PairingKey() []byte {
	return c.pairingKey
}

// Process executes one APDU against the card.
func (c *Card) Process(cmd *apdu.Command) *apdu.Response {
	switch cmd.Ins {
	case tapvault.InsSelect:
		return c.processSelect(cmd)
	case tapvault.InsSignSerial:
		return c.processSignSerial()
	case tapvault.InsSignChallenge:
		return c.processSignChallenge(cmd)
	case tapvault.InsPairCard:
		return c.processPairCard(cmd)
	default:
		log.Debugf("unsupported instruction %x", cmd.Ins)
		return apdu.NewResponse(nil, apdu.SwInsNotSupported)
	}
}

func (c *Card) processSelect(cmd *apdu.Command) *apdu.Response {
	if !bytes.Equal(cmd.Data, tapvault.CardAID) {
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	inner := new(bytes.Buffer)
	apdu.WriteTLV(inner, types.TagCardSerial, c.serial)
	apdu.WriteTLV(inner, types.TagCardPublicKey, c.PublicKey())
	apdu.WriteTLV(inner, types.TagCardVersion, cardVersion)
	apdu.WriteTLV(inner, types.TagCertificate, c.cert)

	out := new(bytes.Buffer)
	apdu.WriteTLV(out, types.TagCardInfoTemplate, inner.Bytes())

	return apdu.NewResponse(out.Bytes(), apdu.SwOK)
}

func (c *Card) processSignSerial() *apdu.Response {
	msg := sha256.Sum256(c.serial)

	out := new(bytes.Buffer)
	apdu.WriteTLV(out, types.TagCardSerial, c.serial)
	apdu.WriteTLV(out, types.TagRawSignature, signRecoverable(c.key, msg[:]))

	return apdu.NewResponse(out.Bytes(), apdu.SwOK)
}

func (c *Card) processSignChallenge(cmd *apdu.Command) *apdu.Response {
	if len(cmd.Data) != 32 {
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	h := sha256.New()
	h.Write(c.serial)
	h.Write(cmd.Data)

	out := new(bytes.Buffer)
	apdu.WriteTLV(out, types.TagRawSignature, signRecoverable(c.key, h.Sum(nil)))

	return apdu.NewResponse(out.Bytes(), apdu.SwOK)
}

func (c *Card) processPairCard(cmd *apdu.Command) *apdu.Response {
	if len(cmd.Data) < 1 {
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	keyLen := int(cmd.Data[0])
	if len(cmd.Data) < 1+keyLen {
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	devicePub, err := ethcrypto.UnmarshalPubkey(cmd.Data[1 : 1+keyLen])
	if err != nil {
		log.WithError(err).Debug("pair: bad device key")
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	secret := crypto.GenerateECDHSharedSecret(c.key.ToECDSA(), devicePub)
	_, pairingKey, err := crypto.OneShotDecrypt(cmd.Data, secret)
	if err != nil || len(pairingKey) != crypto.PairingKeySize {
		log.WithError(err).Debug("pair: bad payload")
		return apdu.NewResponse(nil, apdu.SwWrongData)
	}

	c.pairingKey = pairingKey
	ack := sha256.Sum256(pairingKey)

	return apdu.NewResponse(ack[:], apdu.SwOK)
}

// signRecoverable signs hash and converts the compact signature to r||s||v
// with v in {0,1}.
func signRecoverable(key *secp256k1.PrivateKey, hash []byte) []byte {
	sig := ecdsa.SignCompact(key, hash, false)

	out := make([]byte, 0, 65)
	out = append(out, sig[1:]...)
	out = append(out, sig[0]-27)

	return out
}
