// Package tapvault implements the device side of the vault card command set:
// selecting the applet, the serial and challenge signatures used for mutual
// authentication, and provisioning a trust key into the card.
package tapvault

import (
	"bytes"
	"crypto/sha256"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tapvault/tapvault-go/apdu"
	"github.com/tapvault/tapvault-go/crypto"
	"github.com/tapvault/tapvault-go/types"
)

var (
	ErrCardNotSelected    = errors.New("card not selected")
	ErrSerialMismatch     = errors.New("signed serial does not match selected card")
	ErrBadChallengeSize   = errors.New("challenge must be 32 bytes")
	ErrPairingAckMismatch = errors.New("card pairing acknowledgment mismatch")
)

// CommandSet drives the vault applet of one card over a channel. The flows
// treat its operations as opaque card steps.
type CommandSet struct {
	c           types.Channel
	pairingPass string

	CardInfo    *types.CardInfo
	PairingInfo *types.PairingInfo
}

func NewCommandSet(c types.Channel) *CommandSet {
	return &CommandSet{
		c: c,
	}
}

// SetPairingPassword sets the password the next Pair call derives the
// pairing token from.
func (cs *CommandSet) SetPairingPassword(pass string) {
	cs.pairingPass = pass
}

// Select selects the vault applet and parses the card identity.
func (cs *CommandSet) Select() error {
	cmd := NewCommandSelect(CardAID)
	cmd.SetLe(0)

	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	info, err := types.ParseCardInfo(resp.Data)
	if err != nil {
		return err
	}

	cs.CardInfo = info

	return nil
}

// SignSerial asks the card to sign the hash of its own serial number.
func (cs *CommandSet) SignSerial() (*types.SerialSignature, error) {
	if cs.CardInfo == nil {
		if err := cs.Select(); err != nil {
			return nil, err
		}
	}

	cmd := NewCommandSignSerial()
	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	serial, err := apdu.FindTag(resp.Data, types.TagCardSerial)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(serial, cs.CardInfo.Serial) {
		return nil, ErrSerialMismatch
	}

	sigData, err := apdu.FindTag(resp.Data, types.TagRawSignature)
	if err != nil {
		return nil, err
	}

	msg := sha256.Sum256(serial)
	sig, err := types.ParseRecoverableSignature(msg[:], sigData)
	if err != nil {
		return nil, err
	}

	return &types.SerialSignature{
		Serial:    serial,
		Signature: sig,
	}, nil
}

// SignChallenge asks the card to sign the hash of its serial concatenated
// with a 32 byte host challenge.
func (cs *CommandSet) SignChallenge(challenge []byte) (*types.Signature, error) {
	if len(challenge) != 32 {
		return nil, ErrBadChallengeSize
	}

	if cs.CardInfo == nil {
		return nil, ErrCardNotSelected
	}

	cmd := NewCommandSignChallenge(challenge)
	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return nil, err
	}

	sigData, err := apdu.FindTag(resp.Data, types.TagRawSignature)
	if err != nil {
		return nil, err
	}

	h := sha256.New()
	h.Write(cs.CardInfo.Serial)
	h.Write(challenge)

	return types.ParseRecoverableSignature(h.Sum(nil), sigData)
}

// Pair provisions a trust key into the card. The key combines the pairing
// token with a fresh ECDH secret and travels one-shot encrypted under that
// secret; the card acknowledges with the key hash.
func (cs *CommandSet) Pair() error {
	if cs.CardInfo == nil {
		return ErrCardNotSelected
	}

	cardPub, err := ethcrypto.UnmarshalPubkey(cs.CardInfo.PublicKey)
	if err != nil {
		return err
	}

	ephemeral, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}

	token := crypto.DerivePairingToken(cs.pairingPass)
	secret := crypto.GenerateECDHSharedSecret(ephemeral, cardPub)
	pairingKey := crypto.DerivePairingKey(token, secret)

	data, err := crypto.OneShotEncrypt(ethcrypto.FromECDSAPub(&ephemeral.PublicKey), secret, pairingKey)
	if err != nil {
		return err
	}

	cmd := NewCommandPairCard(data)
	resp, err := cs.c.Send(cmd)
	if err = cs.checkOK(resp, err); err != nil {
		return err
	}

	ack := sha256.Sum256(pairingKey)
	if !bytes.Equal(resp.Data, ack[:]) {
		return ErrPairingAckMismatch
	}

	cs.PairingInfo = &types.PairingInfo{
		Key:   pairingKey,
		Index: int(cs.CardInfo.Serial[types.CardSerialSize-1]),
	}

	return nil
}

func (cs *CommandSet) checkOK(resp *apdu.Response, err error, allowedResponses ...uint16) error {
	if err != nil {
		return err
	}

	if len(allowedResponses) == 0 {
		allowedResponses = []uint16{apdu.SwOK}
	}

	for _, code := range allowedResponses {
		if code == resp.Sw {
			return nil
		}
	}

	return apdu.NewErrBadResponse(resp.Sw, "unexpected response")
}
