package tapvault

import (
	"github.com/tapvault/tapvault-go/apdu"
)

const (
	ClaISO7816     = uint8(0x00)
	ClaProprietary = uint8(0x80)

	InsSelect        = uint8(0xA4)
	InsSignSerial    = uint8(0xC3)
	InsSignChallenge = uint8(0xC4)
	InsPairCard      = uint8(0x12)

	P1SelectByAID = uint8(0x04)
)

// CardAID identifies the vault applet on a card.
var CardAID = []byte{0xA0, 0x00, 0x00, 0x09, 0x54, 0x56, 0x4C, 0x54}

func NewCommandSelect(aid []byte) *apdu.Command {
	return apdu.NewCommand(
		ClaISO7816,
		InsSelect,
		P1SelectByAID,
		0,
		aid,
	)
}

func NewCommandSignSerial() *apdu.Command {
	return apdu.NewCommand(
		ClaProprietary,
		InsSignSerial,
		0,
		0,
		[]byte{},
	)
}

func NewCommandSignChallenge(challenge []byte) *apdu.Command {
	return apdu.NewCommand(
		ClaProprietary,
		InsSignChallenge,
		0,
		0,
		challenge,
	)
}

func NewCommandPairCard(data []byte) *apdu.Command {
	return apdu.NewCommand(
		ClaProprietary,
		InsPairCard,
		0,
		0,
		data,
	)
}
