package types

import (
	"errors"

	"github.com/tapvault/tapvault-go/apdu"
)

var ErrWrongCardInfoTemplate = errors.New("wrong card info template")

const (
	TagCardInfoTemplate = uint8(0xA4)
	TagCardSerial       = uint8(0x8F)
	TagCardPublicKey    = uint8(0x80)
	TagCardVersion      = uint8(0x02)
)

// CardSerialSize is the length of a card serial number: a 4 byte family id
// plus the card number within the family.
const CardSerialSize = 5

// CardInfo is the identity a card presents in its select response.
type CardInfo struct {
	Serial      []byte
	PublicKey   []byte
	Version     []byte
	Certificate *Certificate
}

// ParseCardInfo parses the TLV select response of a card.
func ParseCardInfo(data []byte) (*CardInfo, error) {
	if len(data) == 0 || data[0] != TagCardInfoTemplate {
		return nil, ErrWrongCardInfoTemplate
	}

	serial, err := apdu.FindTag(data, TagCardInfoTemplate, TagCardSerial)
	if err != nil {
		return nil, err
	}

	pubKey, err := apdu.FindTag(data, TagCardInfoTemplate, TagCardPublicKey)
	if err != nil {
		return nil, err
	}

	version, err := apdu.FindTag(data, TagCardInfoTemplate, TagCardVersion)
	if err != nil {
		return nil, err
	}

	info := &CardInfo{
		Serial:    serial,
		PublicKey: pubKey,
		Version:   version,
	}

	certData, err := apdu.FindTag(data, TagCardInfoTemplate, TagCertificate)
	if err == nil {
		cert, err := ParseCertificate(certData)
		if err != nil {
			return nil, err
		}

		info.Certificate = cert
	}

	return info, nil
}
