package types

import "github.com/tapvault/tapvault-go/apdu"

// Channel is an interface with a Send method to send apdu commands and receive apdu responses.
type Channel interface {
	Send(*apdu.Command) (*apdu.Response, error)
}

// PairingInfo holds the trust key provisioned into a card and its slot.
type PairingInfo struct {
	Key   []byte
	Index int
}
