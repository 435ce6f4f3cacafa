package apdu

import (
	"errors"
	"fmt"
)

// Status words an emulated or physical card answers with.
const (
	SwOK                     = uint16(0x9000)
	SwConditionsNotSatisfied = uint16(0x6985)
	SwWrongData              = uint16(0x6A80)
	SwIncorrectParameters    = uint16(0x6A86)
	SwInsNotSupported        = uint16(0x6D00)
)

// ErrBadRawResponse is an error for responses shorter than the two mandatory
// status word bytes.
var ErrBadRawResponse = errors.New("response data must be at least 2 bytes")

// ErrBadResponse defines an error conaining the returned Sw code and a
// description message.
type ErrBadResponse struct {
	Sw      uint16
	message string
}

// NewErrBadResponse returns a new ErrBadResponse with the specified sw and message values.
func NewErrBadResponse(sw uint16, message string) *ErrBadResponse {
	return &ErrBadResponse{
		Sw:      sw,
		message: message,
	}
}

func (e *ErrBadResponse) Error() string {
	return fmt.Sprintf("bad response %x: %s", e.Sw, e.message)
}

// Response represents a struct containing the APDU response fields.
type Response struct {
	Data []byte
	Sw1  uint8
	Sw2  uint8
	Sw   uint16
}

// ParseResponse returns a parsed Response from raw bytes.
func ParseResponse(data []byte) (*Response, error) {
	if len(data) < 2 {
		return nil, ErrBadRawResponse
	}

	r := &Response{
		Data: data[:len(data)-2],
		Sw1:  data[len(data)-2],
		Sw2:  data[len(data)-1],
	}
	r.Sw = (uint16(r.Sw1) << 8) | uint16(r.Sw2)

	return r, nil
}

// NewResponse builds a Response from payload data and a status word.
func NewResponse(data []byte, sw uint16) *Response {
	return &Response{
		Data: data,
		Sw1:  uint8(sw >> 8),
		Sw2:  uint8(sw & 0xFF),
		Sw:   sw,
	}
}

// Serialize turns the response back into the raw card answer.
func (r *Response) Serialize() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	out = append(out, r.Sw1, r.Sw2)

	return out
}

// IsOK reports whether the status word is 0x9000.
func (r *Response) IsOK() bool {
	return r.Sw == SwOK
}
