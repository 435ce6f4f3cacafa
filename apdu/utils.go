package apdu

import (
	"bytes"
	"fmt"
	"io"
)

// ErrTagNotFound is an error returned if a tag is not found in a TLV sequence.
type ErrTagNotFound struct {
	tag uint8
}

// Error implements the error interface
func (e *ErrTagNotFound) Error() string {
	return fmt.Sprintf("tag %x not found", e.tag)
}

// FindTag searches for a tag value within a TLV sequence.
func FindTag(raw []byte, tags ...uint8) ([]byte, error) {
	return findTag(raw, 0, tags...)
}

// FindTagN searches for a tag value within a TLV sequence and returns the n occurrence
func FindTagN(raw []byte, n int, tags ...uint8) ([]byte, error) {
	return findTag(raw, n, tags...)
}

// WriteTLV appends a one byte tag, a one byte length and the value to buf.
func WriteTLV(buf *bytes.Buffer, tag uint8, value []byte) {
	buf.WriteByte(tag)
	buf.WriteByte(uint8(len(value)))
	buf.Write(value)
}

func findTag(raw []byte, occurrence int, tags ...uint8) ([]byte, error) {
	if len(tags) == 0 {
		return raw, nil
	}

	target := tags[0]
	buf := bytes.NewBuffer(raw)

	for {
		tag, err := buf.ReadByte()
		if err == io.EOF {
			return []byte{}, &ErrTagNotFound{target}
		} else if err != nil {
			return nil, err
		}

		length, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}

		data := buf.Next(int(length))
		if len(data) != int(length) {
			return nil, io.ErrUnexpectedEOF
		}

		if tag != target {
			continue
		}

		// count occurrences only on the last tag of the search path
		if len(tags) == 1 {
			if occurrence > 0 {
				occurrence--
				continue
			}

			return data, nil
		}

		return findTag(data, occurrence, tags[1:]...)
	}
}
