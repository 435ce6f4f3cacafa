package apdu

import (
	"bytes"
	"fmt"
)

// ErrBadCommand is an error returned when serializing a malformed command.
type ErrBadCommand struct {
	message string
}

func (e *ErrBadCommand) Error() string {
	return e.message
}

// Command struct represent the structure of an APDU command.
type Command struct {
	Cla  uint8
	Ins  uint8
	P1   uint8
	P2   uint8
	Data []byte

	requiresLe bool
	le         uint8
}

// NewCommand returns a new apdu Command.
func NewCommand(cla, ins, p1, p2 uint8, data []byte) *Command {
	return &Command{
		Cla:        cla,
		Ins:        ins,
		P1:         p1,
		P2:         p2,
		Data:       data,
		requiresLe: false,
	}
}

// SetLe sets the expected response length.
func (c *Command) SetLe(le uint8) {
	c.requiresLe = true
	c.le = le
}

// Le returns if Le is set and its value.
func (c *Command) Le() (bool, uint8) {
	return c.requiresLe, c.le
}

// Serialize serializes the command to a raw byte sequence.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.Data) > 0xFF {
		return nil, &ErrBadCommand{fmt.Sprintf("command data too long: %d", len(c.Data))}
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Cla)
	buf.WriteByte(c.Ins)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)
	buf.WriteByte(uint8(len(c.Data)))
	buf.Write(c.Data)

	if c.requiresLe {
		buf.WriteByte(c.le)
	}

	return buf.Bytes(), nil
}
