// Package instruction decodes and encodes record program instructions.
//
// Instruction layout:
//
//	[opcode u8][u32 LE name_len][name][u32 LE message_len][message]
package instruction

import (
	"errors"

	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/wire"
)

// Opcode selects the operation an instruction performs.
type Opcode uint8

const (
	// OpCreate creates the signer's record.
	OpCreate Opcode = 0
	// OpUpdate replaces name and message of an existing record.
	OpUpdate Opcode = 1
)

// String returns the lower-case operation name.
func (op Opcode) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Command is a decoded instruction.
type Command struct {
	Op      Opcode
	Name    string
	Message string
}

// NewCreate builds a create command.
func NewCreate(name, message string) Command {
	return Command{Op: OpCreate, Name: name, Message: message}
}

// NewUpdate builds an update command.
func NewUpdate(name, message string) Command {
	return Command{Op: OpUpdate, Name: name, Message: message}
}

// Decode parses instruction data. The opcode is validated before the
// payload, and the payload must be consumed exactly.
func Decode(data []byte) (Command, error) {
	if len(data) == 0 {
		return Command{}, failure.New(failure.EmptyInstruction, "instruction has no opcode")
	}

	op := Opcode(data[0])
	if op != OpCreate && op != OpUpdate {
		return Command{}, failure.New(failure.UnknownOpcode, "opcode %d", data[0])
	}

	r := wire.NewReader(data[1:])
	name, err := r.ReadString()
	if err != nil {
		return Command{}, failure.Wrap(failure.MalformedPayload, err, "decode name")
	}
	message, err := r.ReadString()
	if err != nil {
		return Command{}, failure.Wrap(failure.MalformedPayload, err, "decode message")
	}
	if r.Remaining() != 0 {
		return Command{}, failure.Wrap(failure.MalformedPayload, errors.New("trailing bytes"),
			"payload has unread bytes")
	}

	return Command{Op: op, Name: name, Message: message}, nil
}

// Encode returns the instruction bytes for cmd.
func Encode(cmd Command) []byte {
	buf := make([]byte, 0, 1+wire.StringSize(cmd.Name)+wire.StringSize(cmd.Message))
	buf = append(buf, byte(cmd.Op))
	buf = wire.AppendString(buf, cmd.Name)
	buf = wire.AppendString(buf, cmd.Message)
	return buf
}
