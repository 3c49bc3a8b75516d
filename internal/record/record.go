// Package record defines the fixed binary layout of a stored record.
//
// Slot layout:
//
//	[initialized u8][u32 LE name_len][name][u32 LE message_len][message][zero padding]
//
// A slot that has never been written is all zeros and decodes as an
// uninitialized record with empty strings.
package record

import (
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/wire"
)

// Capacity is the size of every record slot in bytes.
const Capacity = 1000

// MinSize is the encoded width of an uninitialized record with empty strings.
const MinSize = 1 + wire.LengthPrefixSize + wire.LengthPrefixSize

// Record is the persisted entity. Initialized never reverts to false.
type Record struct {
	Initialized bool   `json:"initialized"`
	Name        string `json:"name"`
	Message     string `json:"message"`
}

// SerializedLen returns the encoded width of a record holding name and message.
func SerializedLen(name, message string) int {
	return 1 + wire.StringSize(name) + wire.StringSize(message)
}

// Fits reports whether a record holding name and message fits in a slot.
func Fits(name, message string) bool {
	return SerializedLen(name, message) <= Capacity
}

// Len returns the encoded width of r.
func (r Record) Len() int {
	return SerializedLen(r.Name, r.Message)
}

// Bytes returns the encoding of r without padding.
func (r Record) Bytes() []byte {
	buf := make([]byte, 0, r.Len())
	buf = wire.AppendBool(buf, r.Initialized)
	buf = wire.AppendString(buf, r.Name)
	buf = wire.AppendString(buf, r.Message)
	return buf
}

// Serialize writes r to the front of dst. Bytes past Len are left untouched.
func (r Record) Serialize(dst []byte) error {
	n := r.Len()
	if n > len(dst) {
		return failure.New(failure.DataTooLarge, "record needs %d bytes, slot holds %d", n, len(dst))
	}
	copy(dst, r.Bytes())
	return nil
}

// Deserialize decodes a record from the front of src. Trailing bytes are ignored.
func Deserialize(src []byte) (Record, error) {
	if len(src) < MinSize {
		return Record{}, failure.New(failure.MalformedRecord, "slot holds %d bytes, need at least %d", len(src), MinSize)
	}

	r := wire.NewReader(src)
	initialized, err := r.ReadBool()
	if err != nil {
		return Record{}, failure.Wrap(failure.MalformedRecord, err, "decode initialized flag")
	}
	name, err := r.ReadString()
	if err != nil {
		return Record{}, failure.Wrap(failure.MalformedRecord, err, "decode name")
	}
	message, err := r.ReadString()
	if err != nil {
		return Record{}, failure.Wrap(failure.MalformedRecord, err, "decode message")
	}

	return Record{
		Initialized: initialized,
		Name:        name,
		Message:     message,
	}, nil
}
