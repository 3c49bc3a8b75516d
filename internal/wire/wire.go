// Package wire implements the length-prefixed little-endian encoding used by
// both instruction payloads and stored records.
//
// Layout rules:
//   - bool: one byte, 0 or 1
//   - string: u32 little-endian byte length followed by UTF-8 bytes
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// LengthPrefixSize is the width of a string length prefix.
const LengthPrefixSize = 4

var (
	// ErrShortBuffer is returned when a read runs past the end of the input.
	ErrShortBuffer = errors.New("short buffer")

	// ErrInvalidBool is returned for a bool byte other than 0 or 1.
	ErrInvalidBool = errors.New("invalid bool")

	// ErrInvalidUTF8 is returned when string bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// StringSize returns the encoded width of s.
func StringSize(s string) int {
	return LengthPrefixSize + len(s)
}

// AppendBool appends the encoding of b to dst.
func AppendBool(dst []byte, b bool) []byte {
	if b {
		return append(dst, 1)
	}
	return append(dst, 0)
}

// AppendString appends the length-prefixed encoding of s to dst.
func AppendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// Reader decodes values from a byte slice, front to back.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, fmt.Errorf("read u8 at %d: %w", r.off, ErrShortBuffer)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// ReadBool reads a strict 0/1 byte.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("read bool at %d: %w (0x%02x)", r.off-1, ErrInvalidBool, v)
	}
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, fmt.Errorf("read u32 at %d: %w", r.off, ErrShortBuffer)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// ReadString reads a length-prefixed UTF-8 string.
// A declared length that overruns the buffer is an ErrShortBuffer.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", fmt.Errorf("read string of %d bytes at %d (%d remaining): %w", n, r.off, r.Remaining(), ErrShortBuffer)
	}
	b := r.buf[r.off : r.off+int(n)]
	if !utf8.Valid(b) {
		return "", fmt.Errorf("read string at %d: %w", r.off, ErrInvalidUTF8)
	}
	r.off += int(n)
	return string(b), nil
}
