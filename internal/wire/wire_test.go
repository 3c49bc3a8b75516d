package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendString_Layout(t *testing.T) {
	got := AppendString(nil, "Ann")
	assert.Equal(t, []byte{3, 0, 0, 0, 'A', 'n', 'n'}, got)
	assert.Equal(t, 7, StringSize("Ann"))
}

func TestAppendBool(t *testing.T) {
	assert.Equal(t, []byte{1, 0}, AppendBool(AppendBool(nil, true), false))
}

func TestReader_Sequence(t *testing.T) {
	buf := AppendBool(nil, true)
	buf = AppendString(buf, "name")
	buf = AppendString(buf, "")
	buf = append(buf, 0xAA)

	r := NewReader(buf)
	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "name", s)

	s, err = r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	assert.Equal(t, 1, r.Remaining())
	assert.Equal(t, len(buf)-1, r.Offset())
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		read func(r *Reader) error
		want error
	}{
		{
			name: "empty u8",
			buf:  nil,
			read: func(r *Reader) error { _, err := r.ReadU8(); return err },
			want: ErrShortBuffer,
		},
		{
			name: "bool out of range",
			buf:  []byte{2},
			read: func(r *Reader) error { _, err := r.ReadBool(); return err },
			want: ErrInvalidBool,
		},
		{
			name: "truncated prefix",
			buf:  []byte{1, 0},
			read: func(r *Reader) error { _, err := r.ReadString(); return err },
			want: ErrShortBuffer,
		},
		{
			name: "length overruns buffer",
			buf:  []byte{5, 0, 0, 0, 'a', 'b'},
			read: func(r *Reader) error { _, err := r.ReadString(); return err },
			want: ErrShortBuffer,
		},
		{
			name: "huge length",
			buf:  []byte{0xff, 0xff, 0xff, 0xff},
			read: func(r *Reader) error { _, err := r.ReadString(); return err },
			want: ErrShortBuffer,
		},
		{
			name: "invalid utf-8",
			buf:  []byte{2, 0, 0, 0, 0xc3, 0x28},
			read: func(r *Reader) error { _, err := r.ReadString(); return err },
			want: ErrInvalidUTF8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(NewReader(tt.buf))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
