package bitstr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesMSB(t *testing.T) {
	x := BytesMSB{Bytes: []byte{0b1010_0000, 0b0000_0001}}
	require.Equal(t, 16, x.Len())
	require.True(t, x.At(0))
	require.False(t, x.At(1))
	require.True(t, x.At(2))
	require.False(t, x.At(3))
	require.True(t, x.At(15))
}

func TestStringMSB(t *testing.T) {
	x := StringMSB{Str: string([]byte{0b0100_0000})}
	require.Equal(t, 8, x.Len())
	require.False(t, x.At(0))
	require.True(t, x.At(1))
	require.Equal(t, 0, CommonPrefixLen(x, BytesMSB{Bytes: []byte{0xff}}))
	require.Equal(t, 8, CommonPrefixLen(x, BytesMSB{Bytes: []byte{0x40}}))
}

func TestCommonPrefixLen(t *testing.T) {
	for _, tc := range []struct {
		a, b []byte
		l    int
	}{
		{[]byte{0x00}, []byte{0x00}, 8},
		{[]byte{0xff}, []byte{0x00}, 0},
		{[]byte{0b1000_0000}, []byte{0b1100_0000}, 1},
		{[]byte{0xaa, 0xaa}, []byte{0xaa, 0xab}, 15},
		{[]byte{0x01, 0x00}, []byte{0x01, 0x00}, 16},
	} {
		a := BytesMSB{Bytes: tc.a}
		b := BytesMSB{Bytes: tc.b}
		require.Equal(t, tc.l, CommonPrefixLen(a, b))
		require.Equal(t, tc.l, CommonPrefixLen(b, a))
	}
}

func TestHasPrefix(t *testing.T) {
	x := BytesMSB{Bytes: []byte{0b1011_0000}}
	p := BytesMSB{Bytes: []byte{0b1011_0000}, End: 4}
	require.True(t, HasPrefix(x, p))
	require.False(t, HasPrefix(p, x))
	q := BytesMSB{Bytes: []byte{0b1111_0000}, End: 4}
	require.False(t, HasPrefix(x, q))
}

func TestFormat(t *testing.T) {
	x := BytesMSB{Bytes: []byte{0b1010_1010}}
	require.Equal(t, "10101", Format(x, 5))
	require.Equal(t, "10101010", Format(x, 99))
}
