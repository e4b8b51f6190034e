// Package bitstr provides bit-level views over byte slices.
package bitstr

import "strings"

// Source is a source of bits.
type Source interface {
	At(i int) bool
	Len() int
}

// BytesMSB is a source of bits, backed by a []byte.
// The MSB is considered the first bit in a byte.
type BytesMSB struct {
	Bytes []byte
	Begin int
	End   int
}

func (x BytesMSB) At(i int) bool {
	i += x.Begin
	return x.Bytes[i/8]&mask8MSB(i) > 0
}

func (x BytesMSB) Len() int {
	end := x.End
	if end == 0 {
		end = len(x.Bytes) * 8
	}
	return end - x.Begin
}

func mask8MSB(i int) uint8 {
	return 128 >> (i % 8)
}

// StringMSB is a source of bits, backed by a string.
// The MSB is considered the first bit in a byte.
type StringMSB struct {
	Str string
}

func (x StringMSB) At(i int) bool {
	return x.Str[i/8]&mask8MSB(i) > 0
}

func (x StringMSB) Len() int {
	return len(x.Str) * 8
}

// HasPrefix returns true if the first len(p) bits of x are equal to p.
func HasPrefix(x, p Source) bool {
	if x.Len() < p.Len() {
		return false
	}
	for i := 0; i < p.Len(); i++ {
		if x.At(i) != p.At(i) {
			return false
		}
	}
	return true
}

// CommonPrefixLen returns the number of leading bits shared by a and b,
// at most min(a.Len(), b.Len()).
func CommonPrefixLen(a, b Source) int {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		if a.At(i) != b.At(i) {
			return i
		}
	}
	return n
}

// Format renders the first n bits of x as a string of '0' and '1',
// for diagnostics.
func Format(x Source, n int) string {
	if x.Len() < n {
		n = x.Len()
	}
	sb := strings.Builder{}
	for i := 0; i < n; i++ {
		if x.At(i) {
			sb.WriteString("1")
		} else {
			sb.WriteString("0")
		}
	}
	return sb.String()
}
