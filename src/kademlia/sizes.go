package kademlia

import (
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/pkg/errors"
)

// IdentifierSize is the bit width of the identifiers on a network.
// Every width is bound to the hash used to derive identifiers from public
// keys, and to the curve that identity keys are generated on.
// All nodes on a network must agree on the width.
type IdentifierSize int

const (
	Size224 IdentifierSize = 224
	Size256 IdentifierSize = 256
	Size384 IdentifierSize = 384
	Size512 IdentifierSize = 512
)

// DefaultSize is used wherever a width is not explicitly configured.
const DefaultSize = Size256

// Sizes returns all supported identifier widths in ascending order.
func Sizes() []IdentifierSize {
	return []IdentifierSize{Size224, Size256, Size384, Size512}
}

// ParseSize validates bits against the supported widths.
func ParseSize(bits int) (IdentifierSize, error) {
	switch s := IdentifierSize(bits); s {
	case Size224, Size256, Size384, Size512:
		return s, nil
	}
	return 0, errors.Errorf("kademlia: unsupported identifier size %d", bits)
}

func (s IdentifierSize) Bits() int {
	return int(s)
}

func (s IdentifierSize) Bytes() int {
	return int(s) / 8
}

// Hash digests data with the SHA-2 variant matching the width.
func (s IdentifierSize) Hash(data []byte) []byte {
	switch s {
	case Size224:
		sum := sha256.Sum224(data)
		return sum[:]
	case Size256:
		sum := sha256.Sum256(data)
		return sum[:]
	case Size384:
		sum := sha512.Sum384(data)
		return sum[:]
	case Size512:
		sum := sha512.Sum512(data)
		return sum[:]
	}
	panic(fmt.Sprintf("kademlia: unsupported identifier size %d", int(s)))
}

// Curve returns the curve that identity keys for this width are generated on.
// 512 bit identifiers use P-521, the widest curve available.
func (s IdentifierSize) Curve() elliptic.Curve {
	switch s {
	case Size224:
		return elliptic.P224()
	case Size256:
		return elliptic.P256()
	case Size384:
		return elliptic.P384()
	case Size512:
		return elliptic.P521()
	}
	panic(fmt.Sprintf("kademlia: unsupported identifier size %d", int(s)))
}

// SizeForCurve is the inverse of Curve.
func SizeForCurve(curve elliptic.Curve) (IdentifierSize, error) {
	switch curve {
	case elliptic.P224():
		return Size224, nil
	case elliptic.P256():
		return Size256, nil
	case elliptic.P384():
		return Size384, nil
	case elliptic.P521():
		return Size512, nil
	}
	return 0, errors.Errorf("kademlia: no identifier size uses curve %s", curve.Params().Name)
}
