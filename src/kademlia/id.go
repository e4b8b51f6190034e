package kademlia

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"

	"github.com/Tubbz-alt/lrad/src/internal/bitstr"
)

// Base64Alphabet is used for encoding Identifiers in base64.
// It is a URL-safe base64 alphabet, with the characters in ascending order,
// so encoded Identifiers have the same order as the Identifiers themselves.
const Base64Alphabet = "-0123456789" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + "_" + "abcdefghijklmnopqrstuvwxyz"

var enc = base64.NewEncoding(Base64Alphabet).WithPadding(base64.NoPadding)

// Identifier is an immutable fixed-width bit string tagged with its width.
// Identifiers name nodes (the hash of the node's public key) and stored
// values, and double as the magic cookies binding RPC responses to requests.
//
// The zero Identifier is invalid; IsZero reports it.
type Identifier struct {
	size IdentifierSize
	bits string
}

// NewIdentifier builds an Identifier of the given width from raw bytes.
func NewIdentifier(size IdentifierSize, b []byte) (Identifier, error) {
	if len(b) != size.Bytes() {
		return Identifier{}, errors.Errorf("kademlia: identifier must be %d bytes, have %d", size.Bytes(), len(b))
	}
	return Identifier{size: size, bits: string(b)}, nil
}

// NewMagicCookie returns a random Identifier used to pair an RPC response
// with its request. Cookies are never inserted into routing tables.
func NewMagicCookie(size IdentifierSize) Identifier {
	buf := make([]byte, size.Bytes())
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return Identifier{size: size, bits: string(buf)}
}

// HashOf returns the Identifier naming data: the width's hash of it.
func HashOf(size IdentifierSize, data []byte) Identifier {
	return Identifier{size: size, bits: string(size.Hash(data))}
}

func (id Identifier) Size() IdentifierSize {
	return id.size
}

func (id Identifier) IsZero() bool {
	return id.bits == ""
}

// Bytes returns a copy of the identifier's bytes, most significant first.
func (id Identifier) Bytes() []byte {
	return []byte(id.bits)
}

func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// Identifier returns id itself, so identifiers can be stored directly in a
// Table.
func (id Identifier) Identifier() Identifier {
	return id
}

// Distance returns the distance from id to other: the width in bits minus the
// length of their common leading bit-prefix. Equal identifiers are at
// distance 0; identifiers disagreeing in the first bit are at the maximum
// distance, the width itself. This is the routing table's bucket index.
//
// Both identifiers must have the same width; mixing widths is a programming
// error and panics.
func (id Identifier) Distance(other Identifier) int {
	if id.size != other.size {
		panic(fmt.Sprintf("kademlia: distance between %d and %d bit identifiers", id.size.Bits(), other.size.Bits()))
	}
	a := bitstr.StringMSB{Str: id.bits}
	b := bitstr.StringMSB{Str: other.bits}
	return id.size.Bits() - bitstr.CommonPrefixLen(a, b)
}

func (id Identifier) String() string {
	return enc.EncodeToString([]byte(id.bits))
}

func (id Identifier) MarshalText() ([]byte, error) {
	buf := make([]byte, enc.EncodedLen(len(id.bits)))
	enc.Encode(buf, []byte(id.bits))
	return buf, nil
}

func (id *Identifier) UnmarshalText(data []byte) error {
	buf := make([]byte, enc.DecodedLen(len(data)))
	n, err := enc.Decode(buf, data)
	if err != nil {
		return errors.Wrap(err, "parsing identifier")
	}
	size, err := sizeForBytes(n)
	if err != nil {
		return err
	}
	*id = Identifier{size: size, bits: string(buf[:n])}
	return nil
}

// ParseIdentifier parses the base64 text form. The width is implied by the
// length of the text.
func ParseIdentifier(x []byte) (Identifier, error) {
	var id Identifier
	if err := id.UnmarshalText(x); err != nil {
		return Identifier{}, err
	}
	return id, nil
}

func sizeForBytes(n int) (IdentifierSize, error) {
	switch s := IdentifierSize(n * 8); s {
	case Size224, Size256, Size384, Size512:
		return s, nil
	}
	return 0, errors.Errorf("kademlia: no identifier size is %d bytes", n)
}
