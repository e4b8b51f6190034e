package kademlia

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/pkg/errors"
)

const pemTypePrivateKey = "PRIVATE KEY"

// MarshalPrivateKeyPEM encodes the identity's private key as a PKCS#8
// "PRIVATE KEY" PEM block.
func MarshalPrivateKeyPEM(ni NodeIdentity) ([]byte, error) {
	if !ni.HasPrivate() {
		return nil, errors.New("kademlia: identity has no private key")
	}
	der, err := x509.MarshalPKCS8PrivateKey(ni.PrivateKey())
	if err != nil {
		return nil, errors.Wrap(err, "marshaling private key")
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePrivateKey,
		Bytes: der,
	}), nil
}

// ParsePrivateKeyPEM decodes a PKCS#8 PEM private key and rebuilds the
// identity. The identifier size is implied by the key's curve.
func ParsePrivateKeyPEM(data []byte) (NodeIdentity, error) {
	b, _ := pem.Decode(data)
	if b == nil {
		return NodeIdentity{}, errors.New("kademlia: no PEM block found")
	}
	if b.Type != pemTypePrivateKey {
		return NodeIdentity{}, errors.Errorf("kademlia: wrong type for PEM block %q", b.Type)
	}
	key, err := x509.ParsePKCS8PrivateKey(b.Bytes)
	if err != nil {
		return NodeIdentity{}, errors.Wrap(err, "parsing private key")
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return NodeIdentity{}, errors.Errorf("kademlia: unsupported key type %T", key)
	}
	return IdentityFromPrivateKey(priv)
}
