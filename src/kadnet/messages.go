// Package kadnet speaks the DHT wire protocol: four RPCs (ping, store,
// find_node, find_value) as msgpack messages over length-prefixed TCP
// frames. Server answers them against a kademlia.Node; Client issues them
// and runs the iterative lookups that populate the same node.
package kadnet

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

// MessageType identifies which RPC a Message carries.
type MessageType uint8

const (
	MsgPing MessageType = iota
	MsgStore
	MsgFindNode
	MsgFindValue
)

func (t MessageType) String() string {
	switch t {
	case MsgPing:
		return "ping"
	case MsgStore:
		return "store"
	case MsgFindNode:
		return "find_node"
	case MsgFindValue:
		return "find_value"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Message is the single frame type exchanged between peers. A request and
// its response carry the same Type and Cookie; which of the remaining fields
// are meaningful depends on the type and the direction.
//
// The Cookie is generated fresh by the caller for every request and echoed
// verbatim by the responder. Responses are matched to callers by it; a
// response whose cookie matches no outstanding request is dropped.
type Message struct {
	Type      MessageType   `msgpack:"t"`
	Cookie    []byte        `msgpack:"c"`
	PublicKey []byte        `msgpack:"pk,omitempty"`
	Target    []byte        `msgpack:"id,omitempty"`
	Data      []byte        `msgpack:"d,omitempty"`
	Found     bool          `msgpack:"f,omitempty"`
	Contacts  []WireContact `msgpack:"n,omitempty"`
}

// WireContact is how a ContactInfo travels inside messages. Identities are
// public keys only; private keys never leave their node.
type WireContact struct {
	Addr      string `msgpack:"a"`
	ID        []byte `msgpack:"id"`
	PublicKey []byte `msgpack:"pk"`
	RTT       int64  `msgpack:"rtt"` // nanoseconds
}

// WhoHasIt is a find_value answer: either the value itself, or the closest
// contacts to ask instead.
type WhoHasIt struct {
	Found    bool
	Data     []byte
	Contacts []kademlia.ContactInfo
}

func contactToWire(c kademlia.ContactInfo) WireContact {
	return WireContact{
		Addr:      c.Addr,
		ID:        c.ID.Bytes(),
		PublicKey: c.Identity.PublicKey(),
		RTT:       int64(c.RTT),
	}
}

// contactFromWire validates and rebuilds a contact. The identifier is
// recomputed from the public key; a claimed identifier that does not match
// the key is rejected rather than trusted.
func contactFromWire(w WireContact, size kademlia.IdentifierSize) (kademlia.ContactInfo, error) {
	identity, err := kademlia.ParseIdentity(w.PublicKey, size)
	if err != nil {
		return kademlia.ContactInfo{}, errors.Wrapf(err, "contact %s", w.Addr)
	}
	c := kademlia.NewContact(w.Addr, identity, size, time.Duration(w.RTT))
	claimed, err := kademlia.NewIdentifier(size, w.ID)
	if err != nil {
		return kademlia.ContactInfo{}, errors.Wrapf(err, "contact %s", w.Addr)
	}
	if !claimed.Equal(c.ID) {
		return kademlia.ContactInfo{}, errors.Errorf("kadnet: contact %s claims identifier %v but its key hashes to %v", w.Addr, claimed, c.ID)
	}
	return c, nil
}

func contactsToWire(cs []kademlia.ContactInfo) []WireContact {
	ret := make([]WireContact, 0, len(cs))
	for _, c := range cs {
		ret = append(ret, contactToWire(c))
	}
	return ret
}

func contactsFromWire(ws []WireContact, size kademlia.IdentifierSize) ([]kademlia.ContactInfo, error) {
	ret := make([]kademlia.ContactInfo, 0, len(ws))
	for _, w := range ws {
		c, err := contactFromWire(w, size)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, nil
}
