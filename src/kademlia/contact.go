package kademlia

import "time"

// ContactInfo is everything needed to reach a peer: its network address,
// routing identifier, public identity, and the last measured round trip time.
type ContactInfo struct {
	Addr     string
	ID       Identifier
	Identity NodeIdentity
	RTT      time.Duration
}

// NewContact builds a ContactInfo for identity reachable at addr,
// deriving the identifier at the given width.
func NewContact(addr string, identity NodeIdentity, size IdentifierSize, rtt time.Duration) ContactInfo {
	return ContactInfo{
		Addr:     addr,
		ID:       identity.ID(size),
		Identity: identity.StripPrivate(),
		RTT:      rtt,
	}
}

// Equal is true when both contacts name the same identifier. Addresses are
// deliberately left out of the comparison: a peer whose address changed is
// re-inserted under the same identifier instead of accumulating duplicates.
func (c ContactInfo) Equal(other ContactInfo) bool {
	return c.ID.Equal(other.ID)
}

// Identifier returns the contact's identifier, placing it in routing tables.
func (c ContactInfo) Identifier() Identifier {
	return c.ID
}
