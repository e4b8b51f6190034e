package kadnet

import (
	"fmt"
	"net"

	"github.com/pkg/errors"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

// ErrClosed is returned from calls made after a Client has been closed.
var ErrClosed = net.ErrClosed

func IsErrClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// ErrValueNotFound is returned by FindValue when the lookup exhausts every
// candidate without any peer producing the value.
type ErrValueNotFound struct {
	ID kademlia.Identifier
}

func (e ErrValueNotFound) Error() string {
	return fmt.Sprintf("kadnet: no peer has a value for %v", e.ID)
}

func IsErrValueNotFound(err error) bool {
	return errors.As(err, &ErrValueNotFound{})
}

// ErrNoPeers is returned when an operation has no peers to work with:
// the routing table is empty, or nobody accepted a store.
type ErrNoPeers struct {
	ID kademlia.Identifier
}

func (e ErrNoPeers) Error() string {
	return fmt.Sprintf("kadnet: no peers accepted the value for %v", e.ID)
}

func IsErrNoPeers(err error) bool {
	return errors.As(err, &ErrNoPeers{})
}
