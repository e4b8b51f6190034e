package kadnet

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/pkg/errors"
	"go.brendoncarroll.net/stdctx/logctx"
)

// Server answers RPCs against a single node's routing table and value store.
// Handlers never mutate the routing table; learning about callers is the
// caller side's job.
type Server struct {
	node    *kademlia.Node
	metrics *Metrics
}

func NewServer(node *kademlia.Node, metrics *Metrics) *Server {
	return &Server{node: node, metrics: metrics}
}

// Serve accepts connections from l until ctx is cancelled or the listener
// fails. Each connection is served on its own goroutine; requests within a
// connection are answered in order.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	wg := sync.WaitGroup{}
	defer wg.Wait()
	for {
		tcp, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting connection")
		}
		logctx.Debugf(ctx, "accepted connection from %v", tcp.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, tcp)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, tcp net.Conn) {
	defer tcp.Close()
	stop := context.AfterFunc(ctx, func() { tcp.Close() })
	defer stop()
	for {
		req, err := readFrame(tcp)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				logctx.Debugf(ctx, "connection from %v: %v", tcp.RemoteAddr(), err)
			}
			return
		}
		resp, err := s.handle(req)
		if err != nil {
			logctx.Warnf(ctx, "dropping connection from %v: %v", tcp.RemoteAddr(), err)
			return
		}
		if err := writeFrame(tcp, resp); err != nil {
			logctx.Debugf(ctx, "connection from %v: %v", tcp.RemoteAddr(), err)
			return
		}
	}
}

// handle answers a single request. A non-nil error means the request was
// malformed and the connection should be dropped.
func (s *Server) handle(req *Message) (*Message, error) {
	size := s.node.Size()
	if len(req.Cookie) != size.Bytes() {
		return nil, errors.Errorf("bad cookie length %d for %v", len(req.Cookie), size)
	}
	s.metrics.served(req.Type)
	resp := &Message{
		Type:   req.Type,
		Cookie: req.Cookie,
	}
	switch req.Type {
	case MsgPing:
		if _, err := kademlia.ParseIdentity(req.PublicKey, size); err != nil {
			return nil, errors.Wrap(err, "ping sender key")
		}
		resp.PublicKey = s.node.Identity().PublicKey()
	case MsgStore:
		id, err := kademlia.NewIdentifier(size, req.Target)
		if err != nil {
			return nil, errors.Wrap(err, "store key")
		}
		s.node.Put(id, req.Data)
	case MsgFindNode:
		id, err := kademlia.NewIdentifier(size, req.Target)
		if err != nil {
			return nil, errors.Wrap(err, "find_node target")
		}
		resp.Contacts = contactsToWire(s.node.KClosestTo(id))
	case MsgFindValue:
		id, err := kademlia.NewIdentifier(size, req.Target)
		if err != nil {
			return nil, errors.Wrap(err, "find_value key")
		}
		if data, ok := s.node.Get(id); ok {
			resp.Found = true
			resp.Data = data
		} else {
			resp.Contacts = contactsToWire(s.node.KClosestTo(id))
		}
	default:
		return nil, errors.Errorf("unknown message type %d", req.Type)
	}
	return resp, nil
}
