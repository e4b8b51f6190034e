package kadnet

import (
	"context"
	"net"
	"sync"

	"github.com/Tubbz-alt/lrad/src/internal/futures"
	"github.com/pkg/errors"
)

// conn is a single TCP connection to a remote node, shared by all calls
// to that address. Requests are matched to responses by the cookie the
// remote echoes back; a response carrying an unknown cookie is dropped,
// which leaves the caller to time out as if the response never arrived.
type conn struct {
	addr string
	tcp  net.Conn

	wmu     sync.Mutex
	pending *futures.Store[string, *Message]
	done    chan struct{}
}

func dialConn(ctx context.Context, addr string) (*conn, error) {
	var d net.Dialer
	tcp, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}
	c := &conn{
		addr:    addr,
		tcp:     tcp,
		pending: futures.NewStore[string, *Message](),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// call sends req and blocks until the response with the same cookie
// arrives, ctx expires, or the connection dies.
func (c *conn) call(ctx context.Context, req *Message) (*Message, error) {
	key := string(req.Cookie)
	fut, created := c.pending.GetOrCreate(key)
	if !created {
		return nil, errors.Errorf("cookie collision on call to %s", c.addr)
	}
	defer c.pending.Delete(key)
	if err := c.write(req); err != nil {
		return nil, err
	}
	return fut.Await(ctx)
}

func (c *conn) write(m *Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeFrame(c.tcp, m)
}

func (c *conn) readLoop() {
	for {
		m, err := readFrame(c.tcp)
		if err != nil {
			c.teardown(errors.Wrapf(err, "connection to %s lost", c.addr))
			return
		}
		if fut := c.pending.Get(string(m.Cookie)); fut != nil {
			fut.Succeed(m)
		}
	}
}

func (c *conn) teardown(err error) {
	c.pending.FailAll(err)
	close(c.done)
	c.tcp.Close()
}

func (c *conn) isDead() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *conn) close() error {
	return c.tcp.Close()
}
