package kadnet

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.brendoncarroll.net/stdctx/logctx"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// DefaultCallTimeout bounds a single request/response exchange.
const DefaultCallTimeout = 5 * time.Second

type ClientParams struct {
	// Node supplies the local identity, the routing table fed by lookups,
	// and the lookup parameters k and alpha.
	Node *kademlia.Node
	// CallTimeout bounds each RPC. Defaults to DefaultCallTimeout.
	CallTimeout time.Duration
	// Clock is used for RTT measurement and call deadlines.
	// Defaults to the real clock.
	Clock clock.Clock
	// Metrics is optional.
	Metrics *Metrics
}

// Client issues RPCs and runs iterative lookups on behalf of a node.
// Connections are cached per address and redialed when they die.
type Client struct {
	node        *kademlia.Node
	callTimeout time.Duration
	clock       clock.Clock
	metrics     *Metrics

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
}

func NewClient(params ClientParams) *Client {
	if params.CallTimeout <= 0 {
		params.CallTimeout = DefaultCallTimeout
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &Client{
		node:        params.Node,
		callTimeout: params.CallTimeout,
		clock:       params.Clock,
		metrics:     params.Metrics,
		conns:       make(map[string]*conn),
	}
}

// Close tears down all cached connections. Pending calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, cn := range c.conns {
		cn.close()
	}
	maps.Clear(c.conns)
	return nil
}

// Ping checks that the node at addr is alive and returns its contact info,
// with the round trip time filled in. The routing table is left alone;
// promoting the contact is up to the caller.
func (c *Client) Ping(ctx context.Context, addr string) (kademlia.ContactInfo, error) {
	req := c.newRequest(MsgPing)
	req.PublicKey = c.node.Identity().PublicKey()
	start := c.clock.Now()
	resp, err := c.call(ctx, addr, req)
	if err != nil {
		return kademlia.ContactInfo{}, err
	}
	rtt := c.clock.Since(start)
	identity, err := kademlia.ParseIdentity(resp.PublicKey, c.node.Size())
	if err != nil {
		return kademlia.ContactInfo{}, errors.Wrapf(err, "ping response from %s", addr)
	}
	return kademlia.NewContact(addr, identity, c.node.Size(), rtt), nil
}

// Bootstrap contacts each address, with retries, and inserts responders
// into the routing table. It returns how many peers were added.
// Unreachable addresses are logged and skipped.
func (c *Client) Bootstrap(ctx context.Context, addrs []string) (int, error) {
	var added atomic.Int64
	eg, ctx2 := errgroup.WithContext(ctx)
	eg.SetLimit(c.node.Alpha())
	for _, addr := range addrs {
		addr := addr
		eg.Go(func() error {
			contact, err := c.pingBackoff(ctx2, addr)
			if err != nil {
				logctx.Warnf(ctx, "bootstrap %s: %v", addr, err)
				return nil
			}
			if contact.ID == c.node.LocalID() {
				return nil
			}
			c.node.Insert(contact)
			added.Add(1)
			return nil
		})
	}
	eg.Wait()
	return int(added.Load()), ctx.Err()
}

func (c *Client) pingBackoff(ctx context.Context, addr string) (kademlia.ContactInfo, error) {
	var contact kademlia.ContactInfo
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err := backoff.Retry(func() error {
		var err error
		contact, err = c.Ping(ctx, addr)
		return err
	}, bo)
	return contact, err
}

// FindNode runs an iterative lookup toward target. It returns the contact
// whose identifier equals target if one turned up, along with the k closest
// contacts observed. The lookup runs to exhaustion either way, so the
// routing table ends up populated around target.
func (c *Client) FindNode(ctx context.Context, target kademlia.Identifier) (*kademlia.ContactInfo, []kademlia.ContactInfo, error) {
	c.metrics.lookup("find_node")
	l, err := c.runLookup(ctx, target, func(ctx context.Context, addr string) (*WhoHasIt, error) {
		contacts, err := c.findNodeAt(ctx, addr, target)
		if err != nil {
			return nil, err
		}
		return &WhoHasIt{Contacts: contacts}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return l.exact, l.temp.KClosest(), nil
}

// FindValue retrieves the value stored under id, probing toward it until a
// holder answers. Callers that want the key for some data should hash it
// with kademlia.HashOf.
func (c *Client) FindValue(ctx context.Context, id kademlia.Identifier) ([]byte, error) {
	c.metrics.lookup("find_value")
	l, err := c.runLookup(ctx, id, func(ctx context.Context, addr string) (*WhoHasIt, error) {
		return c.findValueAt(ctx, addr, id)
	})
	if err != nil {
		return nil, err
	}
	if !l.haveValue {
		return nil, ErrValueNotFound{ID: id}
	}
	return l.value, nil
}

// Store writes data to the k closest nodes to its hash and returns the
// identifier it was stored under. A find_node lookup runs first so the
// closest-known set is fresh before any copies go out.
func (c *Client) Store(ctx context.Context, data []byte) (kademlia.Identifier, error) {
	c.metrics.lookup("store")
	id := kademlia.HashOf(c.node.Size(), data)
	if _, _, err := c.FindNode(ctx, id); err != nil {
		return kademlia.Identifier{}, err
	}
	targets := c.node.KClosestTo(id)
	if len(targets) == 0 {
		targets = c.node.KClosest()
	}
	var acked atomic.Int64
	eg, ctx2 := errgroup.WithContext(ctx)
	eg.SetLimit(c.node.Alpha())
	for _, ct := range targets {
		ct := ct
		eg.Go(func() error {
			if err := c.storeAt(ctx2, ct.Addr, id, data); err != nil {
				logctx.Warnf(ctx, "store at %s: %v", ct.Addr, err)
				return nil
			}
			acked.Add(1)
			return nil
		})
	}
	eg.Wait()
	if err := ctx.Err(); err != nil {
		return kademlia.Identifier{}, err
	}
	if acked.Load() == 0 {
		return kademlia.Identifier{}, ErrNoPeers{ID: id}
	}
	return id, nil
}

// errFoundValue aborts a lookup's errgroup early once a value turns up.
var errFoundValue = errors.New("lookup found value")

// lookup is the shared state of one iterative lookup: a temporary routing
// table keyed by the target, and the set of contacts already probed.
// The exact target match is kept out of the temp table and recorded aside.
type lookup struct {
	target kademlia.Identifier

	mu        sync.Mutex
	temp      *kademlia.Table[kademlia.ContactInfo]
	queried   map[kademlia.Identifier]struct{}
	exact     *kademlia.ContactInfo
	value     []byte
	haveValue bool
}

// runLookup drives rounds of up to alpha concurrent probes toward target
// until the k closest known contacts have all been probed, or probe reports
// a found value. Contacts that answer are promoted into the permanent
// routing table, and every contact they mention is folded into both the
// temp table and the permanent one, so lookup traffic doubles as
// routing-table learning.
func (c *Client) runLookup(ctx context.Context, target kademlia.Identifier, probe func(context.Context, string) (*WhoHasIt, error)) (*lookup, error) {
	self := c.node.LocalID()
	l := &lookup{
		target:  target,
		temp:    kademlia.NewTable[kademlia.ContactInfo](target, c.node.K()),
		queried: make(map[kademlia.Identifier]struct{}),
	}
	// The table's bucket range scan misses peers in buckets below the
	// target's distance; fall back to the plain closest set so a non-empty
	// table always seeds the lookup.
	seeds := c.node.KClosestTo(target)
	if len(seeds) == 0 {
		seeds = c.node.KClosest()
	}
	if len(seeds) == 0 {
		return nil, ErrNoPeers{ID: target}
	}
	l.merge(seeds, self)
	for {
		round := l.nextRound(c.node.Alpha())
		if len(round) == 0 {
			return l, nil
		}
		eg, ctx2 := errgroup.WithContext(ctx)
		for _, ct := range round {
			ct := ct
			eg.Go(func() error {
				who, err := probe(ctx2, ct.Addr)
				if err != nil {
					logctx.Debugf(ctx, "lookup probe %s: %v", ct.Addr, err)
					return nil
				}
				c.node.Update(ct, c.pingAlive(ctx))
				if who.Found {
					l.setValue(who.Data)
					return errFoundValue
				}
				for _, x := range who.Contacts {
					if x.ID != self {
						c.node.Update(x, c.pingAlive(ctx))
					}
				}
				l.merge(who.Contacts, self)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			if errors.Is(err, errFoundValue) {
				return l, nil
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// merge folds contacts into the temp table. The local node never goes in;
// a contact matching the target is recorded as the exact result instead.
func (l *lookup) merge(contacts []kademlia.ContactInfo, self kademlia.Identifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ct := range contacts {
		ct := ct
		switch ct.ID {
		case self:
		case l.target:
			l.exact = &ct
		default:
			l.temp.Insert(ct)
		}
	}
}

// nextRound picks up to alpha unprobed contacts from the k closest known,
// marking them probed. An empty result means the lookup is exhausted.
func (l *lookup) nextRound(alpha int) []kademlia.ContactInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []kademlia.ContactInfo
	for _, ct := range l.temp.KClosest() {
		if _, ok := l.queried[ct.ID]; ok {
			continue
		}
		l.queried[ct.ID] = struct{}{}
		out = append(out, ct)
		if len(out) == alpha {
			break
		}
	}
	return out
}

func (l *lookup) setValue(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.haveValue {
		l.value = data
		l.haveValue = true
	}
}

// pingAlive is the liveness check handed to Node.Update when a full bucket
// weighs evicting its oldest entry. A cancelled context counts as alive, so
// shutdown never evicts anyone.
func (c *Client) pingAlive(ctx context.Context) func(kademlia.ContactInfo) bool {
	return func(x kademlia.ContactInfo) bool {
		if ctx.Err() != nil {
			return true
		}
		_, err := c.Ping(ctx, x.Addr)
		return err == nil
	}
}

func (c *Client) storeAt(ctx context.Context, addr string, id kademlia.Identifier, data []byte) error {
	req := c.newRequest(MsgStore)
	req.Target = id.Bytes()
	req.Data = data
	_, err := c.call(ctx, addr, req)
	return err
}

func (c *Client) findNodeAt(ctx context.Context, addr string, target kademlia.Identifier) ([]kademlia.ContactInfo, error) {
	req := c.newRequest(MsgFindNode)
	req.Target = target.Bytes()
	resp, err := c.call(ctx, addr, req)
	if err != nil {
		return nil, err
	}
	return contactsFromWire(resp.Contacts, c.node.Size())
}

func (c *Client) findValueAt(ctx context.Context, addr string, id kademlia.Identifier) (*WhoHasIt, error) {
	req := c.newRequest(MsgFindValue)
	req.Target = id.Bytes()
	resp, err := c.call(ctx, addr, req)
	if err != nil {
		return nil, err
	}
	if resp.Found {
		return &WhoHasIt{Found: true, Data: resp.Data}, nil
	}
	contacts, err := contactsFromWire(resp.Contacts, c.node.Size())
	if err != nil {
		return nil, err
	}
	return &WhoHasIt{Contacts: contacts}, nil
}

func (c *Client) newRequest(t MessageType) *Message {
	return &Message{
		Type:   t,
		Cookie: kademlia.NewMagicCookie(c.node.Size()).Bytes(),
	}
}

// call sends req to addr over the cached connection and waits for the
// response bearing the same cookie. A response that never arrives, for
// whatever reason, surfaces as context.DeadlineExceeded.
func (c *Client) call(ctx context.Context, addr string, req *Message) (*Message, error) {
	ctx, cf := c.clock.WithTimeout(ctx, c.callTimeout)
	defer cf()
	resp, err := c.callOnce(ctx, addr, req)
	c.metrics.sent(req.Type, err)
	if err != nil {
		return nil, err
	}
	if resp.Type != req.Type {
		return nil, errors.Errorf("%s responded to %v with %v", addr, req.Type, resp.Type)
	}
	return resp, nil
}

func (c *Client) callOnce(ctx context.Context, addr string, req *Message) (*Message, error) {
	cn, err := c.getConn(ctx, addr)
	if err != nil {
		return nil, err
	}
	return cn.call(ctx, req)
}

// getConn returns the live cached connection for addr, dialing a fresh one
// if there is none. Dialing happens without the client lock held; if two
// callers race, the loser's connection is closed.
func (c *Client) getConn(ctx context.Context, addr string) (*conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if cn, exists := c.conns[addr]; exists && !cn.isDead() {
		c.mu.Unlock()
		return cn, nil
	}
	c.mu.Unlock()

	cn, err := dialConn(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		cn.close()
		return nil, ErrClosed
	}
	if existing, exists := c.conns[addr]; exists && !existing.isDead() {
		cn.close()
		return existing, nil
	}
	c.conns[addr] = cn
	return cn, nil
}
