// Package lradd assembles a whole DHT node out of its parts and runs it:
// RPC server, lookup client, admin HTTP API, and the initial bootstrap.
package lradd

import (
	"context"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"go.brendoncarroll.net/stdctx/logctx"
	"golang.org/x/sync/errgroup"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/Tubbz-alt/lrad/src/kadnet"
)

type Daemon struct {
	params Params

	setupDone chan struct{}
	node      *kademlia.Node
	client    *kadnet.Client
}

func New(p Params) *Daemon {
	return &Daemon{
		params:    p,
		setupDone: make(chan struct{}),
	}
}

// Run brings the node up and serves until ctx is cancelled: the RPC
// listener, the admin HTTP API, and a one-shot bootstrap pass. Bootstrap
// failures are logged, never fatal; an empty table just means the node
// waits for inbound peers.
func (d *Daemon) Run(ctx context.Context) error {
	node, err := kademlia.NewNode(d.params.Identity, d.params.Size, d.params.AdvertiseAddr, d.params.K, d.params.Alpha)
	if err != nil {
		return err
	}
	registry := prometheus.NewRegistry()
	metrics := kadnet.NewMetrics(registry)
	client := kadnet.NewClient(kadnet.ClientParams{
		Node:        node,
		CallTimeout: d.params.CallTimeout,
		Metrics:     metrics,
	})
	defer client.Close()
	server := kadnet.NewServer(node, metrics)

	l, err := net.Listen("tcp", d.params.Listen)
	if err != nil {
		return err
	}
	defer l.Close()
	logctx.Infof(ctx, "local id %v", node.LocalID())
	logctx.Infof(ctx, "RPC listening on %v", l.Addr())

	d.node = node
	d.client = client
	close(d.setupDone)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.Serve(ctx, l)
	})
	eg.Go(func() error {
		return d.runAPIServer(ctx, d.params.APIEndpoint, registry)
	})
	eg.Go(func() error {
		d.bootstrap(ctx)
		return nil
	})
	return eg.Wait()
}

// DoWithNode runs cb once the daemon is serving. It gives tests and
// embedders a handle on the running node without racing Run's setup.
func (d *Daemon) DoWithNode(ctx context.Context, cb func(node *kademlia.Node, client *kadnet.Client) error) error {
	select {
	case <-d.setupDone:
		return cb(d.node, d.client)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Daemon) bootstrap(ctx context.Context) {
	var addrs []string
	for _, src := range d.params.Bootstrap {
		xs, err := src.Addrs(ctx)
		if err != nil {
			logctx.Errorln(ctx, "bootstrap source failed", err)
			continue
		}
		addrs = append(addrs, xs...)
	}
	if len(addrs) == 0 {
		logctx.Warnf(ctx, "no bootstrap addresses; waiting for inbound peers")
		return
	}
	added, err := d.client.Bootstrap(ctx, addrs)
	if err != nil {
		logctx.Errorln(ctx, "bootstrap aborted", err)
		return
	}
	logctx.Infof(ctx, "bootstrap complete: %d peers added from %d addresses", added, len(addrs))
}
