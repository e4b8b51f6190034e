// Package lradcmd implements the lrad command line tool.
package lradcmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/Tubbz-alt/lrad/src/kadnet"
)

var ctx = func() context.Context {
	ctx := context.Background()
	l, _ := zap.NewProduction()
	ctx = logctx.NewContext(ctx, l)
	return ctx
}()

func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "lrad",
		Short: "lrad: a Kademlia DHT for small deployments",
	}
	c.AddCommand(NewDaemonCmd())
	c.AddCommand(NewCreateConfigCmd())
	c.AddCommand(NewKeygenCmd())
	c.AddCommand(NewAddrCmd())
	c.AddCommand(NewStatusCmd())

	c.AddCommand(NewPingCmd())
	c.AddCommand(NewGetCmd())
	c.AddCommand(NewPutCmd())
	return c
}

// session is an ephemeral client-side node for a single CLI operation: a
// generated identity and a lookup client, torn down when the command ends.
type session struct {
	node   *kademlia.Node
	client *kadnet.Client
}

func newSession(bits int, peers []string) (*session, error) {
	size, err := kademlia.ParseSize(bits)
	if err != nil {
		return nil, err
	}
	ident, err := kademlia.GenerateIdentity(size)
	if err != nil {
		return nil, err
	}
	node, err := kademlia.NewNode(ident, size, "127.0.0.1:0", kademlia.DefaultK, kademlia.DefaultAlpha)
	if err != nil {
		return nil, err
	}
	client := kadnet.NewClient(kadnet.ClientParams{Node: node})
	if len(peers) > 0 {
		added, err := client.Bootstrap(ctx, peers)
		if err != nil {
			client.Close()
			return nil, err
		}
		if added == 0 {
			client.Close()
			return nil, errors.Errorf("no peer answered out of %d", len(peers))
		}
	}
	return &session{node: node, client: client}, nil
}

func (s *session) Close() error {
	return s.client.Close()
}
