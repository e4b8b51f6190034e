package lradcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

func NewGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <id>",
		Short: "retrieves the value stored under an identifier",
		Args:  cobra.ExactArgs(1),
	}
	peers := c.Flags().StringSlice("peer", nil, "--peer host:port of a node to bootstrap from (repeatable)")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		id, err := kademlia.ParseIdentifier([]byte(args[0]))
		if err != nil {
			return err
		}
		sess, err := newSession(id.Size().Bits(), *peers)
		if err != nil {
			return err
		}
		defer sess.Close()
		data, err := sess.client.FindValue(ctx, id)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return c
}

func NewPutCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "put <file>",
		Short: "stores a file's contents on the network and prints its identifier; - reads stdin",
		Args:  cobra.ExactArgs(1),
	}
	peers := c.Flags().StringSlice("peer", nil, "--peer host:port of a node to bootstrap from (repeatable)")
	bits := c.Flags().Int("id-bits", kademlia.DefaultSize.Bits(), "identifier width of the network")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return err
		}
		sess, err := newSession(*bits, *peers)
		if err != nil {
			return err
		}
		defer sess.Close()
		id, err := sess.client.Store(ctx, data)
		if err != nil {
			return err
		}
		text, err := id.MarshalText()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text)
		return nil
	}
	return c
}
