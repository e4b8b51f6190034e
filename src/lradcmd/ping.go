package lradcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

func NewPingCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "ping <addr>",
		Short: "pings the lrad node at addr",
		Args:  cobra.ExactArgs(1),
	}
	bits := c.Flags().Int("id-bits", kademlia.DefaultSize.Bits(), "identifier width of the network")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		sess, err := newSession(*bits, nil)
		if err != nil {
			return err
		}
		defer sess.Close()
		contact, err := sess.client.Ping(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%v\t%v\n", contact.ID, contact.RTT)
		return nil
	}
	return c
}
