package lradcmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Tubbz-alt/lrad/src/kademlia"
)

func NewKeygenCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "keygen",
		Short: "generates a private key and writes it to stdout",
	}
	bits := c.Flags().Int("id-bits", kademlia.DefaultSize.Bits(), "identifier width the key will serve")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		size, err := kademlia.ParseSize(*bits)
		if err != nil {
			return err
		}
		ident, err := kademlia.GenerateIdentity(size)
		if err != nil {
			return err
		}
		data, err := kademlia.MarshalPrivateKeyPEM(ident)
		if err != nil {
			return err
		}
		cmd.OutOrStdout().Write(data)
		return nil
	}
	return c
}

func NewAddrCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "addr",
		Short: "derives an identifier from a private key",
	}
	privateKeyPath := c.Flags().String("private-key", "", "--private-key path/to/private_key.pem")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		if *privateKeyPath == "" {
			return errors.Errorf("must provide path to private key")
		}
		data, err := os.ReadFile(*privateKeyPath)
		if err != nil {
			return err
		}
		ident, err := kademlia.ParsePrivateKeyPEM(data)
		if err != nil {
			return err
		}
		size, err := kademlia.SizeForCurve(ident.PrivateKey().Curve)
		if err != nil {
			return err
		}
		out, err := ident.ID(size).MarshalText()
		if err != nil {
			return err
		}
		out = append(out, '\n')
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	return c
}
