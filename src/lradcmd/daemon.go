package lradcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.brendoncarroll.net/stdctx/logctx"
	"gopkg.in/yaml.v3"

	"github.com/Tubbz-alt/lrad/src/kademlia"
	"github.com/Tubbz-alt/lrad/src/lradd"
)

func NewDaemonCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "daemon",
		Short: "runs the lrad daemon",
	}
	configPath := c.Flags().String("config", "", "--config=./path/to/config.yaml")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		if *configPath == "" {
			return errors.New("must provide config path")
		}
		config, err := lradd.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		logctx.Infof(ctx, "using config from path: %v", *configPath)
		params, err := lradd.MakeParams(*configPath, *config)
		if err != nil {
			return err
		}
		d := lradd.New(*params)
		return d.Run(ctx)
	}
	return c
}

func NewCreateConfigCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "create-config",
		Short: "creates a default config; with --dir, also generates the key",
	}
	dir := c.Flags().String("dir", "", "--dir=./node writes config.yaml and private_key.pem there")
	bits := c.Flags().Int("id-bits", kademlia.DefaultSize.Bits(), "identifier width in bits")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		size, err := kademlia.ParseSize(*bits)
		if err != nil {
			return err
		}
		config := lradd.DefaultConfig()
		config.IDBits = size.Bits()
		if *dir == "" {
			data, err := yaml.Marshal(config)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(data)
			return nil
		}
		if err := os.MkdirAll(*dir, 0o755); err != nil {
			return err
		}
		ident, err := kademlia.GenerateIdentity(size)
		if err != nil {
			return err
		}
		keyData, err := kademlia.MarshalPrivateKeyPEM(ident)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(*dir, "private_key.pem"), keyData, 0o600); err != nil {
			return err
		}
		configPath := filepath.Join(*dir, "config.yaml")
		if err := lradd.SaveConfig(config, configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	}
	return c
}
