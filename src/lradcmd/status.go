package lradcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Tubbz-alt/lrad/src/lradd"
)

func NewStatusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "prints the status of a running daemon",
	}
	apiAddr := c.Flags().String("api", lradd.DefaultAPIEndpoint, "--api host:port of the daemon's admin API")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.ParseFlags(args); err != nil {
			return err
		}
		res, err := getStatus(ctx, *apiAddr)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "LOCAL ID: %s\n", res.LocalID)
		fmt.Fprintf(w, "LISTEN: %s\n", res.ListenAddr)
		fmt.Fprintf(w, "ADVERTISE: %s\n", res.AdvertiseAddr)
		fmt.Fprintf(w, "WIDTH: %d bits\tK: %d\tALPHA: %d\n", res.IDBits, res.K, res.Alpha)
		fmt.Fprintf(w, "VALUES: %d\n", res.ValueCount)
		fmt.Fprintf(w, "PEERS:\n")
		for _, p := range res.Peers {
			fmt.Fprintf(w, "\t%s\t%s\trtt=%v\tlast_seen=%s\n", p.ID, p.Addr, p.RTT, p.LastSeen)
		}
		return nil
	}
	return c
}

func getStatus(ctx context.Context, apiAddr string) (*lradd.StatusRes, error) {
	u := url.URL{Scheme: "http", Host: apiAddr, Path: "/v1/status"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("status endpoint returned %s", resp.Status)
	}
	res := &lradd.StatusRes{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return nil, err
	}
	return res, nil
}
