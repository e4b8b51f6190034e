// Package discovery finds bootstrap peers before the DHT can.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Bootstrap records follow the usual SRV convention: peers for a deployment
// at <domain> are published under _lrad._tcp.<domain>.
const (
	Service = "lrad"
	Proto   = "tcp"

	// DefaultDomain is where the public bootstrap peers are published.
	DefaultDomain = "spuri.io"
)

// Resolver is the part of net.Resolver used here. Tests substitute a fake.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
}

// A Source produces addresses to bootstrap against.
type Source interface {
	Addrs(ctx context.Context) ([]string, error)
}

// Static returns the given addresses, every time.
func Static(xs ...string) Source {
	return staticSource(xs)
}

type staticSource []string

func (s staticSource) Addrs(ctx context.Context) ([]string, error) {
	return s, nil
}

// SRV resolves the bootstrap record for domain on every call. A nil
// resolver means net.DefaultResolver.
func SRV(r Resolver, domain string) Source {
	if r == nil {
		r = net.DefaultResolver
	}
	return srvSource{r: r, domain: domain}
}

type srvSource struct {
	r      Resolver
	domain string
}

func (s srvSource) Addrs(ctx context.Context) ([]string, error) {
	return LookupPeers(ctx, s.r, s.domain)
}

// LookupPeers resolves the bootstrap record for domain into dialable
// host:port addresses, in the resolver's priority order.
func LookupPeers(ctx context.Context, r Resolver, domain string) ([]string, error) {
	_, srvs, err := r.LookupSRV(ctx, Service, Proto, domain)
	if err != nil {
		return nil, ErrResolve{Domain: domain, Err: err}
	}
	ret := make([]string, 0, len(srvs))
	for _, srv := range srvs {
		host := strings.TrimSuffix(srv.Target, ".")
		ret = append(ret, net.JoinHostPort(host, strconv.Itoa(int(srv.Port))))
	}
	return ret, nil
}

// ErrResolve reports a failed SRV lookup.
type ErrResolve struct {
	Domain string
	Err    error
}

func (e ErrResolve) Error() string {
	return fmt.Sprintf("discovery: resolving _%s._%s.%s: %v", Service, Proto, e.Domain, e.Err)
}

func (e ErrResolve) Unwrap() error {
	return e.Err
}

func IsErrResolve(err error) bool {
	return errors.As(err, &ErrResolve{})
}
