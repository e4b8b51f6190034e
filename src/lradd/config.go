package lradd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Tubbz-alt/lrad/src/discovery"
	"github.com/Tubbz-alt/lrad/src/kademlia"
)

const (
	// DefaultListen is the port peers dial for RPCs.
	DefaultListen = "0.0.0.0:16840"
	// DefaultAPIEndpoint serves the admin HTTP API, loopback only.
	DefaultAPIEndpoint = "127.0.0.1:26840"
)

type BootstrapSpec struct {
	// Peers are dialable host:port addresses.
	Peers []string `yaml:"peers,omitempty"`
	// SRV is a domain whose _lrad._tcp record lists more peers.
	SRV string `yaml:"srv,omitempty"`
}

type Config struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	Listen         string `yaml:"listen"`
	// AdvertiseAddr is what peers are told to dial back. It must be
	// reachable from outside; defaults to Listen.
	AdvertiseAddr string        `yaml:"advertise_addr,omitempty"`
	APIEndpoint   string        `yaml:"api_endpoint"`
	IDBits        int           `yaml:"id_bits"`
	K             int           `yaml:"k,omitempty"`
	Alpha         int           `yaml:"alpha,omitempty"`
	// CallTimeout bounds each RPC, in nanoseconds. Zero means the
	// client's default.
	CallTimeout   time.Duration `yaml:"call_timeout,omitempty"`
	Bootstrap     BootstrapSpec `yaml:"bootstrap"`
}

func (c Config) GetAPIAddr() string {
	if c.APIEndpoint == "" {
		return DefaultAPIEndpoint
	}
	return c.APIEndpoint
}

func DefaultConfig() Config {
	return Config{
		PrivateKeyPath: "./private_key.pem",
		Listen:         DefaultListen,
		APIEndpoint:    DefaultAPIEndpoint,
		IDBits:         kademlia.DefaultSize.Bits(),
		K:              kademlia.DefaultK,
		Alpha:          kademlia.DefaultAlpha,
		Bootstrap: BootstrapSpec{
			SRV: discovery.DefaultDomain,
		},
	}
}

func LoadConfig(p string) (*Config, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

func SaveConfig(config Config, p string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

type Params struct {
	Identity      kademlia.NodeIdentity
	Size          kademlia.IdentifierSize
	K             int
	Alpha         int
	Listen        string
	AdvertiseAddr string
	APIEndpoint   string
	CallTimeout   time.Duration
	Bootstrap     []discovery.Source
}

// MakeParams resolves a Config into runnable daemon parameters: the key is
// read and parsed, zero values fall back to defaults, and the key's curve is
// checked against the configured identifier width.
func MakeParams(configPath string, c Config) (*Params, error) {
	// private key
	keyPath := c.PrivateKeyPath
	if strings.HasPrefix(c.PrivateKeyPath, "./") {
		keyPath = filepath.Join(filepath.Dir(configPath), c.PrivateKeyPath)
	}
	keyPEMData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	identity, err := kademlia.ParsePrivateKeyPEM(keyPEMData)
	if err != nil {
		return nil, err
	}
	// identifier width
	bits := c.IDBits
	if bits == 0 {
		bits = kademlia.DefaultSize.Bits()
	}
	size, err := kademlia.ParseSize(bits)
	if err != nil {
		return nil, err
	}
	keySize, err := kademlia.SizeForCurve(identity.PrivateKey().Curve)
	if err != nil {
		return nil, err
	}
	if keySize != size {
		return nil, errors.Errorf("key at %s is on curve %s (%d bit identifiers), config says %d",
			keyPath, identity.PrivateKey().Curve.Params().Name, keySize.Bits(), size.Bits())
	}
	// addresses
	listen := c.Listen
	if listen == "" {
		listen = DefaultListen
	}
	advertise := c.AdvertiseAddr
	if advertise == "" {
		advertise = listen
	}
	// lookup parameters
	k := c.K
	if k == 0 {
		k = kademlia.DefaultK
	}
	alpha := c.Alpha
	if alpha == 0 {
		alpha = kademlia.DefaultAlpha
	}
	// bootstrap sources
	var srcs []discovery.Source
	if len(c.Bootstrap.Peers) > 0 {
		srcs = append(srcs, discovery.Static(c.Bootstrap.Peers...))
	}
	if c.Bootstrap.SRV != "" {
		srcs = append(srcs, discovery.SRV(nil, c.Bootstrap.SRV))
	}
	return &Params{
		Identity:      identity,
		Size:          size,
		K:             k,
		Alpha:         alpha,
		Listen:        listen,
		AdvertiseAddr: advertise,
		APIEndpoint:   c.GetAPIAddr(),
		CallTimeout:   c.CallTimeout,
		Bootstrap:     srcs,
	}, nil
}
