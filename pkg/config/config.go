// Package config loads a node's YAML configuration file, matching the
// teacher's common.Config / loadConfig shape.
package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pmailnet/relaynode/pkg/wire"
)

// Config is a relaynode node's on-disk configuration.
type Config struct {
	// ListenAddress is the UDP address this node receives onion
	// packets on, e.g. "0.0.0.0:54321".
	ListenAddress string `yaml:"listen_address"`

	// KeyFile overrides the default hostname-derived key file path.
	// Empty means use keystore.DefaultFileName() under the user's home
	// directory, or in the working directory when no home directory is
	// known.
	KeyFile string `yaml:"key_file"`

	// BootstrapPeers adds peers to the hard-coded bingley bootstrap
	// peer, which is always seeded. Each entry is
	// "host:port/hex-public-key". Empty means bingley alone.
	BootstrapPeers []string `yaml:"bootstrap_peers"`

	// MetricsEnabled toggles whether pkg/adminapi serves /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// AdminAPI configures the optional operational HTTP surface.
	AdminAPI AdminAPIConfig `yaml:"admin_api"`

	// OnionboxenTTLSeconds bounds how long an unanswered outstanding
	// onion box is kept before the sweep evicts it.
	OnionboxenTTLSeconds int `yaml:"onionboxen_ttl_seconds"`

	// LogLevel is reserved for a future structured-logging pass; the
	// ambient log package in this version only distinguishes info
	// lines from fatal startup errors.
	LogLevel string `yaml:"log_level"`
}

// AdminAPIConfig configures pkg/adminapi's optional mTLS surface.
type AdminAPIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Default returns sensible defaults for running a single local node.
func Default() Config {
	return Config{
		ListenAddress:         "0.0.0.0:54321",
		MetricsEnabled:        true,
		OnionboxenTTLSeconds:  600,
		AdminAPI: AdminAPIConfig{
			Enabled: true,
			Address: "127.0.0.1:8443",
		},
	}
}

// Load reads and parses a YAML config file, filling any field the file
// omits with Default()'s value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ParseBootstrapPeers decodes the "host:port/hex-public-key" entries
// from Config.BootstrapPeers into gifts ready for dht.NewWithBootstrap.
func ParseBootstrapPeers(entries []string) ([]wire.RoutingGift, error) {
	out := make([]wire.RoutingGift, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("config: bootstrap peer %q must be host:port/hex-public-key", e)
		}
		addr, err := netip.ParseAddrPort(parts[0])
		if err != nil {
			return nil, fmt.Errorf("config: bootstrap peer %q: %w", e, err)
		}
		keyBytes, err := hex.DecodeString(parts[1])
		if err != nil || len(keyBytes) != wire.PublicKeySize {
			return nil, fmt.Errorf("config: bootstrap peer %q: public key must be %d hex bytes", e, wire.PublicKeySize)
		}
		var key wire.PublicKey
		copy(key[:], keyBytes)
		out = append(out, wire.RoutingGift{Addr: addr, Key: key})
	}
	return out, nil
}
