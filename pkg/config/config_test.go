package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_address: \"0.0.0.0:1234\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:1234", cfg.ListenAddress)
	require.True(t, cfg.MetricsEnabled)
	require.Equal(t, 600, cfg.OnionboxenTTLSeconds)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParseBootstrapPeersRoundTrip(t *testing.T) {
	hexKey := "ab0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1eff"[:64]
	gifts, err := ParseBootstrapPeers([]string{"128.193.96.51:54321/" + hexKey})
	require.NoError(t, err)
	require.Len(t, gifts, 1)
	require.Equal(t, "128.193.96.51:54321", gifts[0].Addr.String())
}

func TestParseBootstrapPeersRejectsMalformedEntry(t *testing.T) {
	_, err := ParseBootstrapPeers([]string{"not-a-valid-entry"})
	require.Error(t, err)
}
