package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementIndependently(t *testing.T) {
	m := New()
	m.PacketForwarded()
	m.PacketForwarded()
	m.PacketDelivered()
	m.PacketDropped("rate_limited")
	m.PacketDropped("rate_limited")
	m.PacketDropped("malformed")
	m.ResponseMatched()

	require.Equal(t, float64(2), testutil.ToFloat64(m.packetsForwarded))
	require.Equal(t, float64(1), testutil.ToFloat64(m.packetsDelivered))
	require.Equal(t, float64(1), testutil.ToFloat64(m.responsesMatched))
	require.Equal(t, float64(2), testutil.ToFloat64(m.packetsDropped.WithLabelValues("rate_limited")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.packetsDropped.WithLabelValues("malformed")))
}

func TestGaugesReflectLatestSet(t *testing.T) {
	m := New()
	m.SetDHTSize(7)
	m.SetOutstandingSize(3)
	m.SetRateLimitBuckets(12)

	require.Equal(t, float64(7), testutil.ToFloat64(m.dhtSize))
	require.Equal(t, float64(3), testutil.ToFloat64(m.outstandingSize))
	require.Equal(t, float64(12), testutil.ToFloat64(m.rateLimitBuckets))

	m.SetDHTSize(4)
	require.Equal(t, float64(4), testutil.ToFloat64(m.dhtSize))
}

func TestRegistryGathersAllInstruments(t *testing.T) {
	m := New()
	m.PacketForwarded()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
