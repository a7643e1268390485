package discovery

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkermage/esplink/internal/device"
)

type recordingObserver struct {
	strategies []string
}

func (o *recordingObserver) ObserveDiscovery(strategy string, _ time.Duration) {
	o.strategies = append(o.strategies, strategy)
}

// localEnumerator reports a single interface on cidr's network
func localEnumerator(t *testing.T, local string, fallback ...string) *Enumerator {
	t.Helper()
	prefix := netip.MustParsePrefix(local)
	fb, err := ParseSubnets(fallback, SourceFallback)
	require.NoError(t, err)

	e := NewEnumerator(fb, quietLogger())
	e.listInterfaces = func() ([]InterfaceAddr, error) {
		return []InterfaceAddr{{Name: "wlan0", Addr: prefix.Addr().Next(), Bits: prefix.Bits()}}, nil
	}
	e.findGateway = func() (net.IP, error) { return nil, errors.New("no gateway") }
	return e
}

func newTestEngine(t *testing.T, prober *fakeProber, store *memStore, enum *Enumerator, extra ...Strategy) (*Engine, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	strategies := append([]Strategy{NewCacheStrategy(store, prober)}, extra...)
	return NewEngine(EngineOptions{
		Store:      store,
		Strategies: strategies,
		Enumerator: enum,
		Scanner:    NewScanner(prober, ScanConfig{Workers: 8}, quietLogger()),
		Observer:   obs,
		Logger:     quietLogger(),
	}), obs
}

func TestDiscover_CacheHitCostsOneProbe(t *testing.T) {
	cached := device.NewAddress("192.168.1.50", 80)
	prober := newFakeProber("192.168.1.50")
	store := &memStore{addr: cached, ok: true}
	engine, obs := newTestEngine(t, prober, store, localEnumerator(t, "192.168.1.0/24"))

	outcome := engine.Discover(context.Background())
	require.True(t, outcome.Ok())
	assert.Equal(t, cached, outcome.Address)
	assert.Equal(t, StrategyCache, outcome.Strategy)
	assert.Equal(t, 1, prober.Calls())
	assert.Zero(t, store.saves)
	assert.Equal(t, []string{StrategyCache}, obs.strategies)
}

func TestDiscover_SweepResultIsCachedForNextPass(t *testing.T) {
	prober := newFakeProber("192.168.1.50")
	store := &memStore{}
	engine, _ := newTestEngine(t, prober, store, localEnumerator(t, "192.168.1.0/24"))

	first := engine.Discover(context.Background())
	require.True(t, first.Ok())
	assert.Equal(t, StrategySubnets, first.Strategy)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, first.Address, store.addr)

	before := prober.Calls()
	second := engine.Discover(context.Background())
	require.True(t, second.Ok())
	assert.Equal(t, StrategyCache, second.Strategy)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, before+1, prober.Calls())
}

func TestDiscover_StaleCacheFallsThrough(t *testing.T) {
	prober := newFakeProber("192.168.1.77")
	store := &memStore{addr: device.NewAddress("192.168.1.50", 80), ok: true}
	engine, _ := newTestEngine(t, prober, store, localEnumerator(t, "192.168.1.0/24"))

	outcome := engine.Discover(context.Background())
	require.True(t, outcome.Ok())
	assert.Equal(t, "192.168.1.77", outcome.Address.Host)
	assert.Equal(t, "192.168.1.77", store.addr.Host)
}

func TestDiscover_HostnameBeforeSweep(t *testing.T) {
	prober := newFakeProber("esp32.local")
	store := &memStore{}
	hostname := NewHostnameStrategy(prober, "esp32.local", 80, nil, quietLogger())
	engine, _ := newTestEngine(t, prober, store, localEnumerator(t, "192.168.1.0/24"), hostname)

	outcome := engine.Discover(context.Background())
	require.True(t, outcome.Ok())
	assert.Equal(t, StrategyHostname, outcome.Strategy)
	assert.Equal(t, 1, prober.Calls())
	assert.Equal(t, "esp32.local", store.addr.Host)
}

func TestDiscover_FallbackSkipsCoveredSubnets(t *testing.T) {
	prober := newFakeProber()
	store := &memStore{}
	enum := localEnumerator(t, "10.0.0.0/24", "10.0.0.0/24", "172.20.10.0/28")
	engine, obs := newTestEngine(t, prober, store, enum)

	outcome := engine.Discover(context.Background())
	assert.False(t, outcome.Ok())
	// local /24 once, then only the uncovered /28
	assert.Equal(t, 254+14, prober.Calls())
	assert.Zero(t, store.saves)
	assert.Equal(t, []string{""}, obs.strategies)
}

func TestDiscover_FallbackFindsDevice(t *testing.T) {
	prober := newFakeProber("192.168.4.1")
	store := &memStore{}
	enum := localEnumerator(t, "10.0.0.0/24", "192.168.4.0/24")
	engine, _ := newTestEngine(t, prober, store, enum)

	outcome := engine.Discover(context.Background())
	require.True(t, outcome.Ok())
	assert.Equal(t, StrategyFallback, outcome.Strategy)
	assert.Equal(t, "192.168.4.1", outcome.Address.Host)
}

func TestDiscover_CancelledIsUnresolved(t *testing.T) {
	prober := newFakeProber("192.168.1.50")
	engine, _ := newTestEngine(t, prober, &memStore{}, localEnumerator(t, "192.168.1.0/24"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, engine.Discover(ctx).Ok())
	assert.Zero(t, prober.Calls())
}

func TestPinned(t *testing.T) {
	addr := device.NewAddress("10.1.2.3", 8080)
	outcome := Pinned{Addr: addr}.Discover(context.Background())
	require.True(t, outcome.Ok())
	assert.Equal(t, addr, outcome.Address)
	assert.Equal(t, StrategyPinned, outcome.Strategy)
}
