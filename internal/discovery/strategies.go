package discovery

import (
	"context"
	"log/slog"
	"net/netip"
	"strings"

	"github.com/darkermage/esplink/internal/device"
)

// Strategy names
const (
	StrategyCache    = "cache"
	StrategyHostname = "hostname"
	StrategyRouter   = "router"
	StrategySubnets  = "subnets"
	StrategyFallback = "fallback"
	StrategyPinned   = "pinned"
)

// Resolver looks up a name over multicast DNS
type Resolver interface {
	LookupIPv4(ctx context.Context, name string) (netip.Addr, error)
}

// CacheStrategy re-verifies the last known good address
type CacheStrategy struct {
	store  AddressStore
	prober Prober
}

// NewCacheStrategy creates a cache strategy
func NewCacheStrategy(store AddressStore, prober Prober) *CacheStrategy {
	return &CacheStrategy{store: store, prober: prober}
}

func (s *CacheStrategy) Name() string { return StrategyCache }

// Locate probes the cached address, if any
func (s *CacheStrategy) Locate(ctx context.Context) (device.Address, bool) {
	addr, ok := s.store.Load()
	if !ok {
		return device.Address{}, false
	}
	if !s.prober.Probe(ctx, addr) {
		return device.Address{}, false
	}
	return addr, true
}

// HostnameStrategy tries the device's well-known service name
type HostnameStrategy struct {
	prober   Prober
	host     string
	port     int
	resolver Resolver
	log      *slog.Logger
}

// NewHostnameStrategy creates a hostname strategy. resolver may be nil.
func NewHostnameStrategy(prober Prober, host string, port int, resolver Resolver, logger *slog.Logger) *HostnameStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &HostnameStrategy{prober: prober, host: host, port: port, resolver: resolver, log: logger}
}

func (s *HostnameStrategy) Name() string { return StrategyHostname }

// Locate probes the name as-is, then via mDNS for .local names
func (s *HostnameStrategy) Locate(ctx context.Context) (device.Address, bool) {
	if s.host == "" {
		return device.Address{}, false
	}

	addr := device.NewAddress(s.host, s.port)
	if s.prober.Probe(ctx, addr) {
		return addr, true
	}

	if s.resolver == nil || !strings.HasSuffix(strings.TrimSuffix(strings.ToLower(s.host), "."), ".local") {
		return device.Address{}, false
	}
	ip, err := s.resolver.LookupIPv4(ctx, s.host)
	if err != nil {
		s.log.Debug("mdns lookup failed", "host", s.host, "err", err)
		return device.Address{}, false
	}

	addr = device.NewAddress(ip.String(), s.port)
	if !s.prober.Probe(ctx, addr) {
		return device.Address{}, false
	}
	return addr, true
}

// RouterStrategy asks a network controller for clients matching a hostname pattern
type RouterStrategy struct {
	lister  ClientLister
	pattern string
	prober  Prober
	port    int
	log     *slog.Logger
}

// NewRouterStrategy creates a router strategy
func NewRouterStrategy(lister ClientLister, pattern string, prober Prober, port int, logger *slog.Logger) *RouterStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouterStrategy{lister: lister, pattern: pattern, prober: prober, port: port, log: logger}
}

func (s *RouterStrategy) Name() string { return StrategyRouter }

// Locate probes every matching client in the order the controller lists them
func (s *RouterStrategy) Locate(ctx context.Context) (device.Address, bool) {
	clients, err := s.lister.ListClients(ctx, s.pattern)
	if err != nil {
		s.log.Warn("router client list unavailable", "err", err)
		return device.Address{}, false
	}

	for _, c := range clients {
		if c.IPAddress == "" {
			continue
		}
		addr := device.NewAddress(c.IPAddress, s.port)
		if s.prober.Probe(ctx, addr) {
			return addr, true
		}
		if ctx.Err() != nil {
			break
		}
	}
	return device.Address{}, false
}

// Pinned always resolves to a fixed address, bypassing discovery
type Pinned struct {
	Addr device.Address
}

// Discover returns the pinned address
func (p Pinned) Discover(context.Context) Outcome {
	return Resolved(p.Addr, StrategyPinned)
}
