package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/jackpal/gateway"
	"github.com/wlynxg/anet"
	"go.uber.org/multierr"
)

// DefaultFallbackSubnets are common tethering and home-router ranges
var DefaultFallbackSubnets = []string{
	"192.168.4.0/24",   // ESP32 soft-AP
	"192.168.43.0/24",  // Android hotspot
	"172.20.10.0/28",   // iPhone hotspot
	"192.168.137.0/24", // Windows mobile hotspot
	"192.168.0.0/24",
	"192.168.1.0/24",
	"10.0.0.0/24",
}

// InterfaceAddr is an IPv4 address bound to a local interface
type InterfaceAddr struct {
	Name string
	Addr netip.Addr
	Bits int
}

// Enumerator derives candidate subnets from the host's interfaces
type Enumerator struct {
	listInterfaces func() ([]InterfaceAddr, error)
	findGateway    func() (net.IP, error)
	fallback       []Subnet
	log            *slog.Logger
}

// NewEnumerator creates an enumerator with the given static fallback list
func NewEnumerator(fallback []Subnet, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(fallback) == 0 {
		fallback, _ = ParseSubnets(DefaultFallbackSubnets, SourceFallback)
	}
	return &Enumerator{
		listInterfaces: systemInterfaces,
		findGateway:    gateway.DiscoverGateway,
		fallback:       fallback,
		log:            logger,
	}
}

// ParseSubnets parses CIDR strings, reporting every invalid entry
func ParseSubnets(cidrs []string, source string) ([]Subnet, error) {
	var (
		subnets []Subnet
		errs    error
	)
	for _, cidr := range cidrs {
		s, err := NewSubnet(cidr, source)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subnet %q: %w", cidr, err))
			continue
		}
		if !s.Prefix.Addr().Is4() {
			errs = multierr.Append(errs, fmt.Errorf("subnet %q: only IPv4 is supported", cidr))
			continue
		}
		subnets = append(subnets, s)
	}
	return subnets, errs
}

// Fallback returns the static subnet table
func (e *Enumerator) Fallback() []Subnet {
	out := make([]Subnet, len(e.fallback))
	copy(out, e.fallback)
	return out
}

// LocalSubnets returns the subnets of the host's own interfaces.
// It never fails: when enumeration is unavailable it falls back to the
// default gateway's /24, then to the static table.
func (e *Enumerator) LocalSubnets() []Subnet {
	subnets, err := e.interfaceSubnets()
	if err == nil && len(subnets) > 0 {
		return subnets
	}
	if err != nil {
		e.log.Warn("interface enumeration unavailable", "err", err)
	}

	gw, err := e.gatewaySubnet()
	if err == nil {
		e.log.Info("using default gateway subnet", "subnet", gw.Key())
		return []Subnet{gw}
	}
	e.log.Debug("default gateway lookup failed", "err", err)

	e.log.Info("using fallback subnets", "count", len(e.fallback))
	return e.Fallback()
}

func (e *Enumerator) interfaceSubnets() ([]Subnet, error) {
	addrs, err := e.listInterfaces()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var subnets []Subnet
	for _, a := range addrs {
		if !a.Addr.Is4() || a.Addr.IsLoopback() || a.Addr.IsLinkLocalUnicast() {
			continue
		}
		// Point-to-point links have no neighbours to sweep
		if a.Bits > 30 || a.Bits <= 0 {
			continue
		}
		bits := a.Bits
		if bits < 24 {
			bits = 24
		}
		s := Subnet{
			Prefix: netip.PrefixFrom(a.Addr, bits).Masked(),
			Source: SourceInterface + ":" + a.Name,
		}
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		subnets = append(subnets, s)
	}

	if len(subnets) == 0 {
		return nil, ErrNoInterfaces
	}
	return subnets, nil
}

func (e *Enumerator) gatewaySubnet() (Subnet, error) {
	ip, err := e.findGateway()
	if err != nil {
		return Subnet{}, err
	}
	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok {
		return Subnet{}, fmt.Errorf("gateway %s is not IPv4", ip)
	}
	return Subnet{Prefix: netip.PrefixFrom(addr, 24).Masked(), Source: SourceGateway}, nil
}

// systemInterfaces walks the host interfaces. anet works where
// net.Interfaces is denied (Android API 30+).
func systemInterfaces() ([]InterfaceAddr, error) {
	ifaces, err := anet.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var out []InterfaceAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := anet.InterfaceAddrsByInterface(&iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			ones, bits := ipnet.Mask.Size()
			if bits == 128 {
				ones -= 96
			}
			a, _ := netip.AddrFromSlice(ip4)
			out = append(out, InterfaceAddr{Name: iface.Name, Addr: a, Bits: ones})
		}
	}
	return out, nil
}
