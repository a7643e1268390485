package discovery

import (
	"net/netip"
	"time"

	"github.com/darkermage/esplink/internal/device"
)

// MaxHosts caps how many candidates a single subnet sweep will probe
const MaxHosts = 254

// Subnet sources
const (
	SourceInterface = "interface"
	SourceGateway   = "gateway"
	SourceFallback  = "fallback"
)

// Subnet is a block of candidate addresses to sweep
type Subnet struct {
	Prefix netip.Prefix `json:"prefix"`
	Source string       `json:"source,omitempty"`
}

// NewSubnet builds a subnet from a CIDR string
func NewSubnet(cidr, source string) (Subnet, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return Subnet{}, err
	}
	return Subnet{Prefix: p.Masked(), Source: source}, nil
}

// Key identifies the block independently of where it came from
func (s Subnet) Key() string {
	return s.Prefix.Masked().String()
}

func (s Subnet) String() string {
	if s.Source == "" {
		return s.Key()
	}
	return s.Key() + " (" + s.Source + ")"
}

// Hosts lists host addresses in the subnet, skipping the network and
// broadcast addresses. At most min(limit, MaxHosts) are returned.
func (s Subnet) Hosts(limit int) []netip.Addr {
	if limit <= 0 || limit > MaxHosts {
		limit = MaxHosts
	}
	p := s.Prefix.Masked()
	if !p.IsValid() || !p.Addr().Is4() {
		return nil
	}

	// /31 and /32 have no network or broadcast address
	if p.Bits() >= 31 {
		var hosts []netip.Addr
		for a := p.Addr(); p.Contains(a) && len(hosts) < limit; a = a.Next() {
			hosts = append(hosts, a)
		}
		return hosts
	}

	hosts := make([]netip.Addr, 0, limit)
	for a := p.Addr().Next(); len(hosts) < limit; a = a.Next() {
		next := a.Next()
		if !p.Contains(next) {
			// a is the broadcast address
			break
		}
		hosts = append(hosts, a)
	}
	return hosts
}

// Candidate is a host reported by a network controller
type Candidate struct {
	MACAddress string    `json:"mac_address"`
	IPAddress  string    `json:"ip_address"`
	Hostname   string    `json:"hostname,omitempty"`
	LastSeen   time.Time `json:"last_seen,omitempty"`
}

// Outcome is the result of a discovery pass
type Outcome struct {
	Address  device.Address
	Strategy string
	resolved bool
}

// Resolved creates an outcome for a verified address
func Resolved(addr device.Address, strategy string) Outcome {
	return Outcome{Address: addr, Strategy: strategy, resolved: true}
}

// Unresolved creates an empty outcome
func Unresolved() Outcome {
	return Outcome{}
}

// Ok reports whether the device was found
func (o Outcome) Ok() bool {
	return o.resolved
}
