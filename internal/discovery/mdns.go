package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

// unicastResponse is the QU bit of the question class (RFC 6762 5.4)
const unicastResponse = 1 << 15

// MDNSResolver resolves .local names with a one-shot multicast query.
// It is used when the OS resolver has no mDNS support (stock Windows, Android).
type MDNSResolver struct {
	timeout time.Duration
}

// NewMDNSResolver creates a resolver that waits at most timeout for an answer
func NewMDNSResolver(timeout time.Duration) *MDNSResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MDNSResolver{timeout: timeout}
}

// LookupIPv4 sends a single A query for name and waits for a matching answer
func (r *MDNSResolver) LookupIPv4(ctx context.Context, name string) (netip.Addr, error) {
	fqdn := dns.Fqdn(name)

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, dns.TypeA)
	msg.RecursionDesired = false
	msg.Question[0].Qclass |= unicastResponse

	query, err := msg.Pack()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("pack mdns query: %w", err)
	}

	// An ephemeral source port makes responders answer by unicast (legacy query)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("open mdns socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return netip.Addr{}, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.WriteToUDP(query, mdnsGroup); err != nil {
		return netip.Addr{}, fmt.Errorf("send mdns query: %w", err)
	}

	buf := make([]byte, 9000)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return netip.Addr{}, fmt.Errorf("lookup %s: %w", name, ErrNoAnswer)
			}
			return netip.Addr{}, fmt.Errorf("read mdns answer: %w", err)
		}
		if addr, ok := answerFor(buf[:n], fqdn); ok {
			return addr, nil
		}
	}
}

// answerFor extracts the IPv4 address for fqdn from an mDNS response packet
func answerFor(packet []byte, fqdn string) (netip.Addr, bool) {
	var m dns.Msg
	if err := m.Unpack(packet); err != nil || !m.Response {
		return netip.Addr{}, false
	}

	records := make([]dns.RR, 0, len(m.Answer)+len(m.Extra))
	records = append(records, m.Answer...)
	records = append(records, m.Extra...)
	for _, rr := range records {
		a, ok := rr.(*dns.A)
		if !ok || !strings.EqualFold(a.Hdr.Name, fqdn) {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}
