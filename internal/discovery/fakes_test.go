package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darkermage/esplink/internal/device"
)

// fakeProber answers true for hosts in live, counting every probe and the
// highest number of probes in flight at once
type fakeProber struct {
	live  map[string]bool
	delay time.Duration

	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64

	mu     sync.Mutex
	probed []string
}

func newFakeProber(live ...string) *fakeProber {
	p := &fakeProber{live: make(map[string]bool)}
	for _, h := range live {
		p.live[h] = true
	}
	return p
}

func (p *fakeProber) Probe(ctx context.Context, addr device.Address) bool {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if n <= max || p.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}

	p.mu.Lock()
	p.probed = append(p.probed, addr.Host)
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return false
		}
	}
	return p.live[addr.Host]
}

func (p *fakeProber) Calls() int {
	return int(p.calls.Load())
}

// memStore is an in-memory AddressStore
type memStore struct {
	addr  device.Address
	ok    bool
	saves int
}

func (s *memStore) Load() (device.Address, bool) { return s.addr, s.ok }

func (s *memStore) Save(addr device.Address) {
	s.addr, s.ok = addr, true
	s.saves++
}
