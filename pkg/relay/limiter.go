package relay

import (
	"net/netip"
	"sync"

	"golang.org/x/time/rate"
)

// SourceLimiter guards the receive loop against a flooding source
// address, one token bucket per source IP. It is the UDP-ingress
// retargeting of the teacher's per-client-IP HTTP rate limiter: same
// golang.org/x/time/rate bucket-per-key idiom, with a single
// mutex-guarded lookup-or-create per packet, aimed at a packet handler
// instead of an HTTP middleware.
type SourceLimiter struct {
	mu       sync.Mutex
	limiters map[netip.Addr]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewSourceLimiter builds a limiter allowing r packets/sec per source
// address, with burst headroom.
func NewSourceLimiter(r rate.Limit, burst int) *SourceLimiter {
	return &SourceLimiter{
		limiters: make(map[netip.Addr]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// Allow reports whether a packet from addr should be processed now.
func (s *SourceLimiter) Allow(addr netip.Addr) bool {
	return s.limiterFor(addr).Allow()
}

func (s *SourceLimiter) limiterFor(addr netip.Addr) *rate.Limiter {
	s.mu.Lock()
	l, ok := s.limiters[addr]
	if ok {
		s.mu.Unlock()
		return l
	}
	l = rate.NewLimiter(s.r, s.burst)
	s.limiters[addr] = l
	s.mu.Unlock()
	return l
}

// Forget drops a source's bucket, bounding memory for long-running
// nodes that see many transient peers. Callers typically wire this to
// a periodic sweep alongside the DHT's own onionboxen TTL sweep.
func (s *SourceLimiter) Forget(addr netip.Addr) {
	s.mu.Lock()
	delete(s.limiters, addr)
	s.mu.Unlock()
}

// Size reports how many distinct source addresses currently have a
// bucket, for metrics.
func (s *SourceLimiter) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
