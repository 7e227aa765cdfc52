// Package policy implements the session-admission checks an IXFR-out
// responder applies before starting a transfer: an address-based access
// list and a per-source rate limiter.
//
// Grounded on straticus1-dnsscienced's internal/engine/ratelimiter.go
// for the golang.org/x/time/rate token-bucket-per-key shape (there keyed
// by querying IP; here keyed by IP+zone so a client's transfer quota for
// one zone doesn't starve its quota for another), and on the teacher's
// config-driven ACL pattern (tdns/config.go's per-zone allow lists) for
// the CIDR-list ACL shape.
package policy

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tornvall/zxfer/xfrproto"
)

// ACL restricts which source addresses may transfer a given zone.
type ACL struct {
	mu   sync.RWMutex
	nets map[string][]*net.IPNet
}

// NewACL returns an empty ACL. An empty ACL denies every zone until
// entries are added; use AllowAll to open a zone up to every address.
func NewACL() *ACL {
	return &ACL{nets: make(map[string][]*net.IPNet)}
}

// Allow permits addresses within cidr to transfer zone.
func (a *ACL) Allow(zone, cidr string) error {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return xfrproto.InvalidArgf("policy.ACL.Allow", "parsing CIDR %q: %v", cidr, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nets[zone] = append(a.nets[zone], ipnet)
	return nil
}

// AllowAll permits every address to transfer zone.
func (a *ACL) AllowAll(zone string) {
	a.Allow(zone, "0.0.0.0/0")
	a.Allow(zone, "::/0")
}

// Allowed reports whether remote may transfer zone.
func (a *ACL) Allowed(remote net.IP, zone string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ipnet := range a.nets[zone] {
		if ipnet.Contains(remote) {
			return true
		}
	}
	return false
}

// RateLimiterConfig configures a per-key token bucket.
type RateLimiterConfig struct {
	QueriesPerSecond float64
	BurstSize        int
	CleanupInterval  time.Duration
}

// RateLimiter hands out a token-bucket limiter per key (by convention,
// "remoteIP/zone"), lazily created on first use and reaped by Cleanup
// once it has gone quiet for CleanupInterval.
type RateLimiter struct {
	mu       sync.Mutex
	cfg      RateLimiterConfig
	limiters map[string]*entry
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a RateLimiter configured per cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg, limiters: make(map[string]*entry)}
}

// Allow reports whether a request identified by key may proceed now,
// consuming one token from its bucket if so.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(r.cfg.QueriesPerSecond), r.cfg.BurstSize)}
		r.limiters[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Cleanup removes buckets that have not been touched in CleanupInterval.
// Callers are expected to invoke this periodically (a ticker goroutine in
// the server's lifecycle), matching straticus's cleanup loop.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.cfg.CleanupInterval)
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
		}
	}
}

// Authorizer combines an ACL, a RateLimiter, and (optionally) DNS Cookie
// validation into the admission checks an IXFR-out responder runs per
// incoming request. Any field may be left nil to skip that check.
type Authorizer struct {
	ACL     *ACL
	Limiter *RateLimiter
	Cookies *CookieManager
}

// Authorize returns a Denied error if remote is not permitted to
// transfer zone, or if it has exceeded its rate limit.
func (a *Authorizer) Authorize(remote net.IP, zone string) error {
	if a.ACL != nil && !a.ACL.Allowed(remote, zone) {
		return xfrproto.Deniedf("policy.Authorize", "%s is not permitted to transfer zone %q", remote, zone)
	}
	if a.Limiter != nil && !a.Limiter.Allow(remote.String()+"/"+zone) {
		return xfrproto.Deniedf("policy.Authorize", "%s exceeded its transfer rate limit for zone %q", remote, zone)
	}
	return nil
}

// AuthorizeCookie checks a DNS Cookie (RFC 7873/9018) presented by
// remote, if Cookies is configured. A request with no server cookie yet
// (its first contact) is reported via ok=false rather than an error, so
// the caller can issue one and ask the client to retry with BADCOOKIE,
// the same two-step handshake straticus1-dnsscienced's cookie package
// supports for a fresh client.
func (a *Authorizer) AuthorizeCookie(remote net.IP, presented Cookie) (ok bool, fresh [8]byte) {
	if a.Cookies == nil {
		return true, [8]byte{}
	}
	fresh = a.Cookies.Issue(presented.Client, remote)
	if !presented.HasServer {
		return false, fresh
	}
	return a.Cookies.Validate(presented.Client, presented.Server, remote), fresh
}
