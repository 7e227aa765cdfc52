package policy

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/dchest/siphash"
	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/xfrproto"
)

// Cookie is a parsed RFC 7873 DNS Cookie EDNS0 option.
type Cookie struct {
	Client    [8]byte
	Server    [8]byte
	HasServer bool
}

// ExtractCookie reads the EDNS0 Cookie option from req, if present.
func ExtractCookie(req *dns.Msg) (Cookie, bool) {
	opt := req.IsEdns0()
	if opt == nil {
		return Cookie{}, false
	}
	for _, o := range opt.Option {
		c, ok := o.(*dns.EDNS0_COOKIE)
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(c.Cookie)
		if err != nil || len(raw) < 8 {
			return Cookie{}, false
		}
		var cookie Cookie
		copy(cookie.Client[:], raw[:8])
		if len(raw) >= 16 {
			copy(cookie.Server[:], raw[8:16])
			cookie.HasServer = true
		}
		return cookie, true
	}
	return Cookie{}, false
}

// AttachServerCookie appends an EDNS0 Cookie option carrying clientCookie
// and server to resp, adding an OPT record if resp doesn't already have
// one.
func AttachServerCookie(resp *dns.Msg, clientCookie, server [8]byte) {
	opt := resp.IsEdns0()
	if opt == nil {
		opt = new(dns.OPT)
		opt.Hdr.Name = "."
		opt.Hdr.Rrtype = dns.TypeOPT
		resp.Extra = append(resp.Extra, opt)
	}
	opt.Option = append(opt.Option, &dns.EDNS0_COOKIE{
		Code:   dns.EDNS0COOKIE,
		Cookie: hex.EncodeToString(clientCookie[:]) + hex.EncodeToString(server[:]),
	})
}

// CookieTTL is how long a server cookie remains valid after issue,
// mirroring BIND 9's default DNS Cookie lifetime (RFC 7873/9018).
const CookieTTL = 1 * time.Hour

// CookieManager issues and validates server cookies for the RFC
// 7873/9018 DNS Cookie option, an additional off-path-attack mitigation
// an IXFR-out responder can require before a transfer starts. Grounded
// on straticus1-dnsscienced's internal/cookie/cookie.go: SipHash-2-4
// over client-cookie || client-IP || timestamp, keyed by a secret
// rotated periodically, validated against both the current and previous
// secret so a rotation never invalidates a cookie issued moments before
// it.
type CookieManager struct {
	mu             sync.RWMutex
	currentSecret  [16]byte
	previousSecret [16]byte
}

// NewCookieManager returns a CookieManager with a freshly generated
// random secret.
func NewCookieManager() (*CookieManager, error) {
	m := &CookieManager{}
	if _, err := rand.Read(m.currentSecret[:]); err != nil {
		return nil, xfrproto.IOErrorf("policy.NewCookieManager", err, "generating secret")
	}
	m.previousSecret = m.currentSecret
	return m, nil
}

// RotateSecret replaces the current secret with a fresh random one,
// keeping the old one as the previous secret so cookies issued just
// before rotation still validate. Intended to be called periodically
// (e.g. from a ticker goroutine in the server's lifecycle).
func (m *CookieManager) RotateSecret() error {
	var next [16]byte
	if _, err := rand.Read(next[:]); err != nil {
		return xfrproto.IOErrorf("policy.CookieManager.RotateSecret", err, "generating secret")
	}
	m.mu.Lock()
	m.previousSecret = m.currentSecret
	m.currentSecret = next
	m.mu.Unlock()
	return nil
}

// Issue computes the server cookie for clientCookie and remote,
// timestamped now.
func (m *CookieManager) Issue(clientCookie [8]byte, remote net.IP) [8]byte {
	m.mu.RLock()
	secret := m.currentSecret
	m.mu.RUnlock()
	return serverCookie(secret, clientCookie, remote, time.Now())
}

// Validate reports whether serverCookie is a cookie this manager (under
// its current or previous secret) could have issued for clientCookie and
// remote within the last CookieTTL.
func (m *CookieManager) Validate(clientCookie, serverCookieVal [8]byte, remote net.IP) bool {
	m.mu.RLock()
	current, previous := m.currentSecret, m.previousSecret
	m.mu.RUnlock()

	now := time.Now()
	for _, secret := range [2][16]byte{current, previous} {
		for skew := time.Duration(0); skew <= CookieTTL; skew += 10 * time.Minute {
			expected := serverCookie(secret, clientCookie, remote, now.Add(-skew))
			if subtle.ConstantTimeCompare(serverCookieVal[:], expected[:]) == 1 {
				return true
			}
		}
	}
	return false
}

func serverCookie(secret [16]byte, clientCookie [8]byte, remote net.IP, at time.Time) [8]byte {
	k0 := binary.LittleEndian.Uint64(secret[0:8])
	k1 := binary.LittleEndian.Uint64(secret[8:16])

	buf := make([]byte, 0, 8+net.IPv6len+4)
	buf = append(buf, clientCookie[:]...)
	buf = append(buf, remote.To16()...)
	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], uint32(at.Unix()/600))
	buf = append(buf, tsBuf[:]...)

	sum := siphash.Hash(k0, k1, buf)
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], sum)
	return out
}
