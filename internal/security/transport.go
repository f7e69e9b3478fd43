// Package security guards outbound fetches of user-supplied URLs.
//
// Content items carry media links (video_url, thumbnail_url) that publishers
// download before uploading to a platform. Those links come from API callers,
// so the download client refuses to connect to loopback, link-local, private
// or cloud metadata addresses, including when reached through DNS or a
// redirect.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout bounds a single host lookup.
const dnsTimeout = 2 * time.Second

// DefaultMaxRedirects is the redirect limit used by NewMediaClient.
const DefaultMaxRedirects = 3

var (
	// ErrBlockedAddress is returned when a host resolves to a blocked range.
	ErrBlockedAddress = errors.New("security: destination address is not allowed")
	// ErrTooManyRedirects is returned when the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("security: too many redirects")
	// ErrLookupFailed is returned when a host cannot be resolved.
	ErrLookupFailed = errors.New("security: host lookup failed")
)

// blockedCIDRs are never dialled for media downloads.
var blockedCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var blockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("security: bad CIDR %q: %v", c, err))
		}
		out = append(out, n)
	}
	return out
}

// IsBlockedIP reports whether ip falls in a blocked range. Unspecified
// addresses are always blocked.
func IsBlockedIP(ip net.IP) bool {
	if ip == nil || ip.IsUnspecified() {
		return true
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard resolves hosts and rejects blocked destinations.
type Guard struct {
	// Resolver defaults to net.DefaultResolver.
	Resolver Resolver
}

func (g *Guard) resolver() Resolver {
	if g.Resolver != nil {
		return g.Resolver
	}
	return net.DefaultResolver
}

// Resolve returns the addresses for host after checking every one of them.
// A single blocked address rejects the whole host so a mixed DNS answer
// cannot be used to slip through.
func (g *Guard) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
		}
		return []net.IP{ip}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := g.resolver().LookupIPAddr(lookupCtx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrLookupFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %q has no addresses", ErrLookupFailed, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (from %s)", ErrBlockedAddress, a.IP, host)
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// DialContext dials the first checked address for addr. It connects to the
// resolved IP, never the hostname, so a second lookup cannot rebind it.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("security: invalid address %q: %w", addr, err)
	}
	ips, err := g.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// CheckRedirect limits redirects and checks every redirect target.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect has no host", ErrBlockedAddress)
		}
		_, err := g.Resolve(req.Context(), host)
		return err
	}
}

// NewMediaClient returns an http.Client for downloading user-supplied media.
// Every connection and redirect passes through a Guard.
func NewMediaClient(timeout time.Duration) *http.Client {
	return newMediaClient(&Guard{}, timeout, DefaultMaxRedirects)
}

func newMediaClient(g *Guard, timeout time.Duration, maxRedirects int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = g.DialContext

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: g.CheckRedirect(maxRedirects),
	}
}
