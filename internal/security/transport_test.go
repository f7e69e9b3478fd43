package security

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockResolver implements Resolver for deterministic testing.
type mockResolver struct {
	ips map[string][]string
	err error
}

func (m *mockResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []net.IPAddr
	for _, s := range m.ips[host] {
		out = append(out, net.IPAddr{IP: net.ParseIP(s)})
	}
	return out, nil
}

func TestIsBlockedIP(t *testing.T) {
	tests := []struct {
		ip      string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.20.0.1", true},
		{"192.168.1.10", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fe80::1", true},
		{"fd00::1", true},
		{"93.184.216.34", false},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedIP(net.ParseIP(tt.ip)))
		})
	}
	assert.True(t, IsBlockedIP(nil))
}

func TestGuard_Resolve(t *testing.T) {
	g := &Guard{Resolver: &mockResolver{ips: map[string][]string{
		"cdn.example.com":    {"93.184.216.34"},
		"internal.example":   {"10.0.0.5"},
		"mixed.example.com":  {"93.184.216.34", "127.0.0.1"},
		"metadata.attack.io": {"169.254.169.254"},
	}}}
	ctx := context.Background()

	ips, err := g.Resolve(ctx, "cdn.example.com")
	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "93.184.216.34", ips[0].String())

	for _, host := range []string{"internal.example", "mixed.example.com", "metadata.attack.io", "127.0.0.1"} {
		_, err := g.Resolve(ctx, host)
		assert.ErrorIs(t, err, ErrBlockedAddress, host)
	}

	_, err = g.Resolve(ctx, "nowhere.example.com")
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestGuard_Resolve_LookupError(t *testing.T) {
	g := &Guard{Resolver: &mockResolver{err: errors.New("servfail")}}
	_, err := g.Resolve(context.Background(), "cdn.example.com")
	assert.ErrorIs(t, err, ErrLookupFailed)
}

func TestGuard_CheckRedirect(t *testing.T) {
	g := &Guard{Resolver: &mockResolver{ips: map[string][]string{
		"cdn.example.com": {"93.184.216.34"},
		"evil.example":    {"127.0.0.1"},
	}}}
	check := g.CheckRedirect(2)

	ok, _ := http.NewRequest(http.MethodGet, "https://cdn.example.com/v.mp4", nil)
	assert.NoError(t, check(ok, nil))

	bad, _ := http.NewRequest(http.MethodGet, "https://evil.example/v.mp4", nil)
	assert.ErrorIs(t, check(bad, nil), ErrBlockedAddress)

	assert.ErrorIs(t, check(ok, []*http.Request{ok, ok}), ErrTooManyRedirects)
}

func TestMediaClient_RefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewMediaClient(5 * time.Second)
	resp, err := client.Get(srv.URL)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlockedAddress)
}
