// Package dns resolves the signaling host, falling back to public resolvers
// when the system one is broken or filtered.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicDNS are queried directly if the system lookup fails.
var publicDNS = []string{
	"1.1.1.1",              // Cloudflare
	"1.0.0.1",              // Cloudflare
	"2606:4700:4700::1111", // Cloudflare
	"8.8.8.8",              // Google
	"8.8.4.4",              // Google
	"2001:4860:4860::8888", // Google
	"9.9.9.9",              // Quad9
	"149.112.112.112",      // Quad9
	"208.67.222.222",       // Cisco OpenDNS
	"208.67.220.220",       // Cisco OpenDNS
}

const (
	localTimeout  = time.Second
	remoteTimeout = 2 * time.Second
)

// ErrNoAddress is returned when a resolver answered without any address.
var ErrNoAddress = errors.New("no IP addresses found")

// Resolver looks a host up locally first, then races the fallback servers.
type Resolver struct {
	// Servers overrides the public fallback list. Empty means publicDNS.
	Servers []string
	// DisableFallback skips the public race.
	DisableFallback bool
}

// Default is the resolver used by Lookup and DialContext.
var Default = &Resolver{}

// Lookup resolves host with the default resolver.
func Lookup(ctx context.Context, host string) (string, error) {
	return Default.Lookup(ctx, host)
}

// DialContext dials addr after resolving its host with the default resolver.
// It fits websocket.Dialer.NetDialContext.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return Default.DialContext(ctx, network, addr)
}

// Lookup resolves host to one IP address, preferring IPv4. IP literals are
// returned as is.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ip, err := lookupWith(ctx, &net.Resolver{}, host, localTimeout)
	if err == nil {
		return ip, nil
	}
	if r.DisableFallback {
		return "", fmt.Errorf("resolve %s: %w", host, err)
	}
	return r.race(ctx, host)
}

// DialContext resolves the host part of addr and dials the result.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func (r *Resolver) servers() []string {
	if len(r.Servers) > 0 {
		return r.Servers
	}
	return publicDNS
}

// race asks every fallback server at once and keeps the first answer.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	servers := r.servers()
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	results := make(chan result, len(servers))
	for _, server := range servers {
		go func(server string) {
			ip, err := lookupWith(ctx, viaServer(server), host, 0)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: public DNS race: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d public DNS servers failed", host, failures)
}

// viaServer builds a resolver that only talks to server on port 53.
func viaServer(server string) *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
}

func lookupWith(ctx context.Context, r *net.Resolver, host string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	return preferIPv4(ips)
}

func preferIPv4(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", ErrNoAddress
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
