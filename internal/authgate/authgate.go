// Package authgate guards the remote HTTP transport with a shared-secret
// token check and a client-IP allowlist. The stdio transport never passes
// through the gate.
package authgate

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Header names accepted for the shared-secret token.
const (
	authorizationHeader = "Authorization"
	tokenHeader         = "X-Ubridge-Token"
)

// Settings configures a Gate.
type Settings struct {
	// Enabled turns the gate on. A disabled gate admits every request.
	Enabled bool

	// Token is the shared secret. Empty means no token check.
	Token string

	// AllowedIPs holds IP literals, CIDR ranges, or "*". Empty means no
	// IP restriction.
	AllowedIPs []string

	// TrustForwardedFor makes the gate read the client address from
	// X-Forwarded-For instead of the socket peer. Only safe behind a
	// trusted reverse proxy.
	TrustForwardedFor bool
}

// Rejection describes why a request was turned away.
type Rejection struct {
	Code   int
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", r.Code, r.Reason)
}

// Gate verifies incoming HTTP requests against the configured token and
// allowlist. Construct with New; the zero value rejects nothing.
type Gate struct {
	settings Settings
	allowAll bool
	prefixes []netip.Prefix
	addrs    []netip.Addr
}

// New builds a gate from validated settings. Allowlist entries must have
// passed config validation; malformed entries are skipped here.
func New(settings Settings) *Gate {
	g := &Gate{settings: settings}
	for _, entry := range settings.AllowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "*" {
			g.allowAll = true
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			g.prefixes = append(g.prefixes, prefix)
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			g.addrs = append(g.addrs, addr.Unmap())
		}
	}
	return g
}

// Verify checks one request and returns nil when it may proceed. The IP
// check runs first so an off-list caller learns nothing about the token.
func (g *Gate) Verify(r *http.Request) *Rejection {
	if !g.settings.Enabled {
		return nil
	}

	if rej := g.verifyIP(r); rej != nil {
		return rej
	}
	return g.verifyToken(r)
}

func (g *Gate) verifyIP(r *http.Request) *Rejection {
	if len(g.settings.AllowedIPs) == 0 || g.allowAll {
		return nil
	}

	addr, err := clientAddr(r, g.settings.TrustForwardedFor)
	if err != nil {
		return &Rejection{Code: http.StatusForbidden, Reason: "client address unreadable"}
	}

	for _, p := range g.prefixes {
		if p.Contains(addr) {
			return nil
		}
	}
	for _, a := range g.addrs {
		if a == addr {
			return nil
		}
	}
	return &Rejection{Code: http.StatusForbidden, Reason: fmt.Sprintf("address %s not in allowlist", addr)}
}

func (g *Gate) verifyToken(r *http.Request) *Rejection {
	if g.settings.Token == "" {
		return nil
	}

	presented := PresentedToken(r)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(g.settings.Token)) != 1 {
		return &Rejection{Code: http.StatusUnauthorized, Reason: "missing or invalid token"}
	}
	return nil
}

// PresentedToken extracts the caller's token from either accepted header.
func PresentedToken(r *http.Request) string {
	if auth := r.Header.Get(authorizationHeader); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.Header.Get(tokenHeader)
}

// clientAddr determines the caller's address for allowlist purposes.
func clientAddr(r *http.Request, trustForwarded bool) (netip.Addr, error) {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			// First hop is the original client.
			first, _, _ := strings.Cut(fwd, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr.Unmap(), nil
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// Middleware wraps an HTTP handler with the gate. Rejections get a terse
// plain-text body; nothing about the expected token or allowlist leaks.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rej := g.Verify(r); rej != nil {
			http.Error(w, rej.Reason, rej.Code)
			return
		}
		next.ServeHTTP(w, r)
	})
}
