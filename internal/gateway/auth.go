package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/helix/internal/config"
)

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"` // "none" | "token" | "password"
	Reason string `json:"reason,omitempty"`
}

const (
	authModeNone     = "none"
	authModeToken    = "token"
	authModePassword = "password"
)

// ResolvedAuth holds the resolved auth configuration for the gateway.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// ResolveAuth resolves authentication credentials from config and environment.
// Precedence: config value → env variable → empty.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{Mode: cfg.Mode}

	auth.Token = cfg.Token
	if auth.Token == "" {
		auth.Token = os.Getenv("HELIX_GATEWAY_TOKEN")
	}

	auth.Password = cfg.Password
	if auth.Password == "" {
		auth.Password = os.Getenv("HELIX_GATEWAY_PASSWORD")
	}

	if auth.Mode == "" {
		switch {
		case auth.Password != "":
			auth.Mode = authModePassword
		case auth.Token != "":
			auth.Mode = authModeToken
		default:
			auth.Mode = authModeNone
		}
	}

	return auth
}

// Authorize checks the provided ConnectAuth against the resolved server auth.
func Authorize(serverAuth ResolvedAuth, clientAuth *ConnectAuth) AuthResult {
	if serverAuth.Mode == authModeNone {
		return AuthResult{OK: true, Method: authModeNone}
	}
	if clientAuth == nil {
		return AuthResult{OK: false, Reason: "no credentials provided"}
	}

	switch serverAuth.Mode {
	case authModeToken:
		if serverAuth.Token == "" {
			return AuthResult{OK: false, Reason: "server token not configured"}
		}
		if clientAuth.Token == "" {
			return AuthResult{OK: false, Reason: "token required"}
		}
		if !safeEqual(clientAuth.Token, serverAuth.Token) {
			return AuthResult{OK: false, Reason: "token_mismatch"}
		}
		return AuthResult{OK: true, Method: authModeToken}

	case authModePassword:
		if serverAuth.Password == "" {
			return AuthResult{OK: false, Reason: "server password not configured"}
		}
		if clientAuth.Password == "" {
			return AuthResult{OK: false, Reason: "password required"}
		}
		if !safeEqual(clientAuth.Password, serverAuth.Password) {
			return AuthResult{OK: false, Reason: "password_mismatch"}
		}
		return AuthResult{OK: true, Method: authModePassword}

	default:
		return AuthResult{OK: false, Reason: "unknown auth mode: " + serverAuth.Mode}
	}
}

// AuthorizeRequest checks REST credentials. The secret travels as
// "Authorization: Bearer <token-or-password>".
func AuthorizeRequest(serverAuth ResolvedAuth, r *http.Request) AuthResult {
	if serverAuth.Mode == authModeNone {
		return AuthResult{OK: true, Method: authModeNone}
	}
	secret, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || secret == "" {
		return Authorize(serverAuth, nil)
	}
	return Authorize(serverAuth, &ConnectAuth{Token: secret, Password: secret})
}

// safeEqual performs a constant-time string comparison.
// Length is compared separately so a mismatch does not return early.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}

// authRateLimiter tracks failed auth attempts per IP.
type authRateLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	now      func() time.Time
}

const (
	authRateWindow   = 5 * time.Minute
	authRateMaxFails = 10
	authRateMaxIPs   = 10000
)

func newAuthRateLimiter() *authRateLimiter {
	return &authRateLimiter{failures: make(map[string][]time.Time), now: time.Now}
}

// run prunes stale entries every minute until stop is closed.
func (l *authRateLimiter) run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.prune(l.now().Add(-authRateWindow))
		}
	}
}

func (l *authRateLimiter) prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, times := range l.failures {
		filtered := recentSince(times, cutoff)
		if len(filtered) == 0 {
			delete(l.failures, ip)
		} else {
			l.failures[ip] = filtered
		}
	}
}

func recentSince(times []time.Time, cutoff time.Time) []time.Time {
	filtered := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func hostOf(remoteAddr string) string {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		return remoteAddr
	}
	return host
}

func (l *authRateLimiter) allow(remoteAddr string) bool {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := recentSince(l.failures[host], l.now().Add(-authRateWindow))
	if len(filtered) == 0 {
		delete(l.failures, host)
		return true
	}
	l.failures[host] = filtered
	return len(filtered) < authRateMaxFails
}

func (l *authRateLimiter) recordFailure(remoteAddr string) {
	host := hostOf(remoteAddr)

	l.mu.Lock()
	defer l.mu.Unlock()

	// Evict the oldest entry once the table is full
	if _, exists := l.failures[host]; !exists && len(l.failures) >= authRateMaxIPs {
		var oldestIP string
		var oldestTime time.Time
		for ip, times := range l.failures {
			if len(times) > 0 && (oldestIP == "" || times[0].Before(oldestTime)) {
				oldestIP = ip
				oldestTime = times[0]
			}
		}
		if oldestIP != "" {
			delete(l.failures, oldestIP)
		}
	}

	l.failures[host] = append(l.failures[host], l.now())
}
