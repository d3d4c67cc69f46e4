package ratelimit

import (
	"context"
	"time"
)

// Scope names the limiter that rejected a request.
type Scope string

const (
	ScopeNone  Scope = ""
	ScopeIP    Scope = "ip"
	ScopeVault Scope = "vault"
)

// Gate combines the per-IP and per-vault limiters.
type Gate struct {
	ip    *Limiter
	vault *Limiter
}

func NewGate(perIP, perVault int, window time.Duration) *Gate {
	return &Gate{ip: New(perIP, window), vault: New(perVault, window)}
}

// AllowIP checks only the IP limiter. It guards the HTTP surface.
func (g *Gate) AllowIP(ip string) bool {
	return g.ip.Allow(ip)
}

// Admit checks the IP limiter and, when vaultID is non-empty, the vault
// limiter. It returns the scope that rejected the request, or ScopeNone.
func (g *Gate) Admit(ip, vaultID string) Scope {
	if !g.ip.Allow(ip) {
		return ScopeIP
	}
	if vaultID != "" && !g.vault.Allow(vaultID) {
		return ScopeVault
	}
	return ScopeNone
}

// RunSweeper sweeps both limiters every interval until ctx is cancelled.
func (g *Gate) RunSweeper(ctx context.Context, interval time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.vault.RunSweeper(ctx, interval)
	}()
	g.ip.RunSweeper(ctx, interval)
	<-done
}
