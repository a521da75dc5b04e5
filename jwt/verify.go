package jwtkit

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	jwxt "github.com/lestrrat-go/jwx/v2/jwt"
)

// AcceptConfig describes how the gateway accepts tokens from its issuer
// (verify-only mode: this service never runs the login flow itself).
type AcceptConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	Skew     time.Duration
	CacheTTL time.Duration
}

// Verifier validates gateway bearer tokens against a remote JWKS document,
// refreshed in the background by the jwk cache.
type Verifier struct {
	cfg   AcceptConfig
	cache *jwk.Cache
}

// TokenInfo is the subset of claims the gateway cares about.
type TokenInfo struct {
	Subject string
	Issuer  string
}

func NewVerifier(ctx context.Context, cfg AcceptConfig) (*Verifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.Skew <= 0 {
		cfg.Skew = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.CacheTTL)); err != nil {
		return nil, err
	}
	return &Verifier{cfg: cfg, cache: cache}, nil
}

// Verify parses and validates a compact token, returning its identity claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (TokenInfo, error) {
	set, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return TokenInfo{}, err
	}
	opts := []jwxt.ParseOption{
		jwxt.WithKeySet(set),
		jwxt.WithValidate(true),
		jwxt.WithAcceptableSkew(v.cfg.Skew),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwxt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwxt.WithAudience(v.cfg.Audience))
	}
	tok, err := jwxt.Parse([]byte(raw), opts...)
	if err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{Subject: tok.Subject(), Issuer: tok.Issuer()}, nil
}
