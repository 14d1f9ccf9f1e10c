// Package twitch talks to the Twitch API: app access tokens, the webhook hub
// and its lease renewals, and the inbound notification endpoint.
package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is the Twitch client-credentials token endpoint.
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// SafetyMargin is how long before expiry a token stops being used.
	SafetyMargin = 10 * time.Second

	fetchTimeout = 15 * time.Second
)

// ClientCredentials is an app access token and its expiry.
type ClientCredentials struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be used at now.
func (c ClientCredentials) Valid(now time.Time) bool {
	return c.Token != "" && now.Before(c.ExpiresAt.Add(-SafetyMargin))
}

// Credentials caches the app access token and renews it on demand. Concurrent
// callers share a single renewal.
type Credentials struct {
	config clientcredentials.Config
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	current *ClientCredentials // nil until the first renewal

	renewals singleflight.Group
}

// NewCredentials returns a token cache for the given client.
func NewCredentials(clientID, clientSecret, tokenURL string, logger *zap.Logger) *Credentials {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Credentials{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source. Tests only.
func (c *Credentials) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Token returns a valid app access token, renewing it when absent or expiring.
func (c *Credentials) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}

	v, err, shared := c.renewals.Do("token", func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		return c.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("shared token renewal")
	}
	return v.(string), nil
}

// Invalidate drops the cached token, so the next call renews it.
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Current returns a copy of the cached credentials, if any.
func (c *Credentials) Current() (ClientCredentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ClientCredentials{}, false
	}
	return *c.current, true
}

func (c *Credentials) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || !c.current.Valid(c.now()) {
		return "", false
	}
	return c.current.Token, true
}

// renew fetches a new token. The request outlives the caller's cancellation
// since other callers may be waiting on it.
func (c *Credentials) renew(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
	defer cancel()

	c.mu.Lock()
	now := c.now
	c.mu.Unlock()

	requested := now()
	tok, err := c.config.Token(ctx)
	if err != nil {
		c.logger.Error("failed to fetch app access token", zap.Error(err))
		return "", fmt.Errorf("failed to fetch app access token: %w", err)
	}

	expiresAt := tok.Expiry
	if secs, ok := expiresIn(tok); ok {
		expiresAt = requested.Add(time.Duration(secs) * time.Second)
	}

	c.mu.Lock()
	c.current = &ClientCredentials{Token: tok.AccessToken, ExpiresAt: expiresAt}
	c.mu.Unlock()

	c.logger.Info("app access token renewed", zap.Time("expires_at", expiresAt))
	return tok.AccessToken, nil
}

// expiresIn reads the raw expires_in field of the token response.
func expiresIn(tok *oauth2.Token) (int64, bool) {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
