package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// tokenCache caches successful validations for a short TTL to bound
// user-management load. Entries are keyed by a digest of the token so raw
// credentials never sit in memory as map keys. A cached entry must never
// outlive the token itself, so entries carry the token's expiry alongside
// the LRU's own TTL.
type tokenCache struct {
	lru *expirable.LRU[string, cachedIdentity]
}

type cachedIdentity struct {
	identity *Identity
	expires  time.Time // zero when the token carries no exp claim
}

func newTokenCache(size int, ttl time.Duration) (*tokenCache, error) {
	return &tokenCache{
		lru: expirable.NewLRU[string, cachedIdentity](size, nil, ttl),
	}, nil
}

func (c *tokenCache) Get(token string) (*Identity, bool) {
	entry, ok := c.lru.Get(cacheKey(token))
	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.lru.Remove(cacheKey(token))
		return nil, false
	}
	return entry.identity, true
}

func (c *tokenCache) Set(token string, identity *Identity) {
	entry := cachedIdentity{identity: identity}
	if exp := tokenExpiry(token); exp != nil {
		if time.Now().After(*exp) {
			return
		}
		entry.expires = *exp
	}
	c.lru.Add(cacheKey(token), entry)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// signature was already vouched for by user-management; only the expiry
// instant matters here.
func tokenExpiry(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	return &exp.Time
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
