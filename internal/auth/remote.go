package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/aidevops/gateway/internal/config"
	"github.com/aidevops/gateway/internal/errors"
	"github.com/aidevops/gateway/internal/logging"
)

const maxValidateBody = 1 << 20 // 1MB

// RemoteValidator validates bearer tokens by calling the user-management
// service's validate endpoint, forwarding the Authorization header unchanged.
type RemoteValidator struct {
	cfg      config.AuthConfig
	client   *http.Client
	cache    *tokenCache
	fallback *InsecureFallback

	// OnResult, when set, is notified of every validation outcome:
	// "success", "rejected", "degraded", or "unavailable".
	OnResult func(result string)
}

func (v *RemoteValidator) observe(result string) {
	if v.OnResult != nil {
		v.OnResult(result)
	}
}

// NewRemoteValidator creates a validator from config.
func NewRemoteValidator(cfg config.AuthConfig) (*RemoteValidator, error) {
	v := &RemoteValidator{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if cfg.CacheTTL > 0 {
		cache, err := newTokenCache(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		v.cache = cache
	}

	if cfg.DebugFallback {
		v.fallback = NewInsecureFallback()
		logging.Warn("Auth debug fallback is enabled; unverified tokens will be trusted when user-management is down")
	}

	return v, nil
}

// Validate implements Validator.
//
// With auth disabled it returns Anonymous without touching the network.
// Otherwise it requires a well-formed bearer credential and asks
// user-management whether the token is good.
func (v *RemoteValidator) Validate(ctx context.Context, authorization string) (*Context, error) {
	if !v.cfg.Enabled {
		return &Context{Anonymous: true}, nil
	}

	token, ok := bearerToken(authorization)
	if !ok {
		v.observe("rejected")
		return nil, errors.ErrUnauthorized.WithDetail("Not authenticated")
	}

	if v.cache != nil {
		if identity, ok := v.cache.Get(token); ok {
			v.observe("success")
			return &Context{Identity: identity}, nil
		}
	}

	identity, err := v.callValidate(ctx, authorization)
	if err != nil {
		if ge, ok := errors.IsGatewayError(err); ok && ge.Code == http.StatusUnauthorized {
			v.observe("rejected")
			return nil, err
		}
		// Network-level failure reaching user-management
		if v.fallback != nil {
			identity := v.fallback.Decode(token)
			logging.Warn("User-management unreachable, using insecure fallback identity",
				zap.String("user_id", identity.ID),
				zap.Error(err),
			)
			v.observe("degraded")
			return &Context{Identity: identity, Degraded: true}, nil
		}
		v.observe("unavailable")
		return nil, errors.ErrAuthServiceUnavailable
	}

	if v.cache != nil {
		v.cache.Set(token, identity)
	}

	v.observe("success")
	return &Context{Identity: identity}, nil
}

// callValidate issues the outbound GET to user-management.
func (v *RemoteValidator) callValidate(ctx context.Context, authorization string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.ValidateURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", authorization)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxValidateBody))
		return nil, errors.ErrUnauthorized.WithDetail("Could not validate credentials")
	}

	var identity Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxValidateBody)).Decode(&identity); err != nil {
		return nil, errors.ErrUnauthorized.WithDetail("Could not validate credentials")
	}

	return &identity, nil
}
