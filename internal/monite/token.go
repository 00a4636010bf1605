package monite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenRefreshLeeway refreshes a token this long before it expires.
const tokenRefreshLeeway = 30 * time.Second

// Token is the response of the Monite token endpoint.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// FetchToken produces a new access token or refreshes an existing one.
type FetchToken func(ctx context.Context) (Token, error)

// tokenCache holds the current token and refetches it on expiry.
type tokenCache struct {
	mu        sync.Mutex
	fetch     FetchToken
	token     Token
	expiresAt time.Time // zero means no known expiry
	stale     bool
	now       func() time.Time

	hooksMu  sync.RWMutex
	onChange []func()
}

func newTokenCache(fetch FetchToken) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) get(ctx context.Context) (Token, error) {
	c.mu.Lock()
	if c.valid() {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}

	previous := c.token.AccessToken
	tok, err := c.fetch(ctx)
	if err != nil {
		c.mu.Unlock()
		return Token{}, fmt.Errorf("fetch token: %w", err)
	}
	if tok.AccessToken == "" {
		c.mu.Unlock()
		return Token{}, ErrEmptyToken
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	c.token = tok
	c.expiresAt = tokenExpiry(tok, c.now())
	c.stale = false
	c.mu.Unlock()

	if previous != "" && previous != tok.AccessToken {
		c.fireChange()
	}
	return tok, nil
}

// valid must be called with mu held.
func (c *tokenCache) valid() bool {
	if c.token.AccessToken == "" || c.stale {
		return false
	}
	if c.expiresAt.IsZero() {
		return true
	}
	return c.now().Before(c.expiresAt.Add(-tokenRefreshLeeway))
}

// invalidate forces the next get to fetch a new token.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

func (c *tokenCache) addHook(fn func()) {
	c.hooksMu.Lock()
	c.onChange = append(c.onChange, fn)
	c.hooksMu.Unlock()
}

func (c *tokenCache) fireChange() {
	c.hooksMu.RLock()
	hooks := append([]func(){}, c.onChange...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// tokenExpiry prefers expires_in and falls back to the exp claim when the
// access token is a JWT. The signature is not checked: the API does that.
func tokenExpiry(tok Token, now time.Time) time.Time {
	if tok.ExpiresIn > 0 {
		return now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ClientCredentialsConfig configures the entity_user grant.
type ClientCredentialsConfig struct {
	APIURL       string
	ClientID     string
	ClientSecret string
	EntityUserID string
	HTTPClient   *http.Client
}

// ClientCredentials returns a FetchToken that exchanges partner credentials
// for an entity user token via POST /auth/token.
func ClientCredentials(cfg ClientCredentialsConfig) FetchToken {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return func(ctx context.Context) (Token, error) {
		body, err := json.Marshal(map[string]string{
			"grant_type":     "entity_user",
			"client_id":      cfg.ClientID,
			"client_secret":  cfg.ClientSecret,
			"entity_user_id": cfg.EntityUserID,
		})
		if err != nil {
			return Token{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/auth/token", bytes.NewReader(body))
		if err != nil {
			return Token{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderVersion, APIVersion)

		resp, err := client.Do(req)
		if err != nil {
			return Token{}, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return Token{}, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Token{}, newAPIError(http.MethodPost, "/auth/token", resp.StatusCode, raw)
		}

		var tok Token
		if err := json.Unmarshal(raw, &tok); err != nil {
			return Token{}, fmt.Errorf("decode token: %w", err)
		}
		return tok, nil
	}
}

// StaticToken returns a FetchToken that always yields tok.
func StaticToken(tok Token) FetchToken {
	return func(context.Context) (Token, error) {
		return tok, nil
	}
}
