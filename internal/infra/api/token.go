package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

type tokenKey struct{}

// WithToken attaches a caller's bearer token to ctx. It takes precedence
// over the client's configured token source.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// StaticToken returns a token source for a fixed, opaque bearer token.
// It yields nil when raw is empty.
func StaticToken(raw string) oauth2.TokenSource {
	raw = stripScheme(raw)
	if raw == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: raw, TokenType: "Bearer"})
}

// fileRefresh bounds how long an opaque token read from disk is reused.
const fileRefresh = time.Minute

// FileToken returns a token source that reads the bearer token from path,
// for tokens rotated on disk by a sidecar. A JWT is reused until its exp,
// an opaque token for fileRefresh.
func FileToken(path string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, fileTokenSource{path: path, now: time.Now})
}

type fileTokenSource struct {
	path string
	now  func() time.Time
}

func (s fileTokenSource) Token() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	raw := stripScheme(string(data))
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer", Expiry: s.now().Add(fileRefresh)}
	if exp, ok := jwtExpiry(raw); ok {
		tok.Expiry = exp
	}
	return tok, nil
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	var tok *oauth2.Token
	if raw, ok := ctx.Value(tokenKey{}).(string); ok && stripScheme(raw) != "" {
		tok = &oauth2.Token{AccessToken: stripScheme(raw), TokenType: "Bearer"}
	} else if c.tokens != nil {
		t, err := c.tokens.Token()
		if err != nil {
			return nil, err
		}
		tok = t
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrUnauthenticated
	}

	// Tokens are opaque; a JWT's exp is only checked to fail before dialing.
	if exp, ok := jwtExpiry(tok.AccessToken); ok && !exp.After(c.now()) {
		return nil, ErrTokenExpired
	}
	return tok, nil
}

func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func stripScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
