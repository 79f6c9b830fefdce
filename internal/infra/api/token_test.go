package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenResolution(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sign := func(exp time.Time) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("k"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	live := sign(now.Add(time.Hour))

	tests := []struct {
		name    string
		config  string
		ctx     string
		want    string
		wantErr error
	}{
		{name: "none", wantErr: ErrUnauthenticated},
		{name: "configured", config: "abc", want: "abc"},
		{name: "configured with scheme", config: "Bearer abc", want: "abc"},
		{name: "context wins", config: "abc", ctx: "xyz", want: "xyz"},
		{name: "blank context falls back", config: "abc", ctx: "  ", want: "abc"},
		{name: "live jwt", ctx: live, want: live},
		{name: "expired jwt", ctx: sign(now.Add(-time.Minute)), wantErr: ErrTokenExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(Config{BaseURL: "http://authority", Token: tc.config})
			c.now = func() time.Time { return now }
			ctx := context.Background()
			if tc.ctx != "" {
				ctx = WithToken(ctx, tc.ctx)
			}
			tok, err := c.token(ctx)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("token: %v", err)
			}
			if tok.AccessToken != tc.want || tok.Type() != "Bearer" {
				t.Fatalf("unexpected token %q type %q", tok.AccessToken, tok.Type())
			}
		})
	}
}

func TestFileTokenSource(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "token")
	write := func(body string) {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write token: %v", err)
		}
	}

	write("Bearer rotated-token\n")
	src := fileTokenSource{path: path, now: func() time.Time { return now }}
	tok, err := src.Token()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "rotated-token" || !tok.Expiry.Equal(now.Add(fileRefresh)) {
		t.Fatalf("unexpected token %+v", tok)
	}

	exp := now.Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	write(signed)
	tok, err = src.Token()
	if err != nil || !tok.Expiry.Equal(exp) {
		t.Fatalf("expected jwt expiry %v, got %+v err=%v", exp, tok, err)
	}

	write("  ")
	if _, err := src.Token(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for empty file, got %v", err)
	}
}

func TestClientUsesFileToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	c := New(Config{BaseURL: "http://authority", Token: "configured"}).WithTokenSource(FileToken(path))
	tok, err := c.token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok.AccessToken != "from-file" {
		t.Fatalf("expected file token to replace the configured one, got %q", tok.AccessToken)
	}
}
