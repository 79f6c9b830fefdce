package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"testgen-session/internal/domain"
)

// Config holds the authority endpoint and default credentials.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the test and test-session REST endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
	now     func() time.Time
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout})
}

// NewWithHTTPClient lets callers supply the transport (tests use httptest clients).
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    hc,
		tokens:  StaticToken(cfg.Token),
		now:     time.Now,
	}
}

// WithTokenSource replaces the default token source.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

func (c *Client) GetTest(ctx context.Context, testID int64) (domain.Test, error) {
	var test domain.Test
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tests/%d", testID), nil, &test)
	if HasStatus(err, http.StatusNotFound) {
		return domain.Test{}, fmt.Errorf("%w: %v", domain.ErrTestNotFound, err)
	}
	return test, err
}

func (c *Client) CurrentSession(ctx context.Context, studentID, testID int64) (domain.Session, error) {
	var session domain.Session
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/test-sessions/current/%d/%d", studentID, testID), nil, &session)
	if HasStatus(err, http.StatusNotFound) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, err
}

func (c *Client) CreateSession(ctx context.Context, req domain.NewSession) (domain.Session, error) {
	var session domain.Session
	err := c.do(ctx, http.MethodPost, "/api/test-sessions", req, &session)
	if HasStatus(err, http.StatusConflict) {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrSessionConflict, err)
	}
	return session, err
}

func (c *Client) SaveAnswers(ctx context.Context, sessionID int64, answers []domain.Answer) ([]domain.Answer, error) {
	if answers == nil {
		answers = []domain.Answer{}
	}
	body := struct {
		Answers []domain.Answer `json:"answers"`
	}{Answers: answers}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/test-sessions/%d", sessionID), body, nil); err != nil {
		return nil, err
	}
	return append([]domain.Answer(nil), answers...), nil
}

func (c *Client) FinishSession(ctx context.Context, sessionID int64, answers []domain.Answer) (domain.Session, error) {
	if answers == nil {
		answers = []domain.Answer{}
	}
	var session domain.Session
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/test-sessions/finish/%d", sessionID), answers, &session)
	return session, err
}

func (c *Client) ListSessions(ctx context.Context, studentID, testID int64) ([]domain.Session, error) {
	var sessions []domain.Session
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/test-sessions/student_and_test/%d/%d", studentID, testID), nil, &sessions)
	return sessions, err
}

func (c *Client) ListTestSessions(ctx context.Context, testID int64) ([]domain.Session, error) {
	var sessions []domain.Session
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/test-sessions/test/%d", testID), nil, &sessions)
	return sessions, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	tok, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok.SetAuthHeader(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %s: %w", method, path, res.Status, ErrUnauthenticated)
	}
	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if res.StatusCode != http.StatusNotFound {
			log.Printf("request %s %s %s failed: %s", requestID, method, path, res.Status)
		}
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       strings.TrimSpace(string(snippet)),
			RequestID:  requestID,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
