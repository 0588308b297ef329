// Package gateway is the HTTP client every remote call goes through. It
// attaches the stored bearer token, and on a 401 refreshes the session and
// retries the request once. Concurrent 401s share a single refresh call.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teachlink/client-core/internal/config"
	"github.com/teachlink/client-core/internal/domain"
	"github.com/teachlink/client-core/internal/keystore"
	"github.com/teachlink/client-core/internal/observability"
	"github.com/teachlink/client-core/internal/security"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *keystore.Credentials
	logger     *slog.Logger

	// refreshGroup serializes token refreshes: every request that observes a
	// 401 while a refresh is in flight joins it and shares its outcome.
	refreshGroup singleflight.Group
}

func New(cfg *config.Config, creds *keystore.Credentials, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.HTTPTimeout,
		},
		creds:  creds,
		logger: logger,
	}
}

// Do sends an authenticated JSON request and decodes the response into out
// (which may be nil). A 401 triggers one coalesced refresh and one retry; a
// second 401 surfaces as ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, payload, c.creds.AccessToken(ctx))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.decode(resp, out)
	}
	drain(resp)

	session, err := c.RefreshSession(ctx)
	if err != nil {
		return err
	}
	retry, err := c.send(ctx, method, path, payload, session.Tokens.AccessToken)
	if err != nil {
		return err
	}
	if retry.StatusCode == http.StatusUnauthorized {
		drain(retry)
		return ErrSessionExpired
	}
	return c.decode(retry, out)
}

// DoDirect sends a JSON request with no 401 handling. The auth endpoints
// themselves use it so an invalid-credentials response reaches the caller
// as-is instead of tripping the refresh path.
func (c *Client) DoDirect(ctx context.Context, method, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, method, path, payload, c.creds.AccessToken(ctx))
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// RefreshSession performs the single-flight token refresh: one network call
// no matter how many callers arrive while it is running, with the result
// (or error) fanned out to all of them. On success the full session is
// persisted before any waiter resumes.
func (c *Client) RefreshSession(ctx context.Context) (*domain.Session, error) {
	v, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		// The refresh outcome is shared by every waiter, so it must not die
		// with the one caller that happened to start it.
		return c.refreshOnce(context.WithoutCancel(ctx))
	})
	if shared {
		observability.RecordRefreshCoalesced()
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

func (c *Client) refreshOnce(ctx context.Context) (*domain.Session, error) {
	ctx, span := otel.Tracer("teachlink-client-core").Start(ctx, "auth.refresh",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	refreshToken := c.creds.RefreshToken(ctx)
	if refreshToken == "" {
		observability.RecordAuthRefresh("no_token")
		return nil, ErrNoRefreshToken
	}

	var session domain.Session
	err := c.DoDirect(ctx, http.MethodPost, "/auth/refresh",
		map[string]string{"refreshToken": refreshToken}, &session)
	if err != nil {
		span.RecordError(err)
		observability.RecordAuthRefresh("failure")
		c.logger.Warn("token refresh failed", "error", err)
		return nil, err
	}
	if session.Tokens.ExpiresAt == 0 {
		if exp, ok := security.TokenExpiry(session.Tokens.AccessToken); ok {
			session.Tokens.ExpiresAt = exp.UnixMilli()
		}
	}
	if err := c.creds.SaveSession(ctx, session); err != nil {
		observability.RecordAuthRefresh("persist_failure")
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return &session, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := wrapTransportError(err)
		c.logger.Warn("api unreachable", "method", method, "path", path, "error", err)
		return nil, wrapped
	}
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer drain(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Code != "" {
			apiErr.Code = body.Code
		}
		if body.Message != "" {
			apiErr.Message = body.Message
		}
	}
	if resp.StatusCode != http.StatusUnauthorized {
		c.logger.Debug("api error response", "status", resp.StatusCode, "code", apiErr.Code)
	}
	return apiErr
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return payload, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
