package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rdmitry/taskvault/internal/config"
	"github.com/rdmitry/taskvault/internal/logger"
)

// httpClient is the resty-backed implementation of [Client]. The version
// token rides on the standard ETag / If-Match conditional request headers.
type httpClient struct {
	client *resty.Client
	token  string
	logger *logger.Logger
}

// NewHTTPClient constructs a [Client] for the store at cfg.BaseURL.
func NewHTTPClient(cfg config.Remote, log *logger.Logger) Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout)

	return &httpClient{client: cli, token: strings.TrimSpace(cfg.AccessToken), logger: log}
}

// Get implements [Client].
func (h *httpClient) Get(ctx context.Context, path string) (Object, error) {
	if err := h.checkToken(); err != nil {
		return Object{}, err
	}

	resp, err := h.authedRequest(ctx).Get("/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return Object{}, &NetworkError{Err: fmt.Errorf("get request: %w", err)}
	}
	if err = mapHTTPError(resp); err != nil {
		return Object{}, err
	}

	return Object{
		Content:      resp.Body(),
		VersionToken: resp.Header().Get("ETag"),
	}, nil
}

// Put implements [Client]. A non-empty versionToken is sent as If-Match so
// the store rejects the write when another replica got there first.
func (h *httpClient) Put(ctx context.Context, path string, content []byte, versionToken string) (string, error) {
	if err := h.checkToken(); err != nil {
		return "", err
	}

	req := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(content)
	if versionToken != "" {
		req.SetHeader("If-Match", versionToken)
	}

	resp, err := req.Put("/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", &NetworkError{Err: fmt.Errorf("put request: %w", err)}
	}
	if err = mapHTTPError(resp); err != nil {
		return "", err
	}

	return resp.Header().Get("ETag"), nil
}

func (h *httpClient) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetHeader("Authorization", "Bearer "+h.token)
	}
	return req
}

// checkToken reports ErrAuth for a bearer token that is a JWT and is
// already expired, sparing the round trip the store would reject anyway.
// Tokens that are not JWTs (or are unparsable) are sent as-is and judged
// by the store.
func (h *httpClient) checkToken() error {
	if h.token == "" {
		return nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(h.token, jwt.MapClaims{})
	if err != nil {
		return nil
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("bearer token expired at %s: %w", exp.Format(time.RFC3339), ErrAuth)
	}

	return nil
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrVersionConflict
	case http.StatusTooManyRequests:
		return &RateLimitedError{Reset: parseRateLimitReset(resp)}
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}
	return fmt.Errorf("http %d: %s", code, body)
}

// parseRateLimitReset reads Retry-After, accepting both the delta-seconds
// and HTTP-date forms. Falls back to one minute from now.
func parseRateLimitReset(resp *resty.Response) time.Time {
	value := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if value == "" {
		return time.Now().Add(time.Minute)
	}

	if secs, err := strconv.Atoi(value); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	if at, err := http.ParseTime(value); err == nil {
		return at
	}
	return time.Now().Add(time.Minute)
}
