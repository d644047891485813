package practicum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint is the homework status API.
const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// ErrResponseTooLarge is returned when a successful reply exceeds the body limit.
var ErrResponseTooLarge = errors.New("response too large")

// Config controls how the client reaches the API.
type Config struct {
	Endpoint   string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches raw homework status payloads.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	httpClient httpDoer
}

// StatusError is returned for non-2xx replies. Code and Message come from the
// API's error body when it has one.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "endpoint unavailable: http %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (code=%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var doer httpDoer = cfg.HTTPClient
	if cfg.HTTPClient == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{endpoint: endpoint, token: cfg.Token, timeout: timeout, httpClient: doer}, nil
}

// Fetch returns the raw JSON body for updates since the given epoch second.
func (c *Client) Fetch(ctx context.Context, since int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, since)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp.StatusCode, body[:min(len(body), maxBodyBytes)])
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxBodyBytes)
	}
	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, since int64) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("from_date", strconv.FormatInt(since, 10))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func statusError(code int, body []byte) *StatusError {
	se := &StatusError{StatusCode: code}
	var apiErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		se.Code = apiErr.Code
		se.Message = apiErr.Message
	}
	if se.Code == "" && se.Message == "" {
		se.Message = strings.TrimSpace(string(body[:min(len(body), 256)]))
	}
	return se
}
