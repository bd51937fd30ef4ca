// Package magicalapi talks to the MagicalAPI profile-data service: an
// asynchronous job API where a lookup is created first and polled until the
// profile is ready.
package magicalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/spigell/adherence-scorer/internal/errors"
	"github.com/spigell/adherence-scorer/internal/metrics"
	"github.com/spigell/adherence-scorer/internal/utils"
)

const (
	DefaultEndpoint = "https://gw.magicalapi.com/profile-data"
	DefaultTimeout  = 30 * time.Second

	contentType = "application/json"
	userAgent   = "spigell/adherence-scorer"
	// Limit for response bodies written to debug logs.
	logBodyLimit = 300
)

type Client struct {
	logger     *zap.Logger
	apiKey     string
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
}

// Response is a decoded reply of the service. Bodies that are not JSON objects
// are kept as {"raw_text": <body>}.
type Response struct {
	StatusCode int
	Body       map[string]any
}

func New(logger *zap.Logger, apiKey string) *Client {
	return &Client{
		logger:     logger,
		apiKey:     apiKey,
		Endpoint:   DefaultEndpoint,
		Timeout:    DefaultTimeout,
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
	}
}

// CreateJob starts a lookup for identifier, which may be a bare slug or a profile URL.
func (c *Client) CreateJob(ctx context.Context, identifier string) (*Response, error) {
	return c.post(ctx, "create", map[string]any{"profile_name": identifier})
}

// Poll asks for the state of a lookup created before. requestID is sent back
// exactly as the service returned it, text or number.
func (c *Client) Poll(ctx context.Context, requestID any) (*Response, error) {
	return c.post(ctx, "poll", map[string]any{"request_id": requestID})
}

func (c *Client) post(ctx context.Context, kind string, payload map[string]any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domainerrors.Internal("encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, domainerrors.Internal("build request", err)
	}

	req = c.setHeaders(req)

	resp, err := c.request(req)
	if err != nil {
		metrics.ObserveAPIRequest(kind, 0)
		return nil, domainerrors.Transport(fmt.Sprintf("%s request failed", kind), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveAPIRequest(kind, 0)
		return nil, domainerrors.Transport(fmt.Sprintf("read %s response", kind), err)
	}

	metrics.ObserveAPIRequest(kind, resp.StatusCode)
	c.logger.Debug("got response from lookup API",
		zap.String("kind", kind),
		zap.Int("status", resp.StatusCode),
		zap.String("body", utils.TruncateForLog(string(data), logBodyLimit)),
	)

	return &Response{StatusCode: resp.StatusCode, Body: parseBody(data)}, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("User-Agent", c.UserAgent)

	return req
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func parseBody(data []byte) map[string]any {
	var body map[string]any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil || dec.More() {
		return map[string]any{"raw_text": string(data)}
	}
	return body
}

// Data returns the data object of the body, or nil when there is none.
func (r *Response) Data() map[string]any {
	if r == nil {
		return nil
	}
	data, _ := r.Body["data"].(map[string]any)
	return data
}

// RequestID returns data.request_id as it was received, or nil when it is
// missing or blank. Numbers keep their JSON form.
func (r *Response) RequestID() any {
	switch id := r.Data()["request_id"].(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return nil
		}
		return id
	case json.Number:
		return id
	case float64:
		return json.Number(strconv.FormatFloat(id, 'f', -1, 64))
	default:
		return nil
	}
}
