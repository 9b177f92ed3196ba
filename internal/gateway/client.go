package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"camrent/internal/domain"
	"camrent/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// Client is the single authenticated HTTP gateway to the rental backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger
	now        func() time.Time
}

// New constructs a gateway. timeout is the transport timeout; 0 leaves it to
// the server and the caller's context.
func New(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// DoJSON sends body as JSON (when non-nil) and decodes a 2xx response into out
// (when non-nil).
func (c *Client) DoJSON(ctx context.Context, cred domain.Credential, method, path string, query url.Values, body, out any) error {
	if err := CheckCredential(cred, c.now()); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, cred, method, path, query, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// GetBinary fetches a non-JSON payload such as a contract PDF.
func (c *Client) GetBinary(ctx context.Context, cred domain.Credential, path string) (*domain.BinaryResponse, error) {
	if err := CheckCredential(cred, c.now()); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, cred, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf, application/octet-stream")

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindNetworkUnavailable, Op: domain.OpFrom(ctx, "gateway"), Message: "response body interrupted", Err: err}
	}
	return &domain.BinaryResponse{
		Data:               data,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, cred domain.Credential, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cred.Token))
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// do executes req and converts transport failures and non-2xx answers into
// workflow errors. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	op := domain.OpFrom(ctx, req.Method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(op, string(domain.KindNetworkUnavailable), time.Since(start))
		c.logger.Warn().Err(err).Str("op", op).Str("request_id", req.Header.Get("X-Request-ID")).Msg("backend unreachable")
		return nil, &domain.Error{Kind: domain.KindNetworkUnavailable, Op: op, Message: "backend unreachable", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		rerr := remoteError(op, resp)
		metrics.ObserveBackend(op, string(domain.KindRemoteRejected), time.Since(start))
		c.logger.Info().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("request_id", req.Header.Get("X-Request-ID")).
			Str("message", rerr.Message).
			Msg("backend rejected request")
		return nil, rerr
	}

	metrics.ObserveBackend(op, "ok", time.Since(start))
	c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("backend call")
	return resp, nil
}

// remoteError extracts the backend's message: "message" first, then "title"
// (ASP.NET problem details), then a generic fallback.
func remoteError(op string, resp *http.Response) *domain.Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var shape struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	msg := ""
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &shape) == nil {
		msg = strings.TrimSpace(shape.Message)
		if msg == "" {
			msg = strings.TrimSpace(shape.Title)
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return &domain.Error{Kind: domain.KindRemoteRejected, Op: op, Message: msg, StatusCode: resp.StatusCode}
}
