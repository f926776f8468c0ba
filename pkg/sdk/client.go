package autorag

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
)

const (
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to an autorag server.
type Client struct {
	base      string
	http      *http.Client
	timeout   time.Duration
	userAgent string
	obs       *observer
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("autorag: invalid base URL %q", baseURL)
	}

	cfg := &clientConfig{timeout: defaultTimeout, userAgent: "autorag-go"}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      strings.TrimRight(u.String(), "/"),
		http:      cfg.httpClient,
		timeout:   cfg.timeout,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

type askRequest struct {
	Query    string    `json:"query"`
	Messages []Message `json:"messages,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Ask returns a complete answer for query. history is the prior conversation, oldest first.
func (c *Client) Ask(ctx context.Context, query string, history ...Message) (_ *Answer, err error) {
	defer func(start time.Time) { c.obs.observe("ask", start, err) }(time.Now())

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/rag", askRequest{Query: query, Messages: history}, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	var ans Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, fmt.Errorf("autorag: decode answer: %w", err)
	}
	return &ans, nil
}

// Stream asks for a streamed answer and calls fn for every frame in order.
// A non-nil error from fn stops reading and is returned as is.
// An error frame is delivered to fn and then reported as *StreamError.
// Stream is not bounded by WithTimeout; use ctx to cancel it.
func (c *Client) Stream(ctx context.Context, query string, history []Message, fn func(Event) error) (err error) {
	defer func(start time.Time) { c.obs.observe("stream", start, err) }(time.Now())

	resp, err := c.do(ctx, http.MethodPost, "/api/rag/stream", askRequest{Query: query, Messages: history}, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("autorag: unexpected stream content type %q", ct)
	}

	var failed *StreamError
	err = readEvents(resp.Body, func(ev Event) error {
		if ev.Kind == EventError && failed == nil {
			failed = &StreamError{Message: ev.Error}
		}
		return fn(ev)
	})
	if err != nil {
		return err
	}
	if failed != nil {
		return failed
	}
	return nil
}

// CarImage resolves the display image of a car.
func (c *Client) CarImage(ctx context.Context, carID string) (_ *CarImage, err error) {
	defer func(start time.Time) { c.obs.observe("car_image", start, err) }(time.Now())

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/cars/"+url.PathEscape(carID)+"/image", nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	var img CarImage
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return nil, fmt.Errorf("autorag: decode image: %w", err)
	}
	return &img, nil
}

// Health fetches the component report. A degraded server answers 503 with a
// report, which is returned without an error; check HealthReport.Healthy.
func (c *Client) Health(ctx context.Context) (_ *HealthReport, err error) {
	defer func(start time.Time) { c.obs.observe("health", start, err) }(time.Now())

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/health", nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, readAPIError(resp)
	}
	var rep HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: "unavailable"}
		}
		return nil, fmt.Errorf("autorag: decode health: %w", err)
	}
	return &rep, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("autorag: encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("autorag: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("autorag: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var eb errorBody
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// IsAPIError reports whether err carries an HTTP status from the server.
func IsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	ok := errors.As(err, &ae)
	return ae, ok
}
