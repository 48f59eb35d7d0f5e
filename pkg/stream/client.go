package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nightshade/pkg/logging"

	"github.com/google/uuid"
)

const defaultReadSize = 4096

// Event is one step of a streamed reply. Text is always the cumulative
// decoded reply so far. The last event on a channel has Done set; Err is
// non-nil when the turn failed.
type Event struct {
	Text string
	Done bool
	Err  error
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned %s", e.Status)
}

// Client posts turns to the chat endpoint and streams the replies back.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	readSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds the whole request, body included. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the given /api/chat URL.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     logging.Discard(),
		readSize:   defaultReadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream sends req and returns a channel of reply events. Exactly one request
// is made. The channel is closed after the terminal event, or early if ctx is
// cancelled while nobody is receiving.
func (c *Client) Stream(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, 8)
	go c.run(ctx, req, ch)
	return ch
}

func (c *Client) run(ctx context.Context, req Request, ch chan<- Event) {
	defer close(ch)

	send := func(ev Event) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID)
	start := time.Now()

	fail := func(err error) {
		logger.Error("chat_stream_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		send(Event{Err: err, Done: true})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		fail(fmt.Errorf("encode chat request: %w", err))
		return
	}

	if logger.Enabled(ctx, logging.LevelTrace) {
		logger.Log(ctx, logging.LevelTrace, "chat_stream_request", "body", string(payload))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		fail(fmt.Errorf("build chat request: %w", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")
	httpReq.Header.Set("X-Request-Id", requestID)

	logger.Info("chat_stream_start",
		"endpoint", c.endpoint,
		"history_messages", len(req.History),
		"msg_chars", len(req.Msg),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		fail(fmt.Errorf("send chat request: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
		return
	}

	dec := NewDecoder()
	var acc strings.Builder
	buf := make([]byte, c.readSize)
	reads := 0

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			reads++
			acc.WriteString(dec.Decode(buf[:n]))
			if !send(Event{Text: acc.String()}) {
				logger.Debug("chat_stream_abandoned", "reads", reads)
				return
			}
		}

		if errors.Is(readErr, io.EOF) {
			if tail := dec.Flush(); tail != "" {
				acc.WriteString(tail)
				if !send(Event{Text: acc.String()}) {
					return
				}
			}
			logger.Info("chat_stream_done",
				"reads", reads,
				"reply_chars", acc.Len(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			send(Event{Text: acc.String(), Done: true})
			return
		}
		if readErr != nil {
			fail(fmt.Errorf("read chat response: %w", readErr))
			return
		}
	}
}
