// Package client runs streaming chat-completion requests. A Controller
// owns at most one in-flight request at a time and hands callers a Stream:
// an ordered channel of text deltas with cooperative cancellation, a
// no-activity watchdog, and a running transcript buffer.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatstream/internal/contextwindow"
	"chatstream/internal/endpoint"
	"chatstream/internal/models"
	"chatstream/internal/sse"
	"chatstream/internal/summarize"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "chatstream/0.1"

	// defaultWatchdogTimeout bounds how long a request may sit without a
	// single delta before it is failed.
	defaultWatchdogTimeout = 30 * time.Second

	readBufferSize    = 4096
	maxErrorBodyBytes = 64 * 1024
	deltaBuffer       = 32
)

// InterruptedMarker is appended by callers to transcripts whose stream was
// cancelled before completion.
const InterruptedMarker = "[Response interrupted]"

var (
	// ErrStreamInFlight indicates Start was called while a previous stream
	// is still active. Callers must Cancel the active stream first.
	ErrStreamInFlight = errors.New("a stream is already in flight")

	// ErrCancelled marks the terminal delta of a caller-cancelled stream.
	ErrCancelled = errors.New("stream cancelled")

	// ErrWatchdogTimeout marks the terminal delta of a stream that produced
	// no activity before the watchdog deadline.
	ErrWatchdogTimeout = errors.New("connection timed out waiting for a response")
)

// Preparer fits conversation history into the model's context budget.
type Preparer interface {
	Prepare(ctx context.Context, cfg models.RequestConfig) ([]models.ChatMessage, bool)
}

// Controller issues streaming chat requests. One logical request is in
// flight per controller; starting a second while one is active is rejected.
type Controller struct {
	httpClient      *http.Client
	preparer        Preparer
	watchdogTimeout time.Duration

	mu     sync.Mutex
	active *Stream
}

// New constructs a controller with the default context-window manager and
// summarizer sharing the given HTTP client. The client should not carry an
// overall timeout: streams may legitimately run for minutes.
func New(httpClient *http.Client) *Controller {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Controller{
		httpClient:      httpClient,
		preparer:        contextwindow.NewManager(summarize.New(httpClient)),
		watchdogTimeout: defaultWatchdogTimeout,
	}
}

// NewWithPreparer constructs a controller with a custom history preparer.
func NewWithPreparer(httpClient *http.Client, preparer Preparer) *Controller {
	c := New(httpClient)
	c.preparer = preparer
	return c
}

// SetWatchdogTimeout overrides the no-activity deadline. Must be called
// before Start.
func (c *Controller) SetWatchdogTimeout(d time.Duration) {
	if d > 0 {
		c.watchdogTimeout = d
	}
}

// Start begins one streaming request for the given user message.
// Configuration problems (bad endpoint, blank model) are returned
// synchronously before any network activity. The returned Stream delivers
// deltas in arrival order and closes after its terminal delta.
func (c *Controller) Start(ctx context.Context, cfg models.RequestConfig, message string) (*Stream, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model must be provided")
	}
	url, err := endpoint.Completions(cfg.EndpointURL, cfg.ChatEndpoint)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.active != nil && !c.active.State().Terminal() {
		c.mu.Unlock()
		return nil, ErrStreamInFlight
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream := &Stream{
		deltas: make(chan models.StreamDelta, deltaBuffer),
		cancel: cancel,
		state:  StateSending,
	}
	stream.watchdog = time.AfterFunc(c.watchdogTimeout, stream.onWatchdog)
	c.active = stream
	c.mu.Unlock()

	go c.run(streamCtx, stream, cfg, url, message)
	return stream, nil
}

// run drives one request to a terminal state. It is the only goroutine
// that sends on or closes the stream's channel.
func (c *Controller) run(ctx context.Context, s *Stream, cfg models.RequestConfig, url, message string) {
	defer s.watchdog.Stop()
	defer close(s.deltas)
	defer s.cancel()

	prepared, compressed := c.preparer.Prepare(ctx, cfg)
	if compressed {
		slog.Info("conversation history compressed to fit context window", "model", cfg.Model)
	}

	req, err := c.newRequest(ctx, cfg, url, prepared, message)
	if err != nil {
		c.fail(ctx, s, err)
		return
	}

	slog.Debug("sending streaming request", "url", url, "model", cfg.Model, "chat", cfg.ChatEndpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(ctx, s, fmt.Errorf("request failed: %w", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.fail(ctx, s, upstreamError(resp))
		return
	}

	s.transition(StateSending, StateStreaming)
	c.consume(ctx, s, resp.Body)
}

// consume reads the body line by line, decodes it, and forwards deltas.
// Reading whole lines keeps frames intact when they exceed the read buffer
// or arrive split across packets; a trailing unterminated line is still
// surrendered at EOF for providers that stream bare text.
func (c *Controller) consume(ctx context.Context, s *Stream, body io.Reader) {
	decoder := sse.NewDecoder()
	reader := bufio.NewReaderSize(body, readBufferSize)

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			for _, delta := range decoder.Feed([]byte(line)) {
				if !s.emit(ctx, delta) {
					// Cancelled, or the watchdog won the race; deliver the
					// pending terminal delta if one is owed.
					c.fail(ctx, s, nil)
					return
				}
				if delta.Final {
					s.finish(StateCompleted, nil)
					return
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && decoder.Done() {
				s.finish(StateCompleted, nil)
				return
			}
			if errors.Is(readErr, io.EOF) {
				// Provider closed without a terminal frame; synthesize one.
				s.emit(ctx, models.StreamDelta{Final: true})
				s.finish(StateCompleted, nil)
				return
			}
			c.fail(ctx, s, fmt.Errorf("read stream: %w", readErr))
			return
		}
	}
}

// fail transitions to Failed and delivers exactly one terminal error
// delta, unless another terminal transition already won.
func (c *Controller) fail(ctx context.Context, s *Stream, err error) {
	terminalErr := s.resolveFailure(err)
	if terminalErr == nil {
		// Cancelled, or a terminal transition already delivered its delta.
		return
	}
	slog.Warn("stream failed", "err", terminalErr)
	s.emit(ctx, models.StreamDelta{Final: true, Err: terminalErr})
}

func (c *Controller) newRequest(ctx context.Context, cfg models.RequestConfig, url string, prepared []models.ChatMessage, message string) (*http.Request, error) {
	var payload any
	if cfg.ChatEndpoint {
		payload = buildChatPayload(cfg, prepared, message)
	} else {
		payload = buildCompletionPayload(cfg, prepared, message)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", userAgent)
	if token := strings.TrimSpace(cfg.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// upstreamError surfaces the provider's own error message where the body
// carries one, otherwise the raw status and body.
func upstreamError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("upstream status %d and unreadable body: %w", resp.StatusCode, err)
	}

	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Errorf("upstream error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	return fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
