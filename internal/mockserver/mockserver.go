// Package mockserver runs a local OpenAI-compatible provider for offline
// development and testing of the streaming client. It streams canned
// replies over SSE, answers non-streaming completions, and lists models.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// FrameStyle selects how the mock streams its reply.
type FrameStyle string

const (
	// FrameChat streams OpenAI chat-delta frames.
	FrameChat FrameStyle = "chat"
	// FrameBare streams ad hoc {"content": ...} frames, the shape some
	// non-standard providers use.
	FrameBare FrameStyle = "bare"
	// FramePlain streams raw unwrapped text lines.
	FramePlain FrameStyle = "plain"
)

// Options configures the mock provider.
type Options struct {
	Port int
	// Reply is the canned assistant reply. Empty echoes the user message.
	Reply string
	// TokenDelay paces the stream, one delay per emitted word.
	TokenDelay time.Duration
	Style      FrameStyle
	Models     []string
}

// Server is a mock OpenAI-compatible provider.
type Server struct {
	opts    Options
	app     *echo.Echo
	address string
}

// New constructs the mock server with routing and middleware wired.
func New(opts Options) (*Server, error) {
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("port must be a valid TCP port, got %d", opts.Port)
	}
	switch opts.Style {
	case "":
		opts.Style = FrameChat
	case FrameChat, FrameBare, FramePlain:
	default:
		return nil, fmt.Errorf("unknown frame style %q", opts.Style)
	}
	if len(opts.Models) == 0 {
		opts.Models = []string{"mock-gpt", "mock-gpt-mini"}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	}))

	srv := &Server{
		opts:    opts,
		app:     e,
		address: fmt.Sprintf(":%d", opts.Port),
	}
	srv.registerRoutes()
	return srv, nil
}

// Handler exposes the underlying handler for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting mock provider", "addr", s.address, "style", s.opts.Style)

	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("mock provider shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.GET("/v1/models", s.handleModels)
	s.app.POST("/v1/chat/completions", s.handleChatCompletions)
	s.app.POST("/v1/completions", s.handleCompletions)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(c echo.Context) error {
	type model struct {
		ID string `json:"id"`
	}
	list := make([]model, 0, len(s.opts.Models))
	for _, id := range s.opts.Models {
		list = append(list, model{ID: id})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": list})
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

func (s *Server) handleChatCompletions(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON payload")
	}

	reply := s.replyFor(lastUserContent(req))
	if !req.Stream {
		return c.JSON(http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}
	return s.streamReply(c, reply)
}

func (s *Server) handleCompletions(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON payload")
	}

	reply := s.replyFor(req.Prompt)
	if !req.Stream {
		return c.JSON(http.StatusOK, map[string]any{
			"choices": []map[string]any{{"text": reply}},
		})
	}
	return s.streamReply(c, reply)
}

func (s *Server) replyFor(input string) string {
	if s.opts.Reply != "" {
		return s.opts.Reply
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return "Hello from the mock provider."
	}
	return "You said: " + input
}

func lastUserContent(req chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return req.Prompt
}

// streamReply writes the reply word by word in the configured frame style,
// terminated by the [DONE] sentinel where the style uses one.
func (s *Server) streamReply(c echo.Context, reply string) error {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return badRequest(c, "server does not support streaming responses")
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		if err := s.writeFrame(writer, word); err != nil {
			return err
		}
		flusher.Flush()
		if s.opts.TokenDelay > 0 {
			time.Sleep(s.opts.TokenDelay)
		}
	}

	if s.opts.Style != FramePlain {
		if _, err := fmt.Fprint(writer, "data: [DONE]\n\n"); err != nil {
			return fmt.Errorf("write terminal frame: %w", err)
		}
		flusher.Flush()
	}
	return nil
}

func (s *Server) writeFrame(w http.ResponseWriter, word string) error {
	switch s.opts.Style {
	case FramePlain:
		_, err := fmt.Fprintf(w, "%s\n", strings.TrimRight(word, " "))
		return err
	case FrameBare:
		payload, err := json.Marshal(map[string]string{"content": word})
		if err != nil {
			return fmt.Errorf("marshal frame: %w", err)
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
		return err
	default:
		frame := map[string]any{
			"choices": []map[string]any{
				{"delta": map[string]string{"content": word}},
			},
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshal frame: %w", err)
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
		return err
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}
