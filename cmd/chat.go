package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatstream/internal/client"
	"chatstream/internal/config"
	"chatstream/internal/models"
	"chatstream/internal/store"
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive streaming chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	profile, err := cfg.Resolve(flagProfile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	controller := client.New(newStreamingHTTPClient())
	conversations := store.NewMemoryStore()
	conversationID := uuid.NewString()

	var history []models.ChatMessage

	fmt.Printf("Chatting with %s at %s (type 'exit' to quit)\n\n", profile.Model, profile.Endpoint)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" {
			break
		}

		reply, interrupted, err := runTurn(ctx, controller, profile.RequestConfig(history), input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if reply == "" {
				continue
			}
			// Keep the partial transcript rather than discarding it.
			interrupted = true
		}

		history = append(history, models.NewTextMessage(models.RoleUser, input))
		assistant := models.NewTextMessage(models.RoleAssistant, reply)
		assistant.IsError = interrupted
		history = append(history, assistant)

		if err := conversations.Upsert(ctx, store.Conversation{
			ID:           conversationID,
			Model:        profile.Model,
			SystemPrompt: profile.SystemPrompt,
			Language:     profile.Language,
			Messages:     history,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record conversation: %v\n", err)
		}

		if interrupted {
			// Ctrl-C interrupted the stream, not the session.
			if ctx.Err() != nil {
				return nil
			}
		}
	}
	return scanner.Err()
}

// runTurn streams one assistant reply to stdout. Cancellation via the
// command context preserves the partial transcript with an interruption
// marker.
func runTurn(ctx context.Context, controller *client.Controller, cfg models.RequestConfig, input string) (reply string, interrupted bool, err error) {
	stream, err := controller.Start(ctx, cfg, input)
	if err != nil {
		return "", false, err
	}

	fmt.Print("\nAssistant: ")
	for {
		select {
		case <-ctx.Done():
			stream.Cancel()
			for range stream.Deltas() {
			}
			fmt.Printf("\n%s\n\n", client.InterruptedMarker)
			return stream.Text() + "\n" + client.InterruptedMarker, true, nil
		case delta, ok := <-stream.Deltas():
			if !ok {
				fmt.Print("\n\n")
				return stream.Text(), false, stream.Err()
			}
			if delta.Err != nil {
				fmt.Print("\n\n")
				return stream.Text(), false, delta.Err
			}
			fmt.Print(delta.Text)
		}
	}
}

// newStreamingHTTPClient builds a client without an overall timeout so
// long streams are not cut off; the dial and idle limits still apply.
func newStreamingHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}
