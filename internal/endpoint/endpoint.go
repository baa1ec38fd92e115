// Package endpoint normalizes user-supplied LLM base URLs. Configured
// endpoints arrive in every shape: bare hosts, hosts with /v1, full
// completion paths. One canonical algorithm lives here so every call site
// resolves the same URL for the same input.
package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	chatSuffix        = "/v1/chat/completions"
	completionsSuffix = "/v1/completions"
	modelsSuffix      = "/v1/models"
	versionSegment    = "/v1"
)

// ErrEmptyEndpoint indicates a blank endpoint URL.
var ErrEmptyEndpoint = errors.New("endpoint url must not be empty")

// Completions resolves the completion endpoint for a base URL. Chat selects
// the chat-completions path, otherwise the legacy completions path. A URL
// that already carries the expected suffix is returned as-is; a dangling
// "/v1" base gets only the remainder appended.
func Completions(raw string, chat bool) (string, error) {
	base, err := normalizeBase(raw)
	if err != nil {
		return "", err
	}

	suffix := completionsSuffix
	if chat {
		suffix = chatSuffix
	}
	return appendSuffix(base, suffix), nil
}

// Models resolves the model-listing endpoint for a base URL.
func Models(raw string) (string, error) {
	base, err := normalizeBase(raw)
	if err != nil {
		return "", err
	}

	// A configured completion path still lists models at its /v1 root.
	for _, suffix := range []string{chatSuffix, completionsSuffix} {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, strings.TrimPrefix(suffix, versionSegment))
			break
		}
	}
	return appendSuffix(base, modelsSuffix), nil
}

func normalizeBase(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyEndpoint
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse endpoint url %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("endpoint url %q has no host", raw)
	}

	return strings.TrimRight(trimmed, "/"), nil
}

func appendSuffix(base, suffix string) string {
	if strings.HasSuffix(base, suffix) {
		return base
	}
	if strings.HasSuffix(base, versionSegment) {
		return base + strings.TrimPrefix(suffix, versionSegment)
	}
	return base + suffix
}
