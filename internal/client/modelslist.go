package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatstream/internal/endpoint"
	"chatstream/internal/models"
)

const maxModelsBodyBytes = 1 << 20

// ListModels fetches the model identifiers an endpoint advertises. The
// response shape varies by provider: OpenAI's {"data":[{"id":...}]}, the
// {"models":[{"name":...}]} variant, and bare string arrays are all
// accepted.
func (c *Controller) ListModels(ctx context.Context, cfg models.RequestConfig) ([]string, error) {
	url, err := endpoint.Models(cfg.EndpointURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("construct models request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	if token := strings.TrimSpace(cfg.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxModelsBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}
	return parseModelList(body)
}

func parseModelList(body []byte) ([]string, error) {
	var openaiShape struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &openaiShape); err == nil && len(openaiShape.Data) > 0 {
		ids := make([]string, 0, len(openaiShape.Data))
		for _, m := range openaiShape.Data {
			if m.ID != "" {
				ids = append(ids, m.ID)
			}
		}
		return ids, nil
	}

	var namedShape struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &namedShape); err == nil && len(namedShape.Models) > 0 {
		names := make([]string, 0, len(namedShape.Models))
		for _, m := range namedShape.Models {
			if m.Name != "" {
				names = append(names, m.Name)
			}
		}
		return names, nil
	}

	var bare []string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	return nil, fmt.Errorf("unrecognized models response: %s", strings.TrimSpace(string(body[:min(len(body), 200)])))
}
