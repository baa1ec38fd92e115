// Package sse decodes incremental chat-completion streams. The wire format
// is only loosely standardized across providers: some send OpenAI-style
// "data: {json}" frames, some send ad hoc JSON shapes, some stream raw
// text. The decoder tries an ordered list of parser strategies per line and
// silently drops frames no strategy recognizes rather than failing the
// whole stream.
package sse

import (
	"encoding/json"
	"strings"

	"chatstream/internal/models"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// chunkEnvelope is the OpenAI chat-completion streaming frame. Content is a
// pointer so an absent field is distinguishable from an empty string.
type chunkEnvelope struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	Text         string     `json:"text"`
	Content      string     `json:"content"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content *string `json:"content"`
}

// Decoder consumes raw body chunks from one streaming HTTP response and
// produces text deltas. A decoder is tied to a single response lifetime:
// once it has seen the terminal sentinel it ignores further input, and it
// cannot be restarted.
type Decoder struct {
	done bool
}

// NewDecoder returns a decoder ready to consume one response body.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Done reports whether the decoder has seen the stream terminator.
func (d *Decoder) Done() bool {
	return d.done
}

// Feed decodes one arriving chunk into zero or more deltas, in wire order.
// Framed payloads must not be split across chunks; callers reading from a
// network stream should hand Feed whole lines. After the terminal delta has
// been produced, Feed returns nil.
func (d *Decoder) Feed(chunk []byte) []models.StreamDelta {
	if d.done || len(chunk) == 0 {
		return nil
	}

	var deltas []models.StreamDelta
	for _, line := range strings.Split(string(chunk), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if delta, ok := d.decodeLine(line); ok {
			deltas = append(deltas, delta)
			if delta.Final {
				d.done = true
				break
			}
		}
	}
	return deltas
}

// decodeLine applies the parser strategies to a single line.
func (d *Decoder) decodeLine(line string) (models.StreamDelta, bool) {
	trimmed := strings.TrimRight(line, "\r")

	if payload, ok := strings.CutPrefix(trimmed, dataPrefix); ok {
		if strings.TrimSpace(payload) == doneSentinel {
			return models.StreamDelta{Final: true}, true
		}
		return decodeJSONPayload(payload)
	}

	if strings.HasPrefix(strings.TrimSpace(trimmed), "{") {
		return decodeJSONPayload(trimmed)
	}

	// Raw plain text: some providers stream unwrapped content.
	return models.StreamDelta{Text: trimmed}, true
}

// decodeJSONPayload tries the known JSON delta shapes in priority order.
// Unrecognized but valid JSON is dropped without error.
func decodeJSONPayload(payload string) (models.StreamDelta, bool) {
	var envelope chunkEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err == nil && len(envelope.Choices) > 0 {
		choice := envelope.Choices[0]
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			return models.StreamDelta{Text: *choice.Delta.Content}, true
		}
		if choice.Text != "" {
			return models.StreamDelta{Text: choice.Text}, true
		}
		if choice.Content != "" {
			return models.StreamDelta{Text: choice.Content}, true
		}
		// finish_reason alone carries no text; the terminal frame or EOF
		// still ends the stream.
		return models.StreamDelta{}, false
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return models.StreamDelta{}, false
	}
	if text, ok := stringField(generic, "content"); ok && text != "" {
		return models.StreamDelta{Text: text}, true
	}
	if text, ok := stringField(generic, "text"); ok && text != "" {
		return models.StreamDelta{Text: text}, true
	}
	return models.StreamDelta{}, false
}

func stringField(obj map[string]any, key string) (string, bool) {
	value, ok := obj[key]
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}
