package contextwindow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstream/internal/models"
)

type fakeSummarizer struct {
	summary string
	calls   int
	saw     []models.ChatMessage
}

func (f *fakeSummarizer) Summarize(_ context.Context, messages []models.ChatMessage, _ models.RequestConfig) string {
	f.calls++
	f.saw = messages
	return f.summary
}

func textMessages(n int, textLen int) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.NewTextMessage(role, strings.Repeat("x", textLen)))
	}
	return msgs
}

func TestPrepareWithinBudgetPassesThrough(t *testing.T) {
	t.Parallel()

	summarizer := &fakeSummarizer{summary: "never used"}
	manager := NewManager(summarizer)

	history := textMessages(6, 20)
	cfg := models.RequestConfig{Model: "gpt-4", SystemPrompt: "be helpful", History: history}

	got, compressed := manager.Prepare(context.Background(), cfg)
	assert.False(t, compressed)
	assert.Equal(t, history, got)
	assert.Zero(t, summarizer.calls, "summarizer must not run when history fits")
}

func TestPrepareEmptyHistory(t *testing.T) {
	t.Parallel()

	summarizer := &fakeSummarizer{}
	manager := NewManager(summarizer)

	got, compressed := manager.Prepare(context.Background(), models.RequestConfig{Model: "gpt-4"})
	assert.Empty(t, got)
	assert.False(t, compressed)
	assert.Zero(t, summarizer.calls)
}

func TestPrepareCompressesMiddle(t *testing.T) {
	t.Parallel()

	summarizer := &fakeSummarizer{summary: "older chat"}
	manager := NewManager(summarizer)

	// 20 messages of ~1000 tokens each blows through the gpt-3.5 budget.
	history := textMessages(20, 4000)
	cfg := models.RequestConfig{Model: "gpt-3.5-turbo", History: history}

	got, compressed := manager.Prepare(context.Background(), cfg)
	require.True(t, compressed)
	require.Len(t, got, 3+1+5)

	assert.Equal(t, history[:3], got[:3])
	assert.Equal(t, history[15:], got[4:])

	summary := got[3]
	assert.Equal(t, models.RoleAssistant, summary.Role)
	assert.Equal(t, "[Summary of previous conversation: older chat]", summary.Text())

	assert.Equal(t, 1, summarizer.calls)
	assert.Equal(t, history[3:15], summarizer.saw)
}

func TestPrepareShortOverBudgetHistoryKeepsAll(t *testing.T) {
	t.Parallel()

	summarizer := &fakeSummarizer{summary: "unused"}
	manager := NewManager(summarizer)

	// 6 oversized messages: head 3 + tail 3 covers everything, no middle.
	history := textMessages(6, 8000)
	cfg := models.RequestConfig{Model: "gpt-3.5-turbo", History: history}

	got, compressed := manager.Prepare(context.Background(), cfg)
	require.True(t, compressed)
	assert.Equal(t, history, got)
	assert.Zero(t, summarizer.calls, "no middle segment means no summary call")
}

func TestPrepareLocalFallbackWithoutSummarizer(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	history := textMessages(20, 4000)
	cfg := models.RequestConfig{Model: "gpt-3.5-turbo", History: history}

	got, compressed := manager.Prepare(context.Background(), cfg)
	require.True(t, compressed)

	summary := got[3].Text()
	assert.True(t, strings.HasPrefix(summary, "[Summary of previous conversation: "))
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(summary, "[Summary of previous conversation: "), "]"), "\n")
	for _, line := range lines {
		assert.LessOrEqual(t, len([]rune(line)), 100)
	}
}

func TestPrepareImageMessagesFlatCost(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil)

	// Five images at the flat image cost exceed the unknown-model budget of
	// 3096 usable tokens even though they carry no text.
	history := make([]models.ChatMessage, 0, 5)
	for i := 0; i < 5; i++ {
		history = append(history, models.NewImageMessage(models.RoleUser, []byte{1, 2, 3}))
	}
	cfg := models.RequestConfig{Model: "unknown-model", History: history}

	_, compressed := manager.Prepare(context.Background(), cfg)
	assert.True(t, compressed)
}
