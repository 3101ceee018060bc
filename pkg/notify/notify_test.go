package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger collects log lines for assertions.
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) Print(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *testLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestNew_NoChannels(t *testing.T) {
	svc, err := New(Params{}, &testLogger{})
	require.NoError(t, err)
	assert.Nil(t, svc, "no channels means no service")

	// nil receiver Send is a safe no-op
	svc.Send(context.Background(), Degradation{Kind: "skill", Subject: "web-search"})
}

func TestNew_ChannelValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr string
	}{
		{
			name:    "telegram without token",
			params:  Params{Channels: []string{"telegram"}, TelegramChat: "c"},
			wantErr: "telegram_token is required",
		},
		{
			name:    "telegram without chat",
			params:  Params{Channels: []string{"telegram"}, TelegramToken: "t"},
			wantErr: "telegram_chat is required",
		},
		{
			name:    "slack without token",
			params:  Params{Channels: []string{"slack"}},
			wantErr: "slack_token is required",
		},
		{
			name:    "slack without channel",
			params:  Params{Channels: []string{"slack"}, SlackToken: "xoxb-1"},
			wantErr: "slack_channel is required",
		},
		{
			name:    "webhook without urls",
			params:  Params{Channels: []string{"webhook"}},
			wantErr: "webhook_urls is required",
		},
		{
			name:    "unknown channel",
			params:  Params{Channels: []string{"pager"}},
			wantErr: "unknown notification channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, &testLogger{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_SlackAndWebhook(t *testing.T) {
	svc, err := New(Params{
		Channels:     []string{"slack", "webhook"},
		SlackToken:   "xoxb-1",
		SlackChannel: "alerts",
		WebhookURLs:  []string{"https://example.com/a", "https://example.com/b"},
	}, &testLogger{})
	require.NoError(t, err)
	require.NotNil(t, svc)
	assert.Len(t, svc.channels, 3, "one slack channel plus one per webhook url")
	assert.Equal(t, 5000, svc.timeoutMs, "zero timeout falls back to default")
}

func TestNew_TelegramInitFailureSkipsChannel(t *testing.T) {
	orig := telegramChannelMaker
	defer func() { telegramChannelMaker = orig }()
	telegramChannelMaker = func(p Params) (channel, error) {
		return channel{}, errors.New("api check failed for secret-token-123")
	}

	log := &testLogger{}
	svc, err := New(Params{
		Channels:      []string{"telegram"},
		TelegramToken: "secret-token-123",
		TelegramChat:  "alerts",
	}, log)
	require.NoError(t, err, "telegram init failure disables the channel, never startup")
	require.NotNil(t, svc)
	assert.Empty(t, svc.channels)

	assert.Contains(t, log.joined(), "[REDACTED]")
	assert.NotContains(t, log.joined(), "secret-token-123", "token never leaks into logs")
}

func TestService_SendToWebhook(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, err := New(Params{
		Channels:    []string{"webhook"},
		OnDegrade:   true,
		TimeoutMs:   2000,
		WebhookURLs: []string{srv.URL},
	}, &testLogger{})
	require.NoError(t, err)
	require.NotNil(t, svc)

	svc.Send(context.Background(), Degradation{
		Kind:     "model",
		Subject:  "chat",
		Served:   "gemini/gemini-2.5-flash-thinking",
		Strategy: "cost-efficient",
		Credits:  true,
	})

	select {
	case body := <-received:
		assert.Contains(t, body, "resolve degraded on")
		assert.Contains(t, body, "chat (model)")
		assert.Contains(t, body, "gemini/gemini-2.5-flash-thinking")
		assert.Contains(t, body, "strategy: cost-efficient")
		assert.Contains(t, body, "platform credits are being deducted")
	default:
		t.Fatal("webhook not called")
	}
}

func TestService_SendSkippedWhenDegradeAlertsOff(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	svc, err := New(Params{
		Channels:    []string{"webhook"},
		OnDegrade:   false,
		WebhookURLs: []string{srv.URL},
	}, &testLogger{})
	require.NoError(t, err)

	svc.Send(context.Background(), Degradation{Kind: "skill", Subject: "web-search"})
	assert.False(t, called, "degradation alerts are opt-in")
}

func TestService_FormatMessage(t *testing.T) {
	svc := &Service{hostname: "host1"}

	t.Run("skill without strategy line", func(t *testing.T) {
		msg := svc.formatMessage(Degradation{
			Kind:    "skill",
			Subject: "web-search",
			Served:  "DuckDuckGo instant answers (no key required)",
		})
		assert.Contains(t, msg, "resolve degraded on host1")
		assert.Contains(t, msg, "web-search (skill)")
		assert.NotContains(t, msg, "strategy:")
		assert.Contains(t, msg, "no credits deducted")
	})

	t.Run("model with credits", func(t *testing.T) {
		msg := svc.formatMessage(Degradation{
			Kind:     "model",
			Subject:  "chat",
			Served:   "anthropic/claude-opus-4-6",
			Strategy: "max-performance",
			Credits:  true,
		})
		assert.Contains(t, msg, "strategy: max-performance")
		assert.Contains(t, msg, "platform credits are being deducted")
	})
}
