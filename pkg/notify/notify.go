// Package notify sends degradation alerts: a message when a request had to fall
// back to the free tier or to platform credit because no user-held key could
// serve it. sending is best-effort and never blocks or fails resolution.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnDegrade     bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	WebhookURLs   []string
}

// Service orchestrates sending notifications through configured channels.
type Service struct {
	channels  []channel // paired notifier + destination
	onDegrade bool
	timeoutMs int
	hostname  string // resolved once at creation via os.Hostname()
	log       logger
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // true for channels that use HTML parse mode (e.g., telegram)
}

// logger interface for dependency injection.
type logger interface {
	Print(format string, args ...any)
}

// Degradation describes one resolution that landed below the user's own keys.
type Degradation struct {
	Kind     string `json:"kind"`     // "skill" or "model"
	Subject  string `json:"subject"`  // skill id or "chat"
	Served   string `json:"served"`   // what actually serves the request
	Strategy string `json:"strategy"` // strategy in effect, "" for skills
	Credits  bool   `json:"credits"`  // true when platform credits are deducted
}

// New creates a notification Service from the given Params.
// returns nil, nil if no channels are configured, enabling callers to skip nil
// checks via nil-safe Send. misconfigured channels are an error.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil,nil signals "no channels configured" — callers use nil-safe Send
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onDegrade: p.OnDegrade,
		timeoutMs: p.TimeoutMs,
		hostname:  hostname,
		log:       log,
	}
	if svc.timeoutMs <= 0 {
		svc.timeoutMs = 5000
	}

	for _, ch := range p.Channels {
		switch strings.TrimSpace(strings.ToLower(ch)) {
		case "telegram":
			if p.TelegramToken == "" {
				return nil, errors.New("telegram channel: telegram_token is required")
			}
			if p.TelegramChat == "" {
				return nil, errors.New("telegram channel: telegram_chat is required")
			}
			c, cErr := telegramChannelMaker(p)
			if cErr != nil {
				// telegram init makes a live API call to verify the bot token;
				// if the network/API is unavailable, skip the channel instead of
				// blocking startup — notifications are best-effort.
				// redact the token from the error to avoid leaking it in logs
				errMsg := strings.ReplaceAll(cErr.Error(), p.TelegramToken, "[REDACTED]")
				log.Print("[WARN] telegram channel disabled: %s", errMsg)
				continue
			}
			svc.channels = append(svc.channels, c)
		case "slack":
			c, cErr := makeSlackChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("slack channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "webhook":
			chs, cErr := makeWebhookChannels(p)
			if cErr != nil {
				return nil, fmt.Errorf("webhook channel: %w", cErr)
			}
			svc.channels = append(svc.channels, chs...)
		default:
			return nil, fmt.Errorf("unknown notification channel: %q", ch)
		}
	}

	if len(svc.channels) == 0 {
		log.Print("[WARN] all notification channels were disabled due to initialization errors")
	}

	return svc, nil
}

// Send sends a degradation notification. nil-safe on receiver — callers don't
// need nil checks. errors are logged but never returned (best-effort).
func (s *Service) Send(ctx context.Context, d Degradation) {
	if s == nil || !s.onDegrade {
		return
	}

	msg := s.formatMessage(d)

	timeout := time.Duration(s.timeoutMs) * time.Millisecond
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Print("[WARN] notification failed for %s: %v", ch.notifier, err)
		}
	}
}

// formatMessage creates a plain text notification message from the degradation.
func (s *Service) formatMessage(d Degradation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "resolve degraded on %s\n\n", s.hostname)
	fmt.Fprintf(&b, "request:  %s (%s)\n", d.Subject, d.Kind)
	fmt.Fprintf(&b, "served:   %s\n", d.Served)
	if d.Strategy != "" {
		fmt.Fprintf(&b, "strategy: %s\n", d.Strategy)
	}
	if d.Credits {
		b.WriteString("billing:  platform credits are being deducted\n")
	} else {
		b.WriteString("billing:  no credits deducted\n")
	}

	return b.String()
}

// telegramChannelMaker creates a telegram notifier and destination.
// overridden in tests to avoid live API calls.
var telegramChannelMaker = makeTelegramChannel

// makeTelegramChannel creates a telegram notifier and destination.
// caller must validate that TelegramToken and TelegramChat are non-empty.
func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}

	dest := fmt.Sprintf("telegram:%s?parseMode=HTML", p.TelegramChat)
	return channel{notifier: tg, dest: dest, htmlEscape: true}, nil
}

// makeSlackChannel creates a slack notifier and destination.
func makeSlackChannel(p Params) (channel, error) {
	if p.SlackToken == "" {
		return channel{}, errors.New("slack_token is required")
	}
	if p.SlackChannel == "" {
		return channel{}, errors.New("slack_channel is required")
	}

	sl := ntfy.NewSlack(p.SlackToken)
	return channel{notifier: sl, dest: "slack:" + p.SlackChannel}, nil
}

// makeWebhookChannels creates webhook notifiers for each configured URL.
func makeWebhookChannels(p Params) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("webhook_urls is required")
	}

	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	var channels []channel
	for _, u := range p.WebhookURLs {
		channels = append(channels, channel{notifier: wh, dest: u})
	}
	return channels, nil
}
