// Package web provides the diagnostics dashboard: an HTTP server streaming
// resolution decisions, key checks and catalog reloads over SSE, plus a JSON
// status snapshot for tooling.
package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumora-ai/resolve/pkg/progress"
)

// EventType represents the type of event being streamed.
type EventType string

// event type constants for SSE streaming.
const (
	EventTypeResolution EventType = "resolution" // one resolution decision
	EventTypeKeyCheck   EventType = "key-check"  // credential validity check
	EventTypeCatalog    EventType = "catalog"    // catalog reloaded
	EventTypeWarn       EventType = "warn"       // warning message
)

// Event represents a single event streamed to dashboard clients.
type Event struct {
	Type      EventType      `json:"type"`
	Phase     progress.Phase `json:"phase"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewResolutionEvent creates a resolution event, colored by the serving tier.
func NewResolutionEvent(phase progress.Phase, text string) Event {
	return Event{
		Type:      EventTypeResolution,
		Phase:     phase,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewKeyCheckEvent creates a credential check event.
func NewKeyCheckEvent(text string) Event {
	return Event{
		Type:      EventTypeKeyCheck,
		Phase:     progress.PhaseSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewCatalogEvent creates a catalog reload event.
func NewCatalogEvent(text string) Event {
	return Event{
		Type:      EventTypeCatalog,
		Phase:     progress.PhaseSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewWarnEvent creates a warning event.
func NewWarnEvent(text string) Event {
	return Event{
		Type:      EventTypeWarn,
		Phase:     progress.PhaseSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// JSON returns the event as JSON bytes for SSE streaming.
func (e Event) JSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
