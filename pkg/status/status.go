// Package status holds the latest resolution outcomes in a thread-safe holder.
// it is the single source of truth shared by the CLI, the web dashboard and the
// notification service.
package status

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lumora-ai/resolve/pkg/resolver"
)

// KeyStatus is the outcome of one credential check.
type KeyStatus struct {
	EnvVar    string    `json:"env_var"`
	Owner     string    `json:"owner"` // skill or provider id the key belongs to
	Valid     bool      `json:"valid"`
	CheckedAt time.Time `json:"checked_at"`
}

// SkillStatus is the latest fallback resolution for one skill.
type SkillStatus struct {
	Resolution resolver.FallbackResolution `json:"resolution"`
	ResolvedAt time.Time                   `json:"resolved_at"`
}

// ModelStatus is the latest chat model resolution.
type ModelStatus struct {
	Resolution resolver.ResolvedModel `json:"resolution"`
	ResolvedAt time.Time              `json:"resolved_at"`
}

// Report is a consistent snapshot of everything the holder knows.
type Report struct {
	Model  *ModelStatus           `json:"model,omitempty"`
	Skills map[string]SkillStatus `json:"skills,omitempty"`
	Keys   []KeyStatus            `json:"keys,omitempty"`
}

// JSON returns the report as JSON bytes.
func (r Report) JSON() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Holder stores the latest resolutions in a thread-safe way.
type Holder struct {
	mu       sync.RWMutex
	model    *ModelStatus
	skills   map[string]SkillStatus
	keys     []KeyStatus
	onChange func()
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{skills: make(map[string]SkillStatus)}
}

// OnChange registers a callback fired after every update.
// only one callback is supported; subsequent calls replace the previous one.
func (h *Holder) OnChange(fn func()) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// SetModel records the latest chat model resolution.
func (h *Holder) SetModel(res resolver.ResolvedModel) {
	h.mu.Lock()
	h.model = &ModelStatus{Resolution: res, ResolvedAt: time.Now()}
	cb := h.onChange
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetSkill records the latest fallback resolution for a skill.
func (h *Holder) SetSkill(res resolver.FallbackResolution) {
	h.mu.Lock()
	h.skills[res.SkillID] = SkillStatus{Resolution: res, ResolvedAt: time.Now()}
	cb := h.onChange
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// SetKeys replaces the credential check results.
func (h *Holder) SetKeys(checks []KeyStatus) {
	h.mu.Lock()
	h.keys = append([]KeyStatus(nil), checks...)
	cb := h.onChange
	h.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Snapshot returns a copy of the current state.
func (h *Holder) Snapshot() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := Report{Keys: append([]KeyStatus(nil), h.keys...)}
	if h.model != nil {
		m := *h.model
		report.Model = &m
	}
	if len(h.skills) > 0 {
		report.Skills = make(map[string]SkillStatus, len(h.skills))
		for id, s := range h.skills {
			report.Skills[id] = s
		}
	}
	return report
}
