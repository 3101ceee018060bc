// Package catalog holds the static registries the resolution engine works from:
// skills with their key requirements, providers with their capabilities and models,
// strategies and their platform-credit defaults. A Catalog is built once (embedded
// defaults merged with optional override files) and treated as read-only afterwards.
package catalog

import (
	"fmt"
	"strings"
)

// Capability is a named ability a provider's model exposes and a skill may require.
// the set is closed: unknown tags are rejected at catalog load, not at resolution time.
type Capability string

// capability constants, the full closed set.
const (
	CapTextGeneration     Capability = "text-generation"
	CapSummarization      Capability = "summarization"
	CapWebSearch          Capability = "web-search"
	CapImageGeneration    Capability = "image-generation"
	CapImageAnalysis      Capability = "image-analysis"
	CapAudioTranscription Capability = "audio-transcription"
	CapCodeGeneration     Capability = "code-generation"
	CapTranslation        Capability = "translation"
	CapLongContext        Capability = "long-context"
	CapVideoGeneration    Capability = "video-generation"
	CapEmbedding          Capability = "embedding"
)

// allCapabilities lists every known capability. used for validation and exhaustive
// iteration; keep in sync with the constants above when a new capability is added.
var allCapabilities = []Capability{
	CapTextGeneration,
	CapSummarization,
	CapWebSearch,
	CapImageGeneration,
	CapImageAnalysis,
	CapAudioTranscription,
	CapCodeGeneration,
	CapTranslation,
	CapLongContext,
	CapVideoGeneration,
	CapEmbedding,
}

// Capabilities returns the full closed set in a stable order.
func Capabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// ParseCapability converts a string tag to a Capability.
// returns an error for tags outside the closed set.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allCapabilities {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// CapabilitySet is a set over the closed capability space.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}
