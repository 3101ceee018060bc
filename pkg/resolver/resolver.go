// Package resolver implements the model and skill resolution engine: the policy
// deciding which provider and model (or which free tool) serves an AI request,
// given the catalog, the live key snapshot and the user's strategy. resolvers
// never fail for value-shaped input — they degrade down a fixed tier order and
// always return a usable result.
package resolver

import (
	"strings"

	"github.com/lumora-ai/resolve/pkg/catalog"
	"github.com/lumora-ai/resolve/pkg/keys"
)

// Tier is one priority level of skill fallback resolution.
type Tier string

// fallback tiers in evaluation order.
const (
	TierSkillAPI     Tier = "skill-api"     // dedicated skill key
	TierUserLLM      Tier = "user-llm"      // user's paid model with a matching capability
	TierFreeFallback Tier = "free-fallback" // no-key local substitute, always available
)

// model resolution tier labels. these are value-object tags consumed by the
// billing ledger and the explanation formatter, not user-facing text.
const (
	LabelUserSpecified  = "user-specified model"
	LabelOwnKey         = "user holding own key"
	LabelPlatformCredit = "platform credit (default)"
)

// NoFallbackText is the sentinel strategy text for skills without a free tool.
const NoFallbackText = "no fallback available"

// FreeProviderID marks the free-fallback tier's pseudo provider.
const FreeProviderID = "free"

// ModelRef names one concrete provider/model pair.
type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// TriedKey records one tier-1 credential check for the explanation chain.
type TriedKey struct {
	EnvVar      string `json:"env_var"`
	Description string `json:"description"`
	Valid       bool   `json:"valid"`
}

// CapabilityCandidates records the tier-2 providers considered for one required
// capability, in catalog priority order. Matched is the winning provider id, ""
// when no candidate had a valid key.
type CapabilityCandidates struct {
	Capability catalog.Capability `json:"capability"`
	Providers  []string           `json:"providers"`
	Matched    string             `json:"matched,omitempty"`
}

// Chain is the full priority chain evaluated for one fallback resolution. it is
// always populated completely, whichever tier matched, so the formatter can show
// a user exactly why a lower tier was chosen.
type Chain struct {
	TriedKeys    []TriedKey             `json:"tried_keys,omitempty"`
	Capabilities []CapabilityCandidates `json:"capabilities,omitempty"`
	FreeFallback string                 `json:"free_fallback"`
}

// FallbackResolution is the outcome of skill-level resolution.
type FallbackResolution struct {
	SkillID      string `json:"skill_id"`
	Tier         Tier   `json:"tier"`
	Provider     string `json:"provider"`
	EnvVar       string `json:"env_var,omitempty"`
	StrategyText string `json:"strategy_text"`
	Chain        Chain  `json:"chain"`
}

// CreditCost reports whether serving this resolution deducts platform credits.
// skill-api and user-llm run on user-held keys; the free tier costs nothing.
func (r FallbackResolution) CreditCost() bool {
	return false
}

// ResolvedModel is the outcome of chat model resolution.
type ResolvedModel struct {
	TierLabel   string             `json:"tier_label"`
	Models      []ModelRef         `json:"models"`
	Parallel    bool               `json:"parallel"`
	ExtraParams map[string]any     `json:"extra_params,omitempty"`
	Strategy    catalog.StrategyID `json:"strategy"`
	CreditCost  bool               `json:"credit_cost"`
}

// StrategyInput is the caller-assembled, per-request user configuration.
// SubscribedProviders holds ids of providers whose keys currently validate, in
// the caller's order (typically registration time); the resolver does not
// re-rank them. PrimaryOverride, when well-formed, bypasses every other rule.
type StrategyInput struct {
	Strategy            string   `json:"strategy"`
	SubscribedProviders []string `json:"subscribed_providers"`
	PrimaryOverride     string   `json:"primary_override,omitempty"`
}

// ParseOverride parses a "provider/model" override string once at the input
// boundary. malformed values (no separator, empty halves) report ok=false and
// are treated as absent — never as an error.
func ParseOverride(s string) (ref ModelRef, ok bool) {
	s = strings.TrimSpace(s)
	provider, model, found := strings.Cut(s, "/")
	provider = strings.TrimSpace(provider)
	model = strings.TrimSpace(model)
	if !found || provider == "" || model == "" {
		return ModelRef{}, false
	}
	return ModelRef{Provider: provider, Model: model}, true
}

// Resolver evaluates both resolution policies against one immutable catalog and
// one key validator. it holds no mutable state and is safe for concurrent use;
// construct a fresh one from the current catalog handle when hot reload matters.
type Resolver struct {
	cat  *catalog.Catalog
	keys *keys.Validator
}

// New creates a resolver. nil arguments are a wiring bug and fail loudly here,
// at the boundary, rather than deep inside tier logic.
func New(cat *catalog.Catalog, validator *keys.Validator) *Resolver {
	if cat == nil {
		panic("resolver: nil catalog")
	}
	if validator == nil {
		panic("resolver: nil key validator")
	}
	return &Resolver{cat: cat, keys: validator}
}

// Catalog returns the catalog this resolver was built from.
func (r *Resolver) Catalog() *catalog.Catalog {
	return r.cat
}
