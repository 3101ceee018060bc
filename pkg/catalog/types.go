package catalog

// KeyRequirement describes one credential a skill can use.
// a skill declares these in priority order: the first requirement whose key
// validates wins during fallback resolution.
type KeyRequirement struct {
	EnvVar          string `yaml:"env"`
	Description     string `yaml:"description"`
	Required        bool   `yaml:"required"`
	FreeFallback    string `yaml:"free_fallback,omitempty"`
	ValidatePattern string `yaml:"pattern,omitempty"`
}

// Skill is one AI capability the product offers (web search, summarization, ...).
// Keys and Capabilities are both ordered: declaration order is priority order.
type Skill struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name,omitempty"`
	Keys         []KeyRequirement `yaml:"keys,omitempty"`
	Capabilities []Capability     `yaml:"capabilities,omitempty"`
}

// ModelPair holds the two quality tiers a provider serves, selected by strategy.
type ModelPair struct {
	CostEfficient  string `yaml:"cost_efficient"`
	MaxPerformance string `yaml:"max_performance"`
}

// Provider is one upstream AI provider. providers live in a priority-ordered
// catalog slice; earlier entries win when several match a capability.
type Provider struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	EnvVar          string       `yaml:"env"`
	ValidatePattern string       `yaml:"pattern,omitempty"`
	Capabilities    []Capability `yaml:"capabilities"`
	Models          ModelPair    `yaml:"models"`

	caps CapabilitySet // built at load for O(1) lookups
}

// HasCapability reports whether the provider declares the capability.
func (p *Provider) HasCapability(c Capability) bool {
	if p.caps != nil {
		return p.caps.Has(c)
	}
	for _, pc := range p.Capabilities {
		if pc == c {
			return true
		}
	}
	return false
}

// StrategyID identifies a cost/performance preference.
type StrategyID string

// built-in strategies. unknown values normalize to StrategyCostEfficient.
const (
	StrategyCostEfficient  StrategyID = "cost-efficient"
	StrategyMaxPerformance StrategyID = "max-performance"
)

// DefaultStrategy is substituted for unrecognized strategy values.
const DefaultStrategy = StrategyCostEfficient

// NormalizeStrategy maps any string to a known strategy id, defaulting silently.
func NormalizeStrategy(s string) StrategyID {
	switch StrategyID(s) {
	case StrategyCostEfficient, StrategyMaxPerformance:
		return StrategyID(s)
	}
	return DefaultStrategy
}

// StrategyDef describes one strategy. every strategy has exactly two tiers:
// the user's own key first, platform credit second. ParallelFallback is reserved
// for a future mode that fans a request out to several top-tier models at once;
// no selection or merge logic for it exists yet, the flag is carried as data only.
type StrategyDef struct {
	ID               StrategyID  `yaml:"id"`
	Tiers            []string    `yaml:"tiers"`
	ParallelFallback bool        `yaml:"parallel_fallback"`
	Credit           CreditModel `yaml:"credit"`
}

// tier names every strategy must declare, in order.
const (
	TierNameOwnKey         = "own-key"
	TierNamePlatformCredit = "platform-credit"
)

// CreditModel is the guaranteed default served on platform credit when the user
// holds no usable key. ExtraParams carries provider-specific knobs such as a
// thinking budget.
type CreditModel struct {
	Provider    string         `yaml:"provider"`
	Model       string         `yaml:"model"`
	ExtraParams map[string]any `yaml:"extra_params,omitempty"`
}
