package catalog

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults
var defaultsFS embed.FS

// Catalog is the immutable registry the resolvers consult. construct it via Load
// (or New for fixtures) and never mutate it afterwards; hot reload swaps the whole
// value through a Handle instead of touching an existing one.
type Catalog struct {
	skills     []Skill
	providers  []Provider
	strategies []StrategyDef

	skillIndex    map[string]int
	providerIndex map[string]int
	strategyIndex map[StrategyID]int
}

// rawCatalog mirrors the YAML file layout.
type rawCatalog struct {
	Skills     []Skill       `yaml:"skills"`
	Providers  []Provider    `yaml:"providers"`
	Strategies []StrategyDef `yaml:"strategies"`
}

// Load builds a catalog from embedded defaults merged with optional override files.
// merge chain: embedded → global → local (local wins, matched by id; unmatched
// entries are appended after the defaults in file order). any path may be empty or
// missing, the embedded defaults alone are always a complete valid catalog.
func Load(localPath, globalPath string) (*Catalog, error) {
	embedded, err := parseEmbedded()
	if err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	global, err := parseFile(globalPath)
	if err != nil {
		return nil, fmt.Errorf("parse global catalog: %w", err)
	}

	local, err := parseFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("parse local catalog: %w", err)
	}

	merged := embedded
	merged.mergeFrom(&global)
	merged.mergeFrom(&local)

	return New(merged.Skills, merged.Providers, merged.Strategies)
}

// New builds and validates a catalog from explicit parts. tests and embedding
// callers use it to supply fixtures without any file I/O.
func New(skills []Skill, providers []Provider, strategies []StrategyDef) (*Catalog, error) {
	c := &Catalog{
		skills:        append([]Skill(nil), skills...),
		providers:     append([]Provider(nil), providers...),
		strategies:    append([]StrategyDef(nil), strategies...),
		skillIndex:    make(map[string]int, len(skills)),
		providerIndex: make(map[string]int, len(providers)),
		strategyIndex: make(map[StrategyID]int, len(strategies)),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	// build indexes and pre-computed capability sets
	for i := range c.skills {
		c.skillIndex[c.skills[i].ID] = i
	}
	for i := range c.providers {
		c.providerIndex[c.providers[i].ID] = i
		c.providers[i].caps = NewCapabilitySet(c.providers[i].Capabilities...)
	}
	for i := range c.strategies {
		c.strategyIndex[c.strategies[i].ID] = i
	}

	return c, nil
}

// validate enforces catalog-level invariants at the load boundary. resolution
// never validates: everything it consumes is guaranteed well-formed here.
func (c *Catalog) validate() error {
	seenSkills := map[string]bool{}
	for _, s := range c.skills {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("skill with empty id")
		}
		if seenSkills[s.ID] {
			return fmt.Errorf("duplicate skill id %q", s.ID)
		}
		seenSkills[s.ID] = true
		for _, tag := range s.Capabilities {
			if _, err := ParseCapability(string(tag)); err != nil {
				return fmt.Errorf("skill %q: %w", s.ID, err)
			}
		}
	}

	seenProviders := map[string]bool{}
	for _, p := range c.providers {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("provider with empty id")
		}
		if seenProviders[p.ID] {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seenProviders[p.ID] = true
		if p.EnvVar == "" {
			return fmt.Errorf("provider %q: env var is required", p.ID)
		}
		for _, tag := range p.Capabilities {
			if _, err := ParseCapability(string(tag)); err != nil {
				return fmt.Errorf("provider %q: %w", p.ID, err)
			}
		}
	}

	if len(c.strategies) == 0 {
		return fmt.Errorf("no strategies defined")
	}
	seenStrategies := map[StrategyID]bool{}
	for _, st := range c.strategies {
		if st.ID != StrategyCostEfficient && st.ID != StrategyMaxPerformance {
			return fmt.Errorf("unknown strategy id %q", st.ID)
		}
		if seenStrategies[st.ID] {
			return fmt.Errorf("duplicate strategy id %q", st.ID)
		}
		seenStrategies[st.ID] = true
		if len(st.Tiers) != 2 || st.Tiers[0] != TierNameOwnKey || st.Tiers[1] != TierNamePlatformCredit {
			return fmt.Errorf("strategy %q: tiers must be exactly [%s, %s]", st.ID, TierNameOwnKey, TierNamePlatformCredit)
		}
		if st.Credit.Provider == "" || st.Credit.Model == "" {
			return fmt.Errorf("strategy %q: credit model is required", st.ID)
		}
	}
	for _, id := range []StrategyID{StrategyCostEfficient, StrategyMaxPerformance} {
		if !seenStrategies[id] {
			return fmt.Errorf("strategy %q missing", id)
		}
	}

	return nil
}

// Skill returns the skill by id. unknown skills are not an error: the fallback
// resolver treats them as having no keys and no capabilities.
func (c *Catalog) Skill(id string) (Skill, bool) {
	i, ok := c.skillIndex[id]
	if !ok {
		return Skill{}, false
	}
	return c.skills[i], true
}

// Skills returns all skills in declaration order.
func (c *Catalog) Skills() []Skill {
	return append([]Skill(nil), c.skills...)
}

// Provider returns the provider by id.
func (c *Catalog) Provider(id string) (Provider, bool) {
	i, ok := c.providerIndex[id]
	if !ok {
		return Provider{}, false
	}
	return c.providers[i], true
}

// Providers returns all providers in priority (declaration) order.
func (c *Catalog) Providers() []Provider {
	return append([]Provider(nil), c.providers...)
}

// ProvidersWith returns providers declaring the capability, preserving catalog order.
func (c *Catalog) ProvidersWith(capability Capability) []Provider {
	var out []Provider
	for i := range c.providers {
		if c.providers[i].HasCapability(capability) {
			out = append(out, c.providers[i])
		}
	}
	return out
}

// Strategy returns the definition for a strategy id, normalizing unknown values
// to the default strategy. the result always exists: validation guarantees both
// built-in strategies are defined.
func (c *Catalog) Strategy(id StrategyID) StrategyDef {
	i, ok := c.strategyIndex[id]
	if !ok {
		i = c.strategyIndex[DefaultStrategy]
	}
	return c.strategies[i]
}

// CreditModelFor returns the guaranteed platform-credit default for a strategy.
func (c *Catalog) CreditModelFor(id StrategyID) CreditModel {
	return c.Strategy(id).Credit
}

// FreeFallbackOf returns the first non-empty free-tool description declared for
// the skill, in declared order, or "" when the skill declares none (or is unknown).
func (c *Catalog) FreeFallbackOf(skillID string) string {
	s, ok := c.Skill(skillID)
	if !ok {
		return ""
	}
	for _, k := range s.Keys {
		if k.FreeFallback != "" {
			return k.FreeFallback
		}
	}
	return ""
}

// parseEmbedded parses the embedded defaults/catalog.yml.
func parseEmbedded() (rawCatalog, error) {
	data, err := defaultsFS.ReadFile("defaults/catalog.yml")
	if err != nil {
		return rawCatalog{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return parseBytes(data)
}

// parseFile reads and parses a catalog override file.
// returns an empty rawCatalog (not an error) if the path is empty or missing.
func parseFile(path string) (rawCatalog, error) {
	if path == "" {
		return rawCatalog{}, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user config
	if err != nil {
		if os.IsNotExist(err) {
			return rawCatalog{}, nil
		}
		return rawCatalog{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return parseBytes(data)
}

func parseBytes(data []byte) (rawCatalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return rawCatalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return raw, nil
}

// mergeFrom overlays src onto dst. entries matched by id replace in place so the
// original priority position is retained; new entries are appended in src order.
// reordering a catalog silently changes routing, so merges never reorder.
func (dst *rawCatalog) mergeFrom(src *rawCatalog) {
	dst.Skills = mergeByID(dst.Skills, src.Skills, func(s Skill) string { return s.ID })
	dst.Providers = mergeByID(dst.Providers, src.Providers, func(p Provider) string { return p.ID })
	dst.Strategies = mergeByID(dst.Strategies, src.Strategies, func(s StrategyDef) string { return string(s.ID) })
}

func mergeByID[T any](base, over []T, id func(T) string) []T {
	if len(over) == 0 {
		return base
	}
	index := make(map[string]int, len(base))
	for i, e := range base {
		index[id(e)] = i
	}
	out := append([]T(nil), base...)
	for _, e := range over {
		if i, ok := index[id(e)]; ok {
			out[i] = e
			continue
		}
		out = append(out, e)
	}
	return out
}
