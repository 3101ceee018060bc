package resolver

import (
	"context"

	"github.com/lumora-ai/resolve/pkg/catalog"
	"github.com/lumora-ai/resolve/pkg/keys"
)

// ResolveFallback resolves a skill-level tool invocation down the three-tier
// chain: dedicated skill key, then the user's paid model with a matching
// capability, then the free fallback. the first satisfied tier wins; tier 3
// always succeeds, so the result is never empty. a skill unknown to the catalog
// falls straight to tier 3.
func (r *Resolver) ResolveFallback(skillID string) FallbackResolution {
	skill, _ := r.cat.Skill(skillID) // zero Skill for unknown ids: no keys, no capabilities

	snap := r.snapshotFor(skill)
	chain := r.buildChain(skill, snap)

	res := FallbackResolution{SkillID: skillID, Chain: chain}

	// tier 1: dedicated skill keys, declared order = priority order.
	// two valid keys present means the earlier-declared one wins, always.
	for i, tried := range chain.TriedKeys {
		if tried.Valid {
			res.Tier = TierSkillAPI
			res.Provider = skillID
			res.EnvVar = tried.EnvVar
			res.StrategyText = skill.Keys[i].Description
			return res
		}
	}

	// tier 2: user's paid model with a matching capability. capabilities are
	// tried in the skill's declared order, providers in catalog order.
	for _, cc := range chain.Capabilities {
		if cc.Matched == "" {
			continue
		}
		provider, _ := r.cat.Provider(cc.Matched)
		res.Tier = TierUserLLM
		res.Provider = provider.ID
		res.EnvVar = provider.EnvVar
		res.StrategyText = provider.Name
		return res
	}

	// tier 3: free fallback, always available
	res.Tier = TierFreeFallback
	res.Provider = FreeProviderID
	res.StrategyText = chain.FreeFallback
	return res
}

// ResolveFallbackContext is the bounded variant for callers whose credential
// store may block. the timeout covers the whole resolution, not single tiers;
// when it fires the caller gets the tier-3 result instead of an error, keeping
// the always-answer contract under infrastructure failure.
func (r *Resolver) ResolveFallbackContext(ctx context.Context, skillID string) FallbackResolution {
	if ctx.Err() != nil {
		return r.freeResult(skillID)
	}

	done := make(chan FallbackResolution, 1)
	go func() {
		done <- r.ResolveFallback(skillID)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return r.freeResult(skillID)
	}
}

// freeResult builds the tier-3 result without touching the key store.
func (r *Resolver) freeResult(skillID string) FallbackResolution {
	text := r.cat.FreeFallbackOf(skillID)
	if text == "" {
		text = NoFallbackText
	}
	return FallbackResolution{
		SkillID:      skillID,
		Tier:         TierFreeFallback,
		Provider:     FreeProviderID,
		StrategyText: text,
		Chain:        Chain{FreeFallback: text},
	}
}

// snapshotFor freezes validity of every credential this resolution can touch:
// the skill's own keys and all provider keys. one pass, one view.
func (r *Resolver) snapshotFor(skill catalog.Skill) keys.Snapshot {
	pairs := make(map[string]string)
	for _, k := range skill.Keys {
		pairs[k.EnvVar] = k.ValidatePattern
	}
	for _, p := range r.cat.Providers() {
		pairs[p.EnvVar] = p.ValidatePattern
	}
	return r.keys.Snapshot(pairs)
}

// buildChain evaluates every tier's candidates up front. the chain is complete
// regardless of which tier ends up matching: the formatter renders the whole
// unsatisfied priority list so users can see why a lower tier was chosen.
func (r *Resolver) buildChain(skill catalog.Skill, snap keys.Snapshot) Chain {
	chain := Chain{FreeFallback: freeFallbackText(skill)}

	for _, k := range skill.Keys {
		chain.TriedKeys = append(chain.TriedKeys, TriedKey{
			EnvVar:      k.EnvVar,
			Description: k.Description,
			Valid:       snap[k.EnvVar],
		})
	}

	for _, capability := range skill.Capabilities {
		cc := CapabilityCandidates{Capability: capability}
		for _, p := range r.cat.ProvidersWith(capability) {
			cc.Providers = append(cc.Providers, p.ID)
			if cc.Matched == "" && snap[p.EnvVar] {
				cc.Matched = p.ID
			}
		}
		chain.Capabilities = append(chain.Capabilities, cc)
	}

	return chain
}

func freeFallbackText(skill catalog.Skill) string {
	for _, k := range skill.Keys {
		if k.FreeFallback != "" {
			return k.FreeFallback
		}
	}
	return NoFallbackText
}
