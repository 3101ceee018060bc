package resolver

import (
	"context"

	"github.com/lumora-ai/resolve/pkg/catalog"
)

// ResolveModelStrategy resolves a general chat/LLM invocation. evaluation order:
// explicit override, then the user's first subscribed provider at the strategy's
// quality tier, then the strategy's platform-credit default. a malformed
// override is treated as absent and an unrecognized strategy as cost-efficient;
// neither ever raises. the platform-credit tier can never be unavailable, so the
// result is always usable.
func (r *Resolver) ResolveModelStrategy(in StrategyInput) ResolvedModel {
	// explicit override beats everything, regardless of strategy or subscriptions
	if ref, ok := ParseOverride(in.PrimaryOverride); ok {
		return ResolvedModel{
			TierLabel:  LabelUserSpecified,
			Models:     []ModelRef{ref},
			Parallel:   false,
			Strategy:   catalog.NormalizeStrategy(in.Strategy),
			CreditCost: false,
		}
	}

	strategy := catalog.NormalizeStrategy(in.Strategy)
	def := r.cat.Strategy(strategy)

	// own-key tier: first subscribed provider wins, deterministically. the list
	// order is the caller's (registration time); no re-ranking by quality or
	// cost happens here. ids unknown to the catalog are skipped.
	for _, id := range in.SubscribedProviders {
		provider, ok := r.cat.Provider(id)
		if !ok {
			continue
		}
		model := modelForStrategy(provider.Models, strategy)
		if model == "" {
			continue
		}
		return ResolvedModel{
			TierLabel:  LabelOwnKey,
			Models:     []ModelRef{{Provider: provider.ID, Model: model}},
			Parallel:   def.ParallelFallback,
			Strategy:   strategy,
			CreditCost: false,
		}
	}

	return r.creditResult(strategy)
}

// ResolveModelStrategyContext is the bounded variant for callers whose inputs
// come from blocking sources. the timeout wraps the whole resolution; when it
// fires the platform-credit default for the normalized strategy is returned —
// latency degrades the answer, it never reorders tiers or fails the request.
func (r *Resolver) ResolveModelStrategyContext(ctx context.Context, in StrategyInput) ResolvedModel {
	if ctx.Err() != nil {
		return r.creditResult(catalog.NormalizeStrategy(in.Strategy))
	}

	done := make(chan ResolvedModel, 1)
	go func() {
		done <- r.ResolveModelStrategy(in)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return r.creditResult(catalog.NormalizeStrategy(in.Strategy))
	}
}

// creditResult builds the guaranteed platform-credit result for a strategy.
func (r *Resolver) creditResult(strategy catalog.StrategyID) ResolvedModel {
	credit := r.cat.CreditModelFor(strategy)
	return ResolvedModel{
		TierLabel:   LabelPlatformCredit,
		Models:      []ModelRef{{Provider: credit.Provider, Model: credit.Model}},
		Parallel:    false,
		ExtraParams: copyParams(credit.ExtraParams),
		Strategy:    strategy,
		CreditCost:  true,
	}
}

// modelForStrategy picks the provider model matching the strategy's quality tier.
func modelForStrategy(models catalog.ModelPair, strategy catalog.StrategyID) string {
	if strategy == catalog.StrategyMaxPerformance {
		return models.MaxPerformance
	}
	return models.CostEfficient
}

// copyParams clones extra params so credit model definitions stay immutable even
// if a consumer mutates the returned map.
func copyParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
