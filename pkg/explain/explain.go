// Package explain renders resolution decisions as human-readable markdown. it
// consumes resolver outputs only and makes no decisions of its own; internal
// tier identifiers never appear in the produced text.
package explain

import (
	"fmt"
	"strings"

	"github.com/lumora-ai/resolve/pkg/resolver"
)

// Fallback renders a skill resolution: what was chosen and the entire priority
// chain that led there, including the tiers that did not match, so a user can
// see why a lower tier was picked.
func Fallback(res resolver.FallbackResolution) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", res.SkillID)

	switch res.Tier {
	case resolver.TierSkillAPI:
		fmt.Fprintf(&b, "Using your own key for this skill: %s (`%s`).\n", res.StrategyText, res.EnvVar)
	case resolver.TierUserLLM:
		fmt.Fprintf(&b, "No dedicated key is set, so this runs on your %s subscription (`%s`).\n",
			res.StrategyText, res.EnvVar)
	default:
		if res.StrategyText == resolver.NoFallbackText {
			b.WriteString("No key is set and no free tool exists for this skill; requests will be declined politely.\n")
		} else {
			fmt.Fprintf(&b, "Using the free tool: %s.\n", res.StrategyText)
		}
	}

	b.WriteString("\n### How this was decided\n\n")

	if len(res.Chain.TriedKeys) == 0 {
		b.WriteString("1. No dedicated keys are defined for this skill.\n")
	} else {
		b.WriteString("1. Dedicated keys, in priority order:\n")
		for _, k := range res.Chain.TriedKeys {
			state := "not usable"
			if k.Valid {
				state = "valid"
			}
			fmt.Fprintf(&b, "   - %s (`%s`) — %s\n", k.Description, k.EnvVar, state)
		}
	}

	if len(res.Chain.Capabilities) == 0 {
		b.WriteString("2. No provider capability can serve this skill.\n")
	} else {
		b.WriteString("2. Your AI provider subscriptions:\n")
		for _, cc := range res.Chain.Capabilities {
			if len(cc.Providers) == 0 {
				fmt.Fprintf(&b, "   - %s: no provider offers this\n", cc.Capability)
				continue
			}
			if cc.Matched != "" {
				fmt.Fprintf(&b, "   - %s: %s — using %s\n", cc.Capability, strings.Join(cc.Providers, ", "), cc.Matched)
			} else {
				fmt.Fprintf(&b, "   - %s: %s — no valid key\n", cc.Capability, strings.Join(cc.Providers, ", "))
			}
		}
	}

	fmt.Fprintf(&b, "3. Free fallback: %s\n", res.Chain.FreeFallback)

	if res.Tier != resolver.TierSkillAPI {
		b.WriteString("\n> Tip: register a dedicated key for this skill in settings to get the best results.\n")
	}

	return b.String()
}

// Model renders a chat model resolution.
func Model(res resolver.ResolvedModel) string {
	var b strings.Builder

	b.WriteString("## Chat model\n\n")

	model := resolver.ModelRef{}
	if len(res.Models) > 0 {
		model = res.Models[0]
	}

	switch res.TierLabel {
	case resolver.LabelUserSpecified:
		fmt.Fprintf(&b, "Using the model you picked: **%s/%s**. This choice overrides the %s strategy.\n",
			model.Provider, model.Model, res.Strategy)
	case resolver.LabelOwnKey:
		fmt.Fprintf(&b, "Using your own %s key with **%s** (%s strategy). No platform credits are spent.\n",
			model.Provider, model.Model, res.Strategy)
	default:
		fmt.Fprintf(&b, "Using platform credit with **%s/%s** (%s strategy default).\n",
			model.Provider, model.Model, res.Strategy)
		b.WriteString("\n> Tip: add your own provider key in settings to chat without spending credits.\n")
	}

	if len(res.ExtraParams) > 0 {
		b.WriteString("\nModel parameters:\n")
		for _, k := range sortedKeys(res.ExtraParams) {
			fmt.Fprintf(&b, "- %s: %v\n", k, res.ExtraParams[k])
		}
	}

	return b.String()
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// insertion sort, maps here hold one or two entries
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
