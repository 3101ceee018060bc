package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumora-ai/resolve/pkg/catalog"
	"github.com/lumora-ai/resolve/pkg/keys"
)

// valid fixture keys matching the embedded catalog patterns.
const (
	validTavily    = "tvly-abcdefghijklmnopqr"
	validBrave     = "brave-key-anything"
	validOpenAI    = "sk-abcdefghijklmnopqrstuvwx"
	validAnthropic = "sk-ant-REDACTED"
	validGemini    = "AIzaSyAbcdefghijklmnopqrstuvwxyz0123"
)

func TestResolveFallback_SkillAPITier(t *testing.T) {
	r := newResolver(t, map[string]string{"TAVILY_API_KEY": validTavily})

	res := r.ResolveFallback("web-search")

	assert.Equal(t, TierSkillAPI, res.Tier)
	assert.Equal(t, "web-search", res.Provider)
	assert.Equal(t, "TAVILY_API_KEY", res.EnvVar)
	assert.Equal(t, "Tavily search API", res.StrategyText)
	assert.False(t, res.CreditCost(), "skill key runs on the user's own key")
}

func TestResolveFallback_EarlierDeclaredKeyWins(t *testing.T) {
	// both skill keys valid: the catalog declares tavily before brave, so tavily
	// wins no matter what
	r := newResolver(t, map[string]string{
		"TAVILY_API_KEY":       validTavily,
		"BRAVE_SEARCH_API_KEY": validBrave,
	})

	res := r.ResolveFallback("web-search")

	assert.Equal(t, TierSkillAPI, res.Tier)
	assert.Equal(t, "TAVILY_API_KEY", res.EnvVar)
}

func TestResolveFallback_SecondKeyServesWhenFirstInvalid(t *testing.T) {
	// tavily present but malformed, brave (no pattern) valid
	r := newResolver(t, map[string]string{
		"TAVILY_API_KEY":       "wrong-format",
		"BRAVE_SEARCH_API_KEY": validBrave,
	})

	res := r.ResolveFallback("web-search")

	assert.Equal(t, TierSkillAPI, res.Tier)
	assert.Equal(t, "BRAVE_SEARCH_API_KEY", res.EnvVar)

	// the chain still records the failed first attempt
	require.Len(t, res.Chain.TriedKeys, 2)
	assert.False(t, res.Chain.TriedKeys[0].Valid)
	assert.True(t, res.Chain.TriedKeys[1].Valid)
}

func TestResolveFallback_UserLLMTier(t *testing.T) {
	// summarization has no dedicated keys; an anthropic subscription serves it
	r := newResolver(t, map[string]string{"ANTHROPIC_API_KEY": validAnthropic})

	res := r.ResolveFallback("summarization")

	assert.Equal(t, TierUserLLM, res.Tier)
	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, "ANTHROPIC_API_KEY", res.EnvVar)
	assert.Equal(t, "Anthropic", res.StrategyText)
	assert.False(t, res.CreditCost())
}

func TestResolveFallback_ProviderOrderDecidesTier2(t *testing.T) {
	// openai and anthropic both valid and both summarize; openai is declared
	// first in the catalog so it wins deterministically
	r := newResolver(t, map[string]string{
		"OPENAI_API_KEY":    validOpenAI,
		"ANTHROPIC_API_KEY": validAnthropic,
	})

	res := r.ResolveFallback("summarization")

	assert.Equal(t, TierUserLLM, res.Tier)
	assert.Equal(t, "openai", res.Provider)
}

func TestResolveFallback_FreeTier(t *testing.T) {
	t.Run("skill with declared free fallback", func(t *testing.T) {
		r := newResolver(t, nil)

		res := r.ResolveFallback("web-search")

		assert.Equal(t, TierFreeFallback, res.Tier)
		assert.Equal(t, FreeProviderID, res.Provider)
		assert.Equal(t, "DuckDuckGo instant answers (no key required)", res.StrategyText)
		assert.False(t, res.CreditCost())
	})

	t.Run("skill without free fallback declines politely", func(t *testing.T) {
		r := newResolver(t, nil)

		res := r.ResolveFallback("summarization")

		assert.Equal(t, TierFreeFallback, res.Tier)
		assert.Equal(t, NoFallbackText, res.StrategyText)
	})

	t.Run("unknown skill falls straight to free tier", func(t *testing.T) {
		r := newResolver(t, map[string]string{"OPENAI_API_KEY": validOpenAI})

		res := r.ResolveFallback("mind-reading")

		assert.Equal(t, TierFreeFallback, res.Tier)
		assert.Equal(t, NoFallbackText, res.StrategyText)
		assert.Empty(t, res.Chain.TriedKeys)
		assert.Empty(t, res.Chain.Capabilities)
	})
}

func TestResolveFallback_ChainAlwaysComplete(t *testing.T) {
	// tier 1 matches, yet the chain still lists tier 2 candidates and the free
	// fallback so the explanation can show the whole priority list
	r := newResolver(t, map[string]string{
		"TAVILY_API_KEY": validTavily,
		"GEMINI_API_KEY": validGemini,
	})

	res := r.ResolveFallback("web-search")

	require.Equal(t, TierSkillAPI, res.Tier)
	require.Len(t, res.Chain.TriedKeys, 2)
	require.Len(t, res.Chain.Capabilities, 1)
	assert.Equal(t, catalog.CapWebSearch, res.Chain.Capabilities[0].Capability)
	assert.Empty(t, res.Chain.Capabilities[0].Providers, "no provider declares web-search")
	assert.Equal(t, "DuckDuckGo instant answers (no key required)", res.Chain.FreeFallback)
}

func TestResolveFallback_Idempotent(t *testing.T) {
	r := newResolver(t, map[string]string{"ANTHROPIC_API_KEY": validAnthropic})

	first := r.ResolveFallback("summarization")
	second := r.ResolveFallback("summarization")

	assert.Equal(t, first, second, "same inputs produce the same resolution")
}

// blockingStore blocks lookups until its release channel closes.
type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Lookup(string) (string, error) {
	<-s.release
	return "", errors.New("released")
}

func TestResolveFallbackContext_TimeoutDegradesToFree(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	defer close(store.release)

	r := New(defaultCatalog(t), keys.NewValidator(store))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := r.ResolveFallbackContext(ctx, "web-search")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, TierFreeFallback, res.Tier)
	assert.Equal(t, "DuckDuckGo instant answers (no key required)", res.StrategyText)
}

func TestResolveFallbackContext_CompletesWithinDeadline(t *testing.T) {
	r := newResolver(t, map[string]string{"TAVILY_API_KEY": validTavily})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := r.ResolveFallbackContext(ctx, "web-search")
	assert.Equal(t, TierSkillAPI, res.Tier)
}
