package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStrategies returns a minimal valid strategy set for fixtures.
func testStrategies() []StrategyDef {
	return []StrategyDef{
		{
			ID:     StrategyCostEfficient,
			Tiers:  []string{TierNameOwnKey, TierNamePlatformCredit},
			Credit: CreditModel{Provider: "gemini", Model: "gemini-2.5-flash-thinking", ExtraParams: map[string]any{"thinking_budget": -1}},
		},
		{
			ID:     StrategyMaxPerformance,
			Tiers:  []string{TierNameOwnKey, TierNamePlatformCredit},
			Credit: CreditModel{Provider: "anthropic", Model: "claude-opus-4-6"},
		},
	}
}

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cat, err := Load("", "")
	require.NoError(t, err)

	t.Run("providers in declaration order", func(t *testing.T) {
		providers := cat.Providers()
		require.Len(t, providers, 4)
		assert.Equal(t, "openai", providers[0].ID)
		assert.Equal(t, "anthropic", providers[1].ID)
		assert.Equal(t, "gemini", providers[2].ID)
		assert.Equal(t, "deepseek", providers[3].ID)
	})

	t.Run("anthropic models", func(t *testing.T) {
		p, ok := cat.Provider("anthropic")
		require.True(t, ok)
		assert.Equal(t, "claude-haiku-4-5", p.Models.CostEfficient)
		assert.Equal(t, "claude-opus-4-6", p.Models.MaxPerformance)
		assert.True(t, p.HasCapability(CapLongContext))
		assert.False(t, p.HasCapability(CapVideoGeneration))
	})

	t.Run("credit models guaranteed for both strategies", func(t *testing.T) {
		credit := cat.CreditModelFor(StrategyCostEfficient)
		assert.Equal(t, "gemini", credit.Provider)
		assert.Equal(t, "gemini-2.5-flash-thinking", credit.Model)
		assert.Equal(t, -1, credit.ExtraParams["thinking_budget"])

		credit = cat.CreditModelFor(StrategyMaxPerformance)
		assert.Equal(t, "anthropic", credit.Provider)
		assert.Equal(t, "claude-opus-4-6", credit.Model)
	})

	t.Run("web-search skill keys and fallback", func(t *testing.T) {
		s, ok := cat.Skill("web-search")
		require.True(t, ok)
		require.Len(t, s.Keys, 2)
		assert.Equal(t, "TAVILY_API_KEY", s.Keys[0].EnvVar)
		assert.Equal(t, "BRAVE_SEARCH_API_KEY", s.Keys[1].EnvVar)
		assert.Equal(t, "DuckDuckGo instant answers (no key required)", cat.FreeFallbackOf("web-search"))
	})

	t.Run("keyless skill has no free fallback text", func(t *testing.T) {
		s, ok := cat.Skill("summarization")
		require.True(t, ok)
		assert.Empty(t, s.Keys)
		assert.Equal(t, []Capability{CapSummarization, CapTextGeneration}, s.Capabilities)
		assert.Empty(t, cat.FreeFallbackOf("summarization"))
	})

	t.Run("unknown skill", func(t *testing.T) {
		_, ok := cat.Skill("nope")
		assert.False(t, ok)
		assert.Empty(t, cat.FreeFallbackOf("nope"))
	})
}

func TestLoad_MergeChain(t *testing.T) {
	globalDir := t.TempDir()
	localDir := t.TempDir()

	// global overrides anthropic's cost-efficient model, local adds a provider
	global := `
providers:
  - id: anthropic
    name: Anthropic
    env: ANTHROPIC_API_KEY
    capabilities: [text-generation]
    models:
      cost_efficient: claude-haiku-override
      max_performance: claude-opus-4-6
`
	local := `
providers:
  - id: mistral
    name: Mistral
    env: MISTRAL_API_KEY
    capabilities: [text-generation, code-generation]
    models:
      cost_efficient: mistral-small
      max_performance: mistral-large
`
	globalPath := filepath.Join(globalDir, "catalog.yml")
	localPath := filepath.Join(localDir, "catalog.yml")
	require.NoError(t, os.WriteFile(globalPath, []byte(global), 0o600))
	require.NoError(t, os.WriteFile(localPath, []byte(local), 0o600))

	cat, err := Load(localPath, globalPath)
	require.NoError(t, err)

	t.Run("override replaces in place keeping priority position", func(t *testing.T) {
		providers := cat.Providers()
		require.Len(t, providers, 5)
		assert.Equal(t, "anthropic", providers[1].ID, "overridden provider keeps its slot")
		assert.Equal(t, "claude-haiku-override", providers[1].Models.CostEfficient)
	})

	t.Run("new entries append after defaults", func(t *testing.T) {
		providers := cat.Providers()
		assert.Equal(t, "mistral", providers[4].ID)
	})

	t.Run("override replaces the whole entry", func(t *testing.T) {
		p, ok := cat.Provider("anthropic")
		require.True(t, ok)
		// the global file declares only text-generation, the default list is gone
		assert.Equal(t, []Capability{CapTextGeneration}, p.Capabilities)
	})
}

func TestLoad_LocalWinsOverGlobal(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.yml")
	local := filepath.Join(dir, "local.yml")

	require.NoError(t, os.WriteFile(global, []byte(`
skills:
  - id: web-search
    name: Global Web Search
    capabilities: [web-search]
`), 0o600))
	require.NoError(t, os.WriteFile(local, []byte(`
skills:
  - id: web-search
    name: Local Web Search
    capabilities: [web-search]
`), 0o600))

	cat, err := Load(local, global)
	require.NoError(t, err)

	s, ok := cat.Skill("web-search")
	require.True(t, ok)
	assert.Equal(t, "Local Web Search", s.Name)
}

func TestLoad_MissingOverrideFilesIgnored(t *testing.T) {
	cat, err := Load("/nonexistent/local.yml", "/nonexistent/global.yml")
	require.NoError(t, err)
	assert.NotEmpty(t, cat.Providers())
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("providers: [unclosed"), 0o600))

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestNew_Validation(t *testing.T) {
	validProvider := Provider{
		ID: "openai", Name: "OpenAI", EnvVar: "OPENAI_API_KEY",
		Capabilities: []Capability{CapTextGeneration},
		Models:       ModelPair{CostEfficient: "gpt-4o-mini", MaxPerformance: "gpt-4o"},
	}

	tests := []struct {
		name       string
		skills     []Skill
		providers  []Provider
		strategies []StrategyDef
		wantErr    string
	}{
		{
			name:       "valid minimal catalog",
			providers:  []Provider{validProvider},
			strategies: testStrategies(),
		},
		{
			name:       "duplicate skill id",
			skills:     []Skill{{ID: "s"}, {ID: "s"}},
			strategies: testStrategies(),
			wantErr:    "duplicate skill id",
		},
		{
			name:       "unknown skill capability",
			skills:     []Skill{{ID: "s", Capabilities: []Capability{"telepathy"}}},
			strategies: testStrategies(),
			wantErr:    "unknown capability",
		},
		{
			name:       "provider without env var",
			providers:  []Provider{{ID: "p", Capabilities: []Capability{CapTextGeneration}}},
			strategies: testStrategies(),
			wantErr:    "env var is required",
		},
		{
			name:    "no strategies",
			wantErr: "no strategies defined",
		},
		{
			name: "missing max-performance strategy",
			strategies: []StrategyDef{{
				ID:     StrategyCostEfficient,
				Tiers:  []string{TierNameOwnKey, TierNamePlatformCredit},
				Credit: CreditModel{Provider: "gemini", Model: "g"},
			}},
			wantErr: `strategy "max-performance" missing`,
		},
		{
			name: "wrong tier order",
			strategies: []StrategyDef{
				{
					ID:     StrategyCostEfficient,
					Tiers:  []string{TierNamePlatformCredit, TierNameOwnKey},
					Credit: CreditModel{Provider: "gemini", Model: "g"},
				},
				testStrategies()[1],
			},
			wantErr: "tiers must be exactly",
		},
		{
			name: "strategy without credit model",
			strategies: []StrategyDef{
				{ID: StrategyCostEfficient, Tiers: []string{TierNameOwnKey, TierNamePlatformCredit}},
				testStrategies()[1],
			},
			wantErr: "credit model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.skills, tt.providers, tt.strategies)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCatalog_ProvidersWith(t *testing.T) {
	cat, err := Load("", "")
	require.NoError(t, err)

	t.Run("order preserved", func(t *testing.T) {
		matched := cat.ProvidersWith(CapSummarization)
		require.Len(t, matched, 4)
		assert.Equal(t, "openai", matched[0].ID)
		assert.Equal(t, "deepseek", matched[3].ID)
	})

	t.Run("subset match", func(t *testing.T) {
		matched := cat.ProvidersWith(CapLongContext)
		require.Len(t, matched, 2)
		assert.Equal(t, "anthropic", matched[0].ID)
		assert.Equal(t, "gemini", matched[1].ID)
	})

	t.Run("no provider offers web search", func(t *testing.T) {
		assert.Empty(t, cat.ProvidersWith(CapWebSearch))
	})
}

func TestCatalog_StrategyNormalization(t *testing.T) {
	cat, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, StrategyMaxPerformance, cat.Strategy(StrategyMaxPerformance).ID)
	assert.Equal(t, StrategyCostEfficient, cat.Strategy("turbo-mode").ID, "unknown id falls back to default")
	assert.Equal(t, StrategyCostEfficient, cat.Strategy("").ID)
}

func TestNormalizeStrategy(t *testing.T) {
	assert.Equal(t, StrategyCostEfficient, NormalizeStrategy("cost-efficient"))
	assert.Equal(t, StrategyMaxPerformance, NormalizeStrategy("max-performance"))
	assert.Equal(t, DefaultStrategy, NormalizeStrategy("balanced"))
	assert.Equal(t, DefaultStrategy, NormalizeStrategy(""))
}
