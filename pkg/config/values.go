package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., WatchCatalogSet) track whether that field was
// explicitly set in config. This allows distinguishing explicit false/0 from
// "not set", enabling proper merge behavior where local config can override
// global config with zero values.
type Values struct {
	Strategy        string // cost-efficient or max-performance
	PrimaryOverride string // "provider/model" pinned model, bypasses strategy

	EnvFile         string // .env file loaded into the credential store
	TraceFile       string // optional resolution trace output file
	WatchCatalog    bool   // reload catalog override files on change
	WatchCatalogSet bool   // tracks if watch_catalog was explicitly set

	NotifyChannels     []string // degradation alert channels: telegram, slack, webhook
	NotifyOnDegrade    bool     // alert when resolution lands on free tier or platform credit
	NotifyOnDegradeSet bool     // tracks if notify_on_degrade was explicitly set
	NotifyTimeoutMs    int      // per-send timeout
	NotifyTimeoutMsSet bool     // tracks if notify_timeout_ms was explicitly set
	TelegramToken      string
	TelegramChat       string
	SlackToken         string
	SlackChannel       string
	WebhookURLs        []string
}

// valuesLoader implements settings loading with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	// start with embedded defaults
	embedded, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	// parse global config if exists
	global, err := vl.parseValuesFromFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}

	// parse local config if exists
	local, err := vl.parseValuesFromFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)

	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only
// comments/whitespace, falling back to embedded defaults for commented templates.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	stripped := stripComments(string(data))
	if strings.TrimSpace(stripped) == "" {
		return Values{}, nil
	}

	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values
	section := cfg.Section("") // default section (no section header)

	// resolution settings
	if key, err := section.GetKey("strategy"); err == nil {
		values.Strategy = key.String()
	}
	if key, err := section.GetKey("primary_override"); err == nil {
		values.PrimaryOverride = key.String()
	}

	// catalog and credentials
	if key, err := section.GetKey("env_file"); err == nil {
		values.EnvFile = key.String()
	}
	if key, err := section.GetKey("trace_file"); err == nil {
		values.TraceFile = key.String()
	}
	if key, err := section.GetKey("watch_catalog"); err == nil {
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid watch_catalog: %w", boolErr)
		}
		values.WatchCatalog = val
		values.WatchCatalogSet = true
	}

	// notification settings
	if key, err := section.GetKey("notify_channels"); err == nil {
		values.NotifyChannels = splitList(key.String())
	}
	if key, err := section.GetKey("notify_on_degrade"); err == nil {
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid notify_on_degrade: %w", boolErr)
		}
		values.NotifyOnDegrade = val
		values.NotifyOnDegradeSet = true
	}
	if key, err := section.GetKey("notify_timeout_ms"); err == nil {
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid notify_timeout_ms: %w", intErr)
		}
		if val < 0 {
			return Values{}, fmt.Errorf("invalid notify_timeout_ms: must be non-negative, got %d", val)
		}
		values.NotifyTimeoutMs = val
		values.NotifyTimeoutMsSet = true
	}
	if key, err := section.GetKey("telegram_token"); err == nil {
		values.TelegramToken = key.String()
	}
	if key, err := section.GetKey("telegram_chat"); err == nil {
		values.TelegramChat = key.String()
	}
	if key, err := section.GetKey("slack_token"); err == nil {
		values.SlackToken = key.String()
	}
	if key, err := section.GetKey("slack_channel"); err == nil {
		values.SlackChannel = key.String()
	}
	if key, err := section.GetKey("webhook_urls"); err == nil {
		values.WebhookURLs = splitList(key.String())
	}

	return values, nil
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(strings.TrimSpace(val), ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	if src.Strategy != "" {
		dst.Strategy = src.Strategy
	}
	if src.PrimaryOverride != "" {
		dst.PrimaryOverride = src.PrimaryOverride
	}
	if src.EnvFile != "" {
		dst.EnvFile = src.EnvFile
	}
	if src.TraceFile != "" {
		dst.TraceFile = src.TraceFile
	}
	if src.WatchCatalogSet {
		dst.WatchCatalog = src.WatchCatalog
		dst.WatchCatalogSet = true
	}
	if len(src.NotifyChannels) > 0 {
		dst.NotifyChannels = src.NotifyChannels
	}
	if src.NotifyOnDegradeSet {
		dst.NotifyOnDegrade = src.NotifyOnDegrade
		dst.NotifyOnDegradeSet = true
	}
	if src.NotifyTimeoutMsSet {
		dst.NotifyTimeoutMs = src.NotifyTimeoutMs
		dst.NotifyTimeoutMsSet = true
	}
	if src.TelegramToken != "" {
		dst.TelegramToken = src.TelegramToken
	}
	if src.TelegramChat != "" {
		dst.TelegramChat = src.TelegramChat
	}
	if src.SlackToken != "" {
		dst.SlackToken = src.SlackToken
	}
	if src.SlackChannel != "" {
		dst.SlackChannel = src.SlackChannel
	}
	if len(src.WebhookURLs) > 0 {
		dst.WebhookURLs = src.WebhookURLs
	}
}
