// Package main provides resolve - model and skill resolution for AI requests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lumora-ai/resolve/pkg/catalog"
	"github.com/lumora-ai/resolve/pkg/config"
	"github.com/lumora-ai/resolve/pkg/explain"
	"github.com/lumora-ai/resolve/pkg/keys"
	"github.com/lumora-ai/resolve/pkg/notify"
	"github.com/lumora-ai/resolve/pkg/progress"
	"github.com/lumora-ai/resolve/pkg/render"
	"github.com/lumora-ai/resolve/pkg/resolver"
	"github.com/lumora-ai/resolve/pkg/status"
	"github.com/lumora-ai/resolve/pkg/web"
)

// opts holds all command-line options.
type opts struct {
	Skill     string   `short:"k" long:"skill" description:"resolve a skill invocation instead of a chat model"`
	Strategy  string   `long:"strategy" description:"model strategy: cost-efficient or max-performance (overrides config)"`
	Providers []string `long:"provider" description:"subscribed provider id, repeatable, in priority order (default: auto-detect from keys)"`
	Override  string   `long:"override" description:"pinned provider/model, bypasses strategy"`
	TimeoutMs int      `long:"timeout-ms" default:"2000" description:"whole-resolution timeout; on expiry the lowest tier answers"`

	EnvFile string `long:"env-file" description:"load credentials from this .env file (overrides config)"`
	JSON    bool   `short:"j" long:"json" description:"print the resolution as JSON instead of an explanation"`
	Explain bool   `short:"e" long:"explain" description:"print the full decision chain"`
	Doctor  bool   `long:"doctor" description:"check every catalog credential and exit"`

	Serve bool `short:"s" long:"serve" description:"start web dashboard streaming resolutions"`
	Port  int  `short:"p" long:"port" default:"8080" description:"web dashboard port"`

	Debug   bool `short:"d" long:"debug" description:"enable debug logging"`
	NoColor bool `long:"no-color" description:"disable color output"`
	Version bool `short:"v" long:"version" description:"print version and exit"`

	SkillArg string `positional-arg-name:"skill-id" description:"skill id to resolve (same as --skill)"`
}

var revision = "unknown"

func main() {
	fmt.Printf("resolve %s\n", revision)

	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS] [skill-id]"

	args, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		os.Exit(0)
	}

	// handle positional argument
	if len(args) > 0 && o.Skill == "" {
		o.Skill = args[0]
	}

	// setup context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	cfg, err := config.Load("") // empty string uses default location
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// credentials come from the environment, optionally pre-loaded from .env
	envFile := cfg.EnvFile
	if o.EnvFile != "" {
		envFile = o.EnvFile
	}
	if envFile != "" {
		if envErr := keys.LoadDotenv(envFile); envErr != nil {
			return fmt.Errorf("load env file: %w", envErr)
		}
	}

	cat, err := catalog.Load(cfg.LocalCatalogPath, cfg.GlobalCatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	handle := catalog.NewHandle(cat)

	traceFile := cfg.TraceFile
	log, err := progress.NewLogger(progress.Config{TraceFile: traceFile, NoColor: o.NoColor})
	if err != nil {
		return fmt.Errorf("create progress logger: %w", err)
	}
	defer log.Close()

	validator := keys.NewValidator(keys.EnvStore{})

	if o.Doctor {
		return runDoctor(handle.Current(), validator, log)
	}

	notifier, err := notify.New(notifyParams(cfg), log)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	eng := engine{
		handle:    handle,
		validator: validator,
		log:       log,
		notifier:  notifier,
		holder:    status.NewHolder(),
		timeout:   time.Duration(o.TimeoutMs) * time.Millisecond,
		debug:     o.Debug,
	}

	if o.Serve {
		return eng.serve(ctx, o, cfg)
	}

	// start the catalog watcher only for the long-running mode; a one-shot
	// resolution uses the catalog loaded above
	return eng.resolveOnce(ctx, o, cfg)
}

// notifyParams maps config values to notification service parameters.
func notifyParams(cfg *config.Config) notify.Params {
	return notify.Params{
		Channels:      cfg.NotifyChannels,
		OnDegrade:     cfg.NotifyOnDegrade,
		TimeoutMs:     cfg.NotifyTimeoutMs,
		TelegramToken: cfg.TelegramToken,
		TelegramChat:  cfg.TelegramChat,
		SlackToken:    cfg.SlackToken,
		SlackChannel:  cfg.SlackChannel,
		WebhookURLs:   cfg.WebhookURLs,
	}
}

// engine bundles the long-lived pieces every mode shares.
type engine struct {
	handle    *catalog.Handle
	validator *keys.Validator
	log       *progress.Logger
	notifier  *notify.Service
	holder    *status.Holder
	timeout   time.Duration
	debug     bool
}

// strategyInput assembles the per-request user configuration: explicit flags
// win, then config values. subscribed providers default to those whose keys
// currently validate, in catalog declaration order.
func (e *engine) strategyInput(o opts, cfg *config.Config) resolver.StrategyInput {
	strategy := cfg.Strategy
	if o.Strategy != "" {
		strategy = o.Strategy
	}
	override := cfg.PrimaryOverride
	if o.Override != "" {
		override = o.Override
	}

	subscribed := o.Providers
	if len(subscribed) == 0 {
		for _, p := range e.handle.Current().Providers() {
			if e.validator.Has(p.EnvVar, p.ValidatePattern) {
				subscribed = append(subscribed, p.ID)
			}
		}
	}

	return resolver.StrategyInput{
		Strategy:            strategy,
		SubscribedProviders: subscribed,
		PrimaryOverride:     override,
	}
}

// resolveOnce performs a single resolution and prints the result.
func (e *engine) resolveOnce(ctx context.Context, o opts, cfg *config.Config) error {
	res := resolver.New(e.handle.Current(), e.validator)

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if o.Skill != "" {
		result := res.ResolveFallbackContext(rctx, o.Skill)
		e.holder.SetSkill(result)
		e.notifyDegradation(ctx, skillDegradation(result))
		return e.printFallback(result, o)
	}

	in := e.strategyInput(o, cfg)
	result := res.ResolveModelStrategyContext(rctx, in)
	e.holder.SetModel(result)
	e.notifyDegradation(ctx, modelDegradation(result))
	return e.printModel(result, o)
}

func (e *engine) printFallback(res resolver.FallbackResolution, o opts) error {
	if o.JSON {
		return printJSON(struct {
			resolver.FallbackResolution
			CreditCost bool `json:"credit_cost"`
		}{res, res.CreditCost()})
	}

	e.log.SetPhase(progress.Phase(res.Tier))
	e.log.Print("skill %q served by %s tier: %s", res.SkillID, res.Tier, res.StrategyText)

	if e.debug {
		if chain, err := json.Marshal(res.Chain); err == nil {
			e.log.Print("decision chain: %s", chain)
		}
	}

	if o.Explain {
		rendered, err := render.Markdown(explain.Fallback(res), 0, o.NoColor)
		if err != nil {
			return fmt.Errorf("render explanation: %w", err)
		}
		e.log.PrintAligned(rendered)
	}
	return nil
}

func (e *engine) printModel(res resolver.ResolvedModel, o opts) error {
	if o.JSON {
		return printJSON(res)
	}

	e.log.SetPhase(progress.PhaseModel)
	for _, m := range res.Models {
		e.log.Print("model %s/%s (%s, strategy %s)", m.Provider, m.Model, res.TierLabel, res.Strategy)
	}

	if o.Explain {
		rendered, err := render.Markdown(explain.Model(res), 0, o.NoColor)
		if err != nil {
			return fmt.Errorf("render explanation: %w", err)
		}
		e.log.PrintAligned(rendered)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// notifyDegradation sends an alert when the resolution left user-held keys.
// nil degradation means the request was served from a user key, no alert.
func (e *engine) notifyDegradation(ctx context.Context, d *notify.Degradation) {
	if d == nil {
		return
	}
	e.notifier.Send(ctx, *d)
}

// skillDegradation reports a skill resolution that fell to the free tier.
func skillDegradation(res resolver.FallbackResolution) *notify.Degradation {
	if res.Tier != resolver.TierFreeFallback {
		return nil
	}
	return &notify.Degradation{
		Kind:    "skill",
		Subject: res.SkillID,
		Served:  res.StrategyText,
		Credits: res.CreditCost(),
	}
}

// modelDegradation reports a chat resolution that fell to platform credit.
func modelDegradation(res resolver.ResolvedModel) *notify.Degradation {
	if !res.CreditCost {
		return nil
	}
	served := ""
	if len(res.Models) > 0 {
		served = res.Models[0].Provider + "/" + res.Models[0].Model
	}
	return &notify.Degradation{
		Kind:     "model",
		Subject:  "chat",
		Served:   served,
		Strategy: string(res.Strategy),
		Credits:  true,
	}
}

// runDoctor checks every credential the catalog references and reports
// validity. it never fails the process for a bad key, only for plumbing errors.
func runDoctor(cat *catalog.Catalog, validator *keys.Validator, log *progress.Logger) error {
	log.SetPhase(progress.PhaseSystem)
	log.Print("checking catalog credentials")

	valid, missing := 0, 0
	check := func(owner, envVar, pattern string) {
		if envVar == "" {
			return
		}
		if validator.Has(envVar, pattern) {
			valid++
			log.Print("  ok   %-28s (%s)", envVar, owner)
			return
		}
		missing++
		log.Warn("  miss %-28s (%s)", envVar, owner)
	}

	for _, p := range cat.Providers() {
		check(p.ID, p.EnvVar, p.ValidatePattern)
	}
	for _, s := range cat.Skills() {
		for _, k := range s.Keys {
			check(s.ID, k.EnvVar, k.ValidatePattern)
		}
	}

	log.Print("doctor: %d valid, %d missing or invalid", valid, missing)
	if missing > 0 {
		log.Print("requests still resolve: missing keys degrade to lower tiers, never fail")
	}
	return nil
}

// serve runs the web dashboard, re-resolving and broadcasting on catalog
// reloads until the context is canceled.
func (e *engine) serve(ctx context.Context, o opts, cfg *config.Config) error {
	hub := web.NewHub()
	buffer := web.NewBuffer(0)

	broadcast := func(ev web.Event) {
		buffer.Add(ev)
		hub.Broadcast(ev)
	}

	resolveAll := func() {
		res := resolver.New(e.handle.Current(), e.validator)

		in := e.strategyInput(o, cfg)
		model := res.ResolveModelStrategy(in)
		e.holder.SetModel(model)
		e.notifyDegradation(ctx, modelDegradation(model))
		for _, m := range model.Models {
			broadcast(web.NewResolutionEvent(progress.PhaseModel,
				fmt.Sprintf("model %s/%s (%s)", m.Provider, m.Model, model.TierLabel)))
		}

		var checks []status.KeyStatus
		now := time.Now()
		for _, p := range e.handle.Current().Providers() {
			ok := e.validator.Has(p.EnvVar, p.ValidatePattern)
			checks = append(checks, status.KeyStatus{EnvVar: p.EnvVar, Owner: p.ID, Valid: ok, CheckedAt: now})
			broadcast(web.NewKeyCheckEvent(fmt.Sprintf("%s (%s): valid=%v", p.EnvVar, p.ID, ok)))
		}
		e.holder.SetKeys(checks)

		for _, s := range e.handle.Current().Skills() {
			result := res.ResolveFallback(s.ID)
			e.holder.SetSkill(result)
			e.notifyDegradation(ctx, skillDegradation(result))
			broadcast(web.NewResolutionEvent(progress.Phase(result.Tier),
				fmt.Sprintf("skill %q served by %s tier: %s", result.SkillID, result.Tier, result.StrategyText)))
		}
	}

	// watch catalog overrides when enabled, re-resolving on swap
	if cfg.WatchCatalog {
		watcher := catalog.NewWatcher(e.handle, cfg.LocalCatalogPath, cfg.GlobalCatalogPath, e.log, func(c *catalog.Catalog) {
			broadcast(web.NewCatalogEvent(fmt.Sprintf("catalog reloaded: %d skills, %d providers", len(c.Skills()), len(c.Providers()))))
			resolveAll()
		})
		go func() {
			if watchErr := watcher.Watch(ctx); watchErr != nil {
				e.log.Warn("catalog watcher: %v", watchErr)
			}
		}()
	}

	srv := web.NewServer(web.ServerConfig{
		Port:          o.Port,
		Strategy:      string(e.handle.Current().Strategy(resolverStrategy(o, cfg)).ID),
		CatalogSource: catalogSource(cfg),
	}, hub, buffer, e.holder)

	e.log.SetPhase(progress.PhaseSystem)
	e.log.Print("web dashboard: http://localhost:%d", o.Port)

	resolveAll()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	e.log.Print("stopped after %s", e.log.Elapsed())
	return nil
}

// resolverStrategy picks the strategy id the dashboard header shows.
func resolverStrategy(o opts, cfg *config.Config) catalog.StrategyID {
	if o.Strategy != "" {
		return catalog.NormalizeStrategy(o.Strategy)
	}
	return catalog.NormalizeStrategy(cfg.Strategy)
}

// catalogSource describes where the effective catalog came from.
func catalogSource(cfg *config.Config) string {
	switch {
	case cfg.LocalCatalogPath != "":
		return cfg.LocalCatalogPath
	case cfg.GlobalCatalogPath != "":
		return cfg.GlobalCatalogPath
	default:
		return "embedded defaults"
	}
}
