// Package engine is the top-level orchestrator of spec.md §6.2: it
// loads and composes configuration, routes a data type (or explicit
// scenario id) to a resolved enrichment pipeline and rule set, and
// evaluates a record against that resolution, populating a Report.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/cache"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/config"
	"github.com/mraysmit/apex-sub000/internal/driver"
	"github.com/mraysmit/apex-sub000/internal/enrich"
	"github.com/mraysmit/apex-sub000/internal/evalctx"
	"github.com/mraysmit/apex-sub000/internal/lookup"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/resilience"
	"github.com/mraysmit/apex-sub000/internal/rules"
	"github.com/mraysmit/apex-sub000/internal/scenario"
	"github.com/mraysmit/apex-sub000/internal/telemetry"
	"github.com/mraysmit/apex-sub000/internal/value"
)

// Engine wires every component package into the conceptual API of
// spec.md §6.2: loadConfig, reload, route, evaluate, invalidate.
type Engine struct {
	loader  *config.Loader
	drivers *driver.Registry

	cacheTier        *cache.L1
	secrets          ports.SecretProvider
	metrics          ports.MetricsSink
	audit            ports.AuditSink
	clock            clock.Clock
	log              telemetry.Logger
	resiliencePolicy resilience.Policy
	evalTimeout      time.Duration

	mu        sync.RWMutex
	handles   map[string]*config.ConfigHandle // path -> most recently loaded handle
	datasets  *datasetRegistry
	scenarios map[string]scenario.Scenario
	registry  config.ScenarioRegistryDoc
	router    *scenario.Router
}

// New builds an Engine rooted at basePath (where relative config paths
// resolve from), applying opts over sensible defaults.
func New(basePath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		loader:           config.NewLoader(basePath),
		drivers:          driver.Default(),
		cacheTier:        cache.New(cache.DefaultPolicy(), nil),
		metrics:          telemetry.DefaultMetricsSink(),
		clock:            clock.Default,
		log:              telemetry.DefaultLogger(),
		resiliencePolicy: resilience.DefaultPolicy(),
		evalTimeout:      5 * time.Second,
		handles:          map[string]*config.ConfigHandle{},
		datasets:         newDatasetRegistry(),
		scenarios:        map[string]scenario.Scenario{},
	}
	e.audit = telemetry.NewLogAuditSink(e.log)
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.rebuildRouter()
	return e, nil
}

// LoadConfig reads, classifies, and binds one config file, registering
// its effect (a new dataset driver, a new scenario, a new scenario
// registry) with the engine. Rule-config files are bound but otherwise
// inert until a scenario's route pulls them in.
func (e *Engine) LoadConfig(path string) (*config.ConfigHandle, error) {
	resolved := e.resolvePath(path)
	handle, err := e.loader.LoadFile(resolved)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.handles[resolved] = handle
	e.mu.Unlock()

	if err := e.applyHandle(handle); err != nil {
		return nil, err
	}
	e.auditEvent("config.loaded", resolved, map[string]any{"type": string(handle.Type), "version_instance": handle.VersionInstance.String()})
	return handle, nil
}

// Reload re-reads handle.Path and atomically installs the new version;
// in-flight evaluations hold their own ResolvedProgram from an earlier
// Route call and are unaffected (spec.md §1: "a reload produces a new
// version atomically; in-flight evaluations continue on their original
// snapshot").
func (e *Engine) Reload(handle *config.ConfigHandle) (*config.ConfigHandle, error) {
	fresh, err := e.loader.LoadFile(handle.Path)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.handles[handle.Path] = fresh
	e.mu.Unlock()

	if err := e.applyHandle(fresh); err != nil {
		return nil, err
	}
	e.auditEvent("config.reloaded", handle.Path, map[string]any{"version_instance": fresh.VersionInstance.String()})
	return fresh, nil
}

// applyHandle registers a freshly loaded/reloaded document's side
// effects: dataset handles build (or rebuild) a driver; scenario and
// scenario-registry handles rebuild the router.
func (e *Engine) applyHandle(handle *config.ConfigHandle) error {
	switch handle.Type {
	case config.TypeDataset:
		doc, ok := handle.Doc.(*config.DatasetDoc)
		if !ok {
			return apexerr.New(apexerr.KindSchemaViolation, "Engine.applyHandle", "dataset document has wrong shape")
		}
		drv, err := e.drivers.New(doc.Driver, mergeDatasetConfig(doc))
		if err != nil {
			return apexerr.Wrap(apexerr.KindSchemaViolation, "Engine.applyHandle", "cannot build driver for "+doc.Metadata.Name, err)
		}
		if sp, ok := drv.(interface{ SetSecretProvider(ports.SecretProvider) }); ok && e.secrets != nil {
			sp.SetSecretProvider(e.secrets)
		}
		wrapped := resilience.Wrap(doc.Metadata.Name, drv, e.resiliencePolicy, e.clock)
		if err := wrapped.Init(context.Background()); err != nil {
			return apexerr.Wrap(apexerr.KindConnectionError, "Engine.applyHandle", "cannot init driver for "+doc.Metadata.Name, err)
		}
		e.datasets.set(doc.Metadata.Name, wrapped)

	case config.TypeScenario:
		doc, ok := handle.Doc.(*config.ScenarioDoc)
		if !ok {
			return apexerr.New(apexerr.KindSchemaViolation, "Engine.applyHandle", "scenario document has wrong shape")
		}
		e.mu.Lock()
		e.scenarios[doc.Scenario.ID] = scenario.Scenario{
			ID: doc.Scenario.ID, DataTypes: doc.Scenario.DataTypes, RuleConfigFiles: doc.Scenario.RuleConfigFiles,
		}
		e.mu.Unlock()
		e.rebuildRouter()

	case config.TypeScenarioRegistry:
		doc, ok := handle.Doc.(*config.ScenarioRegistryDoc)
		if !ok {
			return apexerr.New(apexerr.KindSchemaViolation, "Engine.applyHandle", "scenario-registry document has wrong shape")
		}
		e.mu.Lock()
		e.registry = *doc
		e.mu.Unlock()
		e.rebuildRouter()
	}
	return nil
}

func (e *Engine) rebuildRouter() {
	e.mu.Lock()
	defer e.mu.Unlock()
	scenarios := make([]scenario.Scenario, 0, len(e.scenarios))
	for _, s := range e.scenarios {
		scenarios = append(scenarios, s)
	}
	e.router = scenario.NewRouter(e.registry, scenarios)
}

func (e *Engine) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.loader.BasePath(), path)
}

// ResolvedProgram is the output of Route: a built enrichment pipeline
// and rule evaluator, immutable and safe to reuse across many Evaluate
// calls until the next Route (spec.md §1/§6.2).
type ResolvedProgram struct {
	Scenario scenario.Scenario
	pipeline *enrich.Pipeline
	ruleset  *rules.Evaluator
}

// Route resolves dataType (honoring an optional explicit scenarioID
// override) to a Scenario, loads and composes every rule-config file it
// declares, and builds the enrichment pipeline and rule evaluator those
// compose into.
func (e *Engine) Route(dataType, scenarioID string) (*ResolvedProgram, error) {
	e.mu.RLock()
	router := e.router
	e.mu.RUnlock()
	if router == nil {
		return nil, apexerr.New(apexerr.KindNotFound, "Engine.Route", "no scenario registry or scenarios loaded")
	}

	sc, err := router.Resolve(dataType, scenarioID)
	if err != nil {
		return nil, err
	}

	docs := make([]config.RuleConfigDoc, 0, len(sc.RuleConfigFiles))
	for _, file := range sc.RuleConfigFiles {
		resolved := e.resolvePath(file)
		e.mu.RLock()
		handle, ok := e.handles[resolved]
		e.mu.RUnlock()
		if !ok {
			handle, err = e.LoadConfig(file)
			if err != nil {
				return nil, err
			}
		}
		doc, ok := handle.Doc.(*config.RuleConfigDoc)
		if !ok {
			return nil, apexerr.New(apexerr.KindSchemaViolation, "Engine.Route", resolved+" is not a rule-config document")
		}
		docs = append(docs, *doc)
	}

	composed, err := config.Compose(docs)
	if err != nil {
		return nil, err
	}

	executor := lookup.New(e.datasets, e.cacheTier)
	enrichments := make([]enrich.Enrichment, 0, len(composed.Enrichments))
	for _, decl := range composed.Enrichments {
		en, err := buildEnrichment(decl, e.datasets, executor)
		if err != nil {
			return nil, err
		}
		enrichments = append(enrichments, en)
	}
	pipeline, err := enrich.NewPipeline(enrichments)
	if err != nil {
		return nil, err
	}

	ruleList := make([]*rules.Rule, 0, len(composed.Rules))
	for _, decl := range composed.Rules {
		r, err := buildRule(decl)
		if err != nil {
			return nil, err
		}
		ruleList = append(ruleList, r)
	}
	groups := make([]rules.Group, len(composed.RuleGroups))
	for i, decl := range composed.RuleGroups {
		groups[i] = buildGroup(decl)
	}
	evaluator, err := rules.NewEvaluator(ruleList, groups, e.clock)
	if err != nil {
		return nil, err
	}

	return &ResolvedProgram{Scenario: sc, pipeline: pipeline, ruleset: evaluator}, nil
}

// EvaluateOptions tunes one Evaluate call.
type EvaluateOptions struct {
	Timeout         time.Duration // 0 uses the engine default
	IncludeSnapshot bool
}

// Report is the user-visible outcome of one evaluation: every rule's
// Result, severity counts, optionally the final context snapshot, and
// the decision the terminal approval-rule pattern expresses (spec.md
// §7: "a decision derived from the terminal approval rule pattern if
// present").
type Report struct {
	Results         []rules.Result
	CountBySeverity map[rules.Severity]int
	Snapshot        value.Value
	Decision        string
}

// Evaluate runs program's pipeline then rule set against record, within
// a deadline derived per spec.md §5 (the evaluation's own timeout, or
// the engine default).
func (e *Engine) Evaluate(program *ResolvedProgram, record map[string]value.Value, opts EvaluateOptions) (Report, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.evalTimeout
	}
	goCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ctx := evalctx.New(record)
	if err := program.pipeline.Run(goCtx, ctx); err != nil {
		return Report{}, err
	}

	ruleReport, err := program.ruleset.Evaluate(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{Results: ruleReport.Results, CountBySeverity: ruleReport.CountBySeverity}
	if opts.IncludeSnapshot {
		report.Snapshot = ctx.Snapshot()
	}
	if len(ruleReport.Results) > 0 {
		terminal := ruleReport.Results[len(ruleReport.Results)-1]
		report.Decision = terminal.Message
	}

	for _, r := range ruleReport.Results {
		if r.Outcome == rules.OutcomeFailed {
			e.metrics.IncCounter("rule.failures.by-severity", map[string]string{"severity": string(r.Severity)}, 1)
		}
	}
	e.auditEvent("evaluation.completed", program.Scenario.ID, map[string]any{"decision": report.Decision})

	return report, nil
}

// Invalidate clears every cached lookup entry for datasetRef whose key
// matches keyPattern, per spec.md §6.2. Cache keys are formatted
// "<datasetRef>:<key>" (internal/lookup.Executor.resolve), so the
// pattern is anchored to that prefix.
func (e *Engine) Invalidate(datasetRef, keyPattern string) error {
	e.cacheTier.InvalidatePattern(context.Background(), fmt.Sprintf("%s:%s", datasetRef, keyPattern))
	return nil
}

// mergeDatasetConfig folds a dataset document's top-level `data` rows
// into its `config` block under the "data" key, the shape every builtin
// driver constructor (internal/driver.NewInline, NewYamlFile, ...)
// expects; the two are kept as separate YAML fields in DatasetDoc so
// `data:` reads naturally next to `config:` in a dataset file rather
// than nested inside it.
func mergeDatasetConfig(doc *config.DatasetDoc) map[string]any {
	merged := make(map[string]any, len(doc.Config)+1)
	for k, v := range doc.Config {
		merged[k] = v
	}
	if len(doc.Data) > 0 {
		rows := make([]any, len(doc.Data))
		for i, row := range doc.Data {
			rows[i] = row
		}
		merged["data"] = rows
	}
	return merged
}

func (e *Engine) auditEvent(eventType, subject string, details map[string]any) {
	if e.audit == nil {
		return
	}
	e.audit.Emit(context.Background(), ports.AuditEvent{
		Timestamp: e.clock.Now(), EventType: eventType, Subject: subject, Details: details,
	})
}
