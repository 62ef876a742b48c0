// Package flowgraph is the public entry point of the conversion-and-layout
// engine. An Engine loads legacy or canonical workflow definitions into a
// positioned visual graph and saves an edited graph back to canonical IR or
// text.
//
// Engines are safe for concurrent use. No operation touches the network,
// the filesystem or the environment.
package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/internal/convert"
	"github.com/rendis/flowgraph/internal/dag"
	"github.com/rendis/flowgraph/internal/legacy"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/internal/roundtrip"
	"github.com/rendis/flowgraph/internal/validation"
	"github.com/rendis/flowgraph/pkg/schema"
)

// Format re-exports the textual encodings accepted by SaveText.
type Format = codec.Format

const (
	FormatJSON = codec.FormatJSON
	FormatYAML = codec.FormatYAML
)

// LoadResult is the forward output of Load.
type LoadResult struct {
	Nodes     []schema.Node       `json:"nodes"`
	Edges     []schema.Edge       `json:"edges"`
	Trigger   schema.TriggerIR    `json:"trigger"`
	Callbacks []schema.CallbackIR `json:"callbacks,omitempty"`
	IR        *schema.WorkflowIR  `json:"ir"`
	WasLegacy bool                `json:"wasLegacy"`
}

// Graph returns the nodes and edges as one visual graph.
func (r *LoadResult) Graph() *schema.Graph {
	return &schema.Graph{Nodes: r.Nodes, Edges: r.Edges}
}

type config struct {
	logger     *slog.Logger
	flatten    legacy.FlattenPolicy
	convert    convert.Options
	tolerance  float64
	format     codec.Format
	skipSchema bool
}

// Option configures an Engine.
type Option func(*config)

// WithLogger sets the logger. Phases are logged at debug level. The
// default logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFlattenPolicy selects how legacy children of non-container blocks
// are placed. Default legacy.SiblingFlatten.
func WithFlattenPolicy(p legacy.FlattenPolicy) Option {
	return func(c *config) {
		if p != nil {
			c.flatten = p
		}
	}
}

// WithReconstruct toggles rebuilding branches and nested blocks from
// parent/child nodes on save. Default true.
func WithReconstruct(on bool) Option {
	return func(c *config) { c.convert.Reconstruct = on }
}

// WithConvertOptions replaces the converter options wholesale, including
// layout constants.
func WithConvertOptions(o convert.Options) Option {
	return func(c *config) { c.convert = o }
}

// WithTolerance sets the round-trip position drift tolerance in pixels.
func WithTolerance(px float64) Option {
	return func(c *config) { c.tolerance = px }
}

// WithFormat sets the intermediate text format used by RoundTrip.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithoutSchemaValidation skips the IR schema pass in Load. Sorting and
// id checks still run.
func WithoutSchemaValidation() Option {
	return func(c *config) { c.skipSchema = true }
}

// Engine composes the adapter, validator, converter and round-trip
// validator.
type Engine struct {
	cfg       config
	adapter   *legacy.Adapter
	validator validation.Validator
	conv      *convert.Converter
	rt        *roundtrip.Validator
}

// New builds an Engine. It fails only if an embedded schema or query does
// not compile.
func New(opts ...Option) (*Engine, error) {
	cfg := config{
		logger:    logging.Discard(),
		flatten:   legacy.SiblingFlatten{},
		convert:   convert.DefaultOptions(),
		tolerance: roundtrip.DefaultTolerance,
		format:    codec.FormatJSON,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	v, err := validation.NewWorkflowValidator()
	if err != nil {
		return nil, fmt.Errorf("flowgraph: %w", err)
	}
	conv, err := convert.New(cfg.convert)
	if err != nil {
		return nil, fmt.Errorf("flowgraph: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		adapter:   legacy.NewAdapter(legacy.WithFlattenPolicy(cfg.flatten)),
		validator: v,
		conv:      conv,
		rt:        roundtrip.NewValidator(conv, roundtrip.WithFormat(cfg.format), roundtrip.WithTolerance(cfg.tolerance)),
	}, nil
}

// Load converts a raw legacy or canonical object into a visual graph:
// adapt, validate, then lay out.
func (e *Engine) Load(ctx context.Context, raw map[string]any, src schema.EventSource) (*LoadResult, error) {
	log := logging.LogWith(ctx, e.cfg.logger)

	adapted, err := e.adapter.Adapt(raw, src)
	if err != nil {
		return nil, e.fail(ctx, "adapt", err)
	}
	log.Debug("adapted", "was_legacy", adapted.WasLegacy, "steps", len(adapted.IR.Steps))

	if !e.cfg.skipSchema {
		result := e.validator.Validate(adapted.IR)
		for _, w := range result.Warnings {
			log.Warn("validation warning", "path", w.Path, "code", w.Code, "message", w.Message)
		}
		if err := result.ToError(); err != nil {
			return nil, e.fail(ctx, "validate", err)
		}
	}

	g, err := e.conv.ToGraph(adapted.IR)
	if err != nil {
		return nil, e.fail(ctx, "to graph", err)
	}
	log.Debug("converted to graph", "nodes", len(g.Nodes), "edges", len(g.Edges))

	return &LoadResult{
		Nodes:     g.Nodes,
		Edges:     g.Edges,
		Trigger:   adapted.IR.Trigger,
		Callbacks: adapted.IR.Callbacks,
		IR:        adapted.IR,
		WasLegacy: adapted.WasLegacy,
	}, nil
}

// LoadText parses text in JSON or YAML and loads it.
func (e *Engine) LoadText(ctx context.Context, text []byte, src schema.EventSource) (*LoadResult, error) {
	raw, err := codec.ParseRaw(text)
	if err != nil {
		return nil, e.fail(ctx, "parse", err)
	}
	return e.Load(ctx, raw, src)
}

// Save converts an edited visual graph back to canonical IR.
func (e *Engine) Save(ctx context.Context, g *schema.Graph, trigger schema.TriggerIR) (*schema.WorkflowIR, error) {
	ir, err := e.conv.FromGraph(g, trigger)
	if err != nil {
		return nil, e.fail(ctx, "from graph", err)
	}
	logging.LogWith(ctx, e.cfg.logger).Debug("converted to IR", "steps", len(ir.Steps), "callbacks", len(ir.Callbacks))
	return ir, nil
}

// SaveText converts g to IR and encodes it.
func (e *Engine) SaveText(ctx context.Context, g *schema.Graph, trigger schema.TriggerIR, f Format) ([]byte, error) {
	ir, err := e.Save(ctx, g, trigger)
	if err != nil {
		return nil, err
	}
	text, err := codec.Marshal(ir, f)
	if err != nil {
		return nil, e.fail(ctx, "encode", err)
	}
	return text, nil
}

// RoundTrip runs g through the full save and load cycle and reports the
// structural differences between the first and last IR.
func (e *Engine) RoundTrip(ctx context.Context, g *schema.Graph, trigger schema.TriggerIR) (*roundtrip.Report, error) {
	report, err := e.rt.Run(g, trigger)
	if err != nil {
		return nil, e.fail(ctx, "round trip", err)
	}
	logging.LogWith(ctx, e.cfg.logger).Debug("round trip complete",
		"ok", report.OK(), "errors", len(report.Errors()), "warnings", len(report.Warnings()))
	return report, nil
}

// Validate runs the IR schema checks and returns every issue found.
func (e *Engine) Validate(ctx context.Context, ir *schema.WorkflowIR) *schema.ValidationResult {
	result := e.validator.Validate(ir)
	logging.LogWith(ctx, e.cfg.logger).Debug("validated", "errors", len(result.Errors), "warnings", len(result.Warnings))
	return result
}

// Sort returns the top-level steps of ir in execution order.
func (e *Engine) Sort(ctx context.Context, ir *schema.WorkflowIR) ([]schema.StepIR, error) {
	if ir == nil {
		return nil, e.fail(ctx, "sort", schema.NewSchemaError("/", "workflow is nil"))
	}
	if err := dag.ValidateUniqueStepIDs(ir.Steps); err != nil {
		return nil, e.fail(ctx, "sort", err)
	}
	sorted, err := dag.Sort(ir.Steps)
	if err != nil {
		return nil, e.fail(ctx, "sort", err)
	}
	return sorted, nil
}

// fail logs err with its code, tagging the offending step when the error
// names one, and returns it unchanged.
func (e *Engine) fail(ctx context.Context, phase string, err error) error {
	var dangling *schema.DanglingDependencyError
	if errors.As(err, &dangling) {
		ctx = logging.WithStepID(ctx, dangling.StepID)
	}
	var dup *schema.DuplicateStepIDError
	if errors.As(err, &dup) {
		ctx = logging.WithStepID(ctx, dup.ID)
	}
	logging.LogWith(ctx, e.cfg.logger).Debug(phase+" failed", "code", schema.CodeOf(err), "error", err)
	return err
}
