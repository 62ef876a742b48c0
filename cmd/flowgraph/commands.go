package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/pkg/flowgraph"
	"github.com/rendis/flowgraph/pkg/mcp"
	"github.com/rendis/flowgraph/pkg/schema"
)

// ErrInvalid is returned by validate and roundtrip when the input fails
// the check. The report has already been printed.
var ErrInvalid = errors.New("check failed")

// ToGraphCmd loads a definition and prints the graph as JSON.
type ToGraphCmd struct {
	File        string            `arg:"" optional:"" default:"-" help:"Definition file, JSON or YAML (- for stdin)."`
	EventSource string            `name:"event-source" help:"Legacy event source type used to infer the trigger."`
	Param       map[string]string `name:"param" short:"p" help:"Legacy event source parameter, key=value."`
}

func (c *ToGraphCmd) Run(rt *app) error {
	text, err := readInput(rt, c.File)
	if err != nil {
		return err
	}
	src := schema.EventSource{Type: c.EventSource}
	if len(c.Param) > 0 {
		src.Params = make(map[string]any, len(c.Param))
		for k, v := range c.Param {
			src.Params[k] = v
		}
	}

	res, err := rt.engine.LoadText(rt.ctx, text, src)
	if err != nil {
		return err
	}
	return writeJSON(rt.stdout, res)
}

// FromGraphCmd reads a graph document, as printed by to-graph, and prints
// the canonical IR.
type FromGraphCmd struct {
	File   string `arg:"" optional:"" default:"-" help:"Graph document with nodes, edges and trigger (- for stdin)."`
	Format string `help:"Output format: json or yaml. Defaults to the configured format."`
}

func (c *FromGraphCmd) Run(rt *app) error {
	doc, err := readGraph(rt, c.File)
	if err != nil {
		return err
	}
	name := c.Format
	if name == "" {
		name = rt.cfg.Format
	}
	f, err := codec.ParseFormat(name)
	if err != nil {
		return err
	}

	text, err := rt.engine.SaveText(rt.ctx, doc.Graph(), doc.Trigger, f)
	if err != nil {
		return err
	}
	_, err = rt.stdout.Write(text)
	return err
}

// ValidateCmd checks canonical IR and prints every issue.
type ValidateCmd struct {
	File string `arg:"" optional:"" default:"-" help:"Canonical IR file, JSON or YAML (- for stdin)."`
}

func (c *ValidateCmd) Run(rt *app) error {
	ir, err := readIR(rt, c.File)
	if err != nil {
		return err
	}

	result := rt.engine.Validate(rt.ctx, ir)
	for _, issue := range result.Issues() {
		fmt.Fprintf(rt.stdout, "%s\t%s\t%s\t%s\n", issue.Severity, issue.Path, issue.Code, issue.Message)
	}
	if !result.Valid() {
		return fmt.Errorf("%w: %d error(s)", ErrInvalid, len(result.Errors))
	}
	if _, err := rt.engine.Sort(rt.ctx, ir); err != nil {
		return err
	}
	_, err = fmt.Fprintln(rt.stdout, "ok")
	return err
}

// SortCmd prints step ids in execution order, one per line.
type SortCmd struct {
	File string `arg:"" optional:"" default:"-" help:"Canonical IR file, JSON or YAML (- for stdin)."`
}

func (c *SortCmd) Run(rt *app) error {
	ir, err := readIR(rt, c.File)
	if err != nil {
		return err
	}
	sorted, err := rt.engine.Sort(rt.ctx, ir)
	if err != nil {
		return err
	}
	for _, s := range sorted {
		if _, err := fmt.Fprintln(rt.stdout, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// RoundTripCmd runs a graph document through save and reload and prints
// the report as JSON.
type RoundTripCmd struct {
	File string `arg:"" optional:"" default:"-" help:"Graph document with nodes, edges and trigger (- for stdin)."`
}

func (c *RoundTripCmd) Run(rt *app) error {
	doc, err := readGraph(rt, c.File)
	if err != nil {
		return err
	}
	report, err := rt.engine.RoundTrip(rt.ctx, doc.Graph(), doc.Trigger)
	if err != nil {
		return err
	}
	if err := writeJSON(rt.stdout, map[string]any{"ok": report.OK(), "differences": report.Differences}); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d error difference(s)", ErrInvalid, len(report.Errors()))
	}
	return nil
}

// MCPCmd serves the MCP tools over stdio.
type MCPCmd struct{}

func (MCPCmd) Run(rt *app) error {
	srv, err := mcp.NewServer(mcp.ServerDeps{Engine: rt.engine, Logger: rt.logger, Version: version})
	if err != nil {
		return err
	}
	rt.logger.InfoContext(rt.ctx, "mcp server listening on stdio")
	return srv.ServeIO(rt.ctx, rt.stdin, rt.stdout)
}

// --- I/O helpers ---

func readInput(rt *app, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(rt.stdin)
	}
	return os.ReadFile(path)
}

func readIR(rt *app, path string) (*schema.WorkflowIR, error) {
	text, err := readInput(rt, path)
	if err != nil {
		return nil, err
	}
	return codec.Unmarshal(text)
}

// readGraph decodes a graph document. The to-graph output is accepted as
// is; only nodes, edges and trigger are read.
func readGraph(rt *app, path string) (*flowgraph.LoadResult, error) {
	text, err := readInput(rt, path)
	if err != nil {
		return nil, err
	}
	var doc flowgraph.LoadResult
	if err := json.Unmarshal(text, &doc); err != nil {
		return nil, &schema.ParseError{Format: string(codec.FormatJSON), Cause: err}
	}
	return &doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
