package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/flowgraph/internal/codec"
	"github.com/rendis/flowgraph/internal/logging"
	"github.com/rendis/flowgraph/pkg/schema"
)

// SourceMCP tags log records of conversions started through this server.
const SourceMCP = "mcp"

// validateResult is the payload of flowgraph.validate.
type validateResult struct {
	Valid    bool                     `json:"valid"`
	Errors   []schema.ValidationIssue `json:"errors"`
	Warnings []schema.ValidationIssue `json:"warnings"`
	Order    []string                 `json:"order,omitempty"`
	Graph    *toolError               `json:"graph_error,omitempty"`
}

// toolError is the body of every error result.
type toolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleToGraph loads a definition into a visual graph.
func (s *Server) handleToGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.correlate(ctx)
	src := schema.EventSource{
		Type:   req.GetString("event_source_type", ""),
		Params: mcp.ParseStringMap(req, "event_source_params", nil),
	}

	if def := mcp.ParseStringMap(req, "definition", nil); def != nil {
		res, err := s.engine.Load(ctx, def, src)
		if err != nil {
			return errorResult(err), nil
		}
		return marshalResult(res)
	}

	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("definition or text is required"), nil
	}
	res, err := s.engine.LoadText(ctx, []byte(text), src)
	if err != nil {
		return errorResult(err), nil
	}
	return marshalResult(res)
}

// handleFromGraph saves an edited graph as IR, or as text when a format is
// requested.
func (s *Server) handleFromGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.correlate(ctx)
	g, trigger, bad := graphArgs(req)
	if bad != nil {
		return bad, nil
	}

	if name := req.GetString("format", ""); name != "" {
		f, err := codec.ParseFormat(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := s.engine.SaveText(ctx, g, trigger, f)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}

	ir, err := s.engine.Save(ctx, g, trigger)
	if err != nil {
		return errorResult(err), nil
	}
	return marshalResult(ir)
}

// handleValidate runs the schema checks and, when they pass, the
// dependency ordering of the top-level steps.
func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.correlate(ctx)
	var ir schema.WorkflowIR
	if err := decodeArg(req, "ir", &ir); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ir.Steps == nil {
		ir.Steps = []schema.StepIR{}
	}

	result := s.engine.Validate(ctx, &ir)
	out := validateResult{
		Valid:    result.Valid(),
		Errors:   nonNil(result.Errors),
		Warnings: nonNil(result.Warnings),
	}
	if out.Valid {
		sorted, err := s.engine.Sort(ctx, &ir)
		if err != nil {
			out.Valid = false
			out.Graph = &toolError{Code: schema.CodeOf(err), Message: err.Error()}
		} else {
			for _, st := range sorted {
				out.Order = append(out.Order, st.ID)
			}
		}
	}
	return marshalResult(out)
}

// handleRoundTrip reports the differences a save and reload would cause.
func (s *Server) handleRoundTrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = s.correlate(ctx)
	g, trigger, bad := graphArgs(req)
	if bad != nil {
		return bad, nil
	}

	report, err := s.engine.RoundTrip(ctx, g, trigger)
	if err != nil {
		return errorResult(err), nil
	}
	return marshalResult(map[string]any{
		"ok":          report.OK(),
		"differences": nonNil(report.Differences),
		"text":        report.Text,
	})
}

// --- helpers ---

// correlate tags ctx with a fresh conversion id.
func (s *Server) correlate(ctx context.Context) context.Context {
	ctx = logging.WithIDs(ctx, uuid.New().String(), SourceMCP, "")
	logging.LogWith(ctx, s.logger).Debug("tool call")
	return ctx
}

func graphArgs(req mcp.CallToolRequest) (*schema.Graph, schema.TriggerIR, *mcp.CallToolResult) {
	var g schema.Graph
	if err := decodeArg(req, "graph", &g); err != nil {
		return nil, schema.TriggerIR{}, mcp.NewToolResultError(err.Error())
	}
	var trigger schema.TriggerIR
	if err := decodeArg(req, "trigger", &trigger); err != nil {
		return nil, schema.TriggerIR{}, mcp.NewToolResultError(err.Error())
	}
	return &g, trigger, nil
}

// decodeArg re-decodes the object argument key into target.
func decodeArg(req mcp.CallToolRequest, key string, target any) error {
	raw := mcp.ParseStringMap(req, key, nil)
	if raw == nil {
		return fmt.Errorf("%s is required", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("invalid %s: %v", key, err)
	}
	return nil
}

// errorResult reports err as a JSON error body carrying its code.
func errorResult(err error) *mcp.CallToolResult {
	body, mErr := json.Marshal(toolError{Code: schema.CodeOf(err), Message: err.Error()})
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
