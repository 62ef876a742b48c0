package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/flowgraph/pkg/flowgraph"
	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

const legacyDef = `{
  "stages": [{
    "name": "main",
    "blocks": [{
      "type": "loop", "name": "Each", "input": {"array": "{{rows}}", "iterator": "row"},
      "blocks": [{"type": "log", "name": "Print", "input": {}}]
    }]
  }, {
    "name": "after",
    "blocks": [{"type": "http", "name": "Notify", "input": {}}]
  }]
}`

func buildRequest(toolName string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      toolName,
			Arguments: args,
		},
	}
}

func object(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func parse(t *testing.T, doc string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &m))
	return m
}

func extractText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	return mcp.GetTextFromContent(result.Content[0])
}

func unmarshalResult(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.False(t, result.IsError, extractText(t, result))
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), target))
}

func errorBody(t *testing.T, result *mcp.CallToolResult) toolError {
	t.Helper()
	require.True(t, result.IsError)
	var body toolError
	require.NoError(t, json.Unmarshal([]byte(extractText(t, result)), &body))
	return body
}

// loaded runs to_graph on the legacy definition and returns the graph and
// trigger as tool arguments.
func loaded(t *testing.T, s *Server) (graph, trigger map[string]any) {
	t.Helper()
	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"definition": parse(t, legacyDef),
	}))
	require.NoError(t, err)

	var res flowgraph.LoadResult
	unmarshalResult(t, result, &res)
	return object(t, res.Graph()), object(t, res.Trigger)
}

// --- flowgraph.to_graph ---

func TestToGraphTool_Legacy(t *testing.T) {
	s := newServer(t)
	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"definition":          parse(t, legacyDef),
		"event_source_type":   "OPTIN_FORM",
		"event_source_params": map[string]any{"form_id": "f-1"},
	}))
	require.NoError(t, err)

	var res flowgraph.LoadResult
	unmarshalResult(t, result, &res)
	assert.True(t, res.WasLegacy)
	assert.Equal(t, schema.TriggerForm, res.Trigger.Type)
	assert.Equal(t, "f-1", res.Trigger.Config["form_id"])
	require.Len(t, res.IR.Steps, 2)
	assert.Equal(t, "{{rows}}", res.IR.Steps[0].Config["items"])

	var loopNode *schema.Node
	for i := range res.Nodes {
		if res.Nodes[i].ID == res.IR.Steps[0].ID {
			loopNode = &res.Nodes[i]
		}
	}
	require.NotNil(t, loopNode)
	assert.Equal(t, schema.NodeKindCompoundLoop, loopNode.Kind)
}

func TestToGraphTool_Text(t *testing.T) {
	s := newServer(t)
	text := "trigger:\n  type: table\n  config: {}\nsteps:\n  - id: only\n    name: Only\n    type: log\n    config: {}\n"
	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{"text": text}))
	require.NoError(t, err)

	var res flowgraph.LoadResult
	unmarshalResult(t, result, &res)
	assert.False(t, res.WasLegacy)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "only", res.Nodes[0].ID)
}

func TestToGraphTool_MissingInput(t *testing.T) {
	result, err := newServer(t).handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestToGraphTool_TypedErrors(t *testing.T) {
	s := newServer(t)

	result, err := s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"definition": map[string]any{"nodes": []any{}},
	}))
	require.NoError(t, err)
	assert.Equal(t, schema.ErrCodeFormat, errorBody(t, result).Code)

	result, err = s.handleToGraph(context.Background(), buildRequest("flowgraph.to_graph", map[string]any{
		"text": "{ not json",
	}))
	require.NoError(t, err)
	assert.Equal(t, schema.ErrCodeParse, errorBody(t, result).Code)
}

// --- flowgraph.from_graph ---

func TestFromGraphTool(t *testing.T) {
	s := newServer(t)
	graph, trigger := loaded(t, s)

	result, err := s.handleFromGraph(context.Background(), buildRequest("flowgraph.from_graph", map[string]any{
		"graph":   graph,
		"trigger": trigger,
	}))
	require.NoError(t, err)

	var ir schema.WorkflowIR
	unmarshalResult(t, result, &ir)
	require.Len(t, ir.Steps, 2)
	assert.Len(t, ir.Steps[0].NestedBlocks, 1)
	assert.Equal(t, []string{ir.Steps[0].ID}, ir.Steps[1].DependsOn)
	assert.Equal(t, schema.TriggerWebhook, ir.Trigger.Type)
}

func TestFromGraphTool_Text(t *testing.T) {
	s := newServer(t)
	graph, trigger := loaded(t, s)

	result, err := s.handleFromGraph(context.Background(), buildRequest("flowgraph.from_graph", map[string]any{
		"graph":   graph,
		"trigger": trigger,
		"format":  "yaml",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := extractText(t, result)
	assert.True(t, strings.HasPrefix(text, "version:"), text)
	assert.Contains(t, text, "nested_blocks:")

	result, err = s.handleFromGraph(context.Background(), buildRequest("flowgraph.from_graph", map[string]any{
		"graph":   graph,
		"trigger": trigger,
		"format":  "toml",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFromGraphTool_MissingArgs(t *testing.T) {
	s := newServer(t)
	result, err := s.handleFromGraph(context.Background(), buildRequest("flowgraph.from_graph", map[string]any{
		"trigger": map[string]any{"type": "webhook"},
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(t, result), "graph is required")
}

func TestFromGraphTool_ConversionError(t *testing.T) {
	s := newServer(t)
	result, err := s.handleFromGraph(context.Background(), buildRequest("flowgraph.from_graph", map[string]any{
		"graph": map[string]any{
			"nodes": []any{
				map[string]any{"id": "a", "kind": "log", "position": map[string]any{"x": 0, "y": 0}},
			},
			"edges": []any{
				map[string]any{"id": "ghost->a", "source": "ghost", "target": "a", "kind": "dependency"},
			},
		},
		"trigger": map[string]any{"type": "webhook"},
	}))
	require.NoError(t, err)
	assert.Equal(t, schema.ErrCodeDanglingDependency, errorBody(t, result).Code)
}

// --- flowgraph.validate ---

func TestValidateTool(t *testing.T) {
	s := newServer(t)
	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{
		"ir": parse(t, `{
		  "version": "1.0",
		  "trigger": {"type": "webhook", "config": {}},
		  "steps": [
		    {"id": "b", "name": "B", "type": "log", "config": {}, "depends_on": ["a"]},
		    {"id": "a", "name": "A", "type": "log", "config": {}}
		  ]
		}`),
	}))
	require.NoError(t, err)

	var out validateResult
	unmarshalResult(t, result, &out)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)
	assert.Equal(t, []string{"a", "b"}, out.Order)
}

func TestValidateTool_SchemaIssues(t *testing.T) {
	s := newServer(t)
	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{
		"ir": parse(t, `{"trigger": {"type": "cron"}, "steps": [{"id": "bad id", "type": "log"}]}`),
	}))
	require.NoError(t, err)

	var out validateResult
	unmarshalResult(t, result, &out)
	assert.False(t, out.Valid)

	var paths []string
	for _, e := range out.Errors {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "/trigger/type")
	assert.Contains(t, paths, "/steps/0/id")
	assert.Empty(t, out.Order)
}

func TestValidateTool_Cycle(t *testing.T) {
	s := newServer(t)
	result, err := s.handleValidate(context.Background(), buildRequest("flowgraph.validate", map[string]any{
		"ir": parse(t, `{"trigger": {"type": "webhook"}, "steps": [
		  {"id": "a", "type": "log", "depends_on": ["b"]},
		  {"id": "b", "type": "log", "depends_on": ["a"]}
		]}`),
	}))
	require.NoError(t, err)

	var out validateResult
	unmarshalResult(t, result, &out)
	assert.False(t, out.Valid)
	require.NotNil(t, out.Graph)
	assert.Equal(t, schema.ErrCodeCycleDetected, out.Graph.Code)
}

func TestValidateTool_MissingIR(t *testing.T) {
	result, err := newServer(t).handleValidate(context.Background(), buildRequest("flowgraph.validate", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// --- flowgraph.roundtrip ---

func TestRoundTripTool(t *testing.T) {
	s := newServer(t)
	graph, trigger := loaded(t, s)

	result, err := s.handleRoundTrip(context.Background(), buildRequest("flowgraph.roundtrip", map[string]any{
		"graph":   graph,
		"trigger": trigger,
	}))
	require.NoError(t, err)

	var out struct {
		OK          bool             `json:"ok"`
		Differences []map[string]any `json:"differences"`
		Text        string           `json:"text"`
	}
	unmarshalResult(t, result, &out)
	assert.True(t, out.OK)
	assert.Empty(t, out.Differences)
	assert.NotEmpty(t, out.Text)
}

func TestRoundTripTool_DuplicateNodes(t *testing.T) {
	s := newServer(t)
	node := map[string]any{"id": "a", "kind": "log", "position": map[string]any{"x": 0, "y": 0}}
	result, err := s.handleRoundTrip(context.Background(), buildRequest("flowgraph.roundtrip", map[string]any{
		"graph":   map[string]any{"nodes": []any{node, node}, "edges": []any{}},
		"trigger": map[string]any{"type": "webhook"},
	}))
	require.NoError(t, err)
	assert.Equal(t, schema.ErrCodeDuplicateStepID, errorBody(t, result).Code)
}

// --- helpers under test ---

func TestErrorResult_UncodedError(t *testing.T) {
	body := errorBody(t, errorResult(errors.New("boom")))
	assert.Equal(t, "", body.Code)
	assert.Equal(t, "boom", body.Message)
}
