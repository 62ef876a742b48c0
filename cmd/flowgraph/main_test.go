package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rendis/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyDoc = `{
  "stages": [{
    "name": "main",
    "blocks": [{
      "type": "condition", "name": "Check", "input": {},
      "then": [{"type": "log", "name": "OK", "input": {}}]
    }]
  }, {
    "name": "after",
    "blocks": [{"type": "delay", "name": "Wait", "input": {"delay_seconds": 5}}]
  }]
}`

const irDoc = `version: "1.0"
trigger:
  type: webhook
  config: {}
steps:
  - id: c
    name: C
    type: log
    config: {}
    depends_on: [b]
  - id: b
    name: B
    type: log
    config: {}
    depends_on: [a]
  - id: a
    name: A
    type: log
    config: {}
`

type result struct {
	stdout string
	stderr string
	err    error
}

// invoke runs the CLI with an empty settings file so the user's own
// settings never leak into tests.
func invoke(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	settings := writeFile(t, "settings.yaml", "")
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"--config", settings}, args...),
		strings.NewReader(stdin), &out, &errOut, envOf(nil))
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func TestVersion(t *testing.T) {
	r := invoke(t, "", "version")
	require.NoError(t, r.err)
	assert.Equal(t, version+"\n", r.stdout)
}

func TestUnknownCommand(t *testing.T) {
	assert.Error(t, invoke(t, "", "render").err)
}

func TestToGraph_Stdin(t *testing.T) {
	r := invoke(t, legacyDoc, "to-graph", "--event-source", "SCHEDULE", "-p", "cron=0 9 * * *")
	require.NoError(t, r.err)

	var doc struct {
		WasLegacy bool             `json:"wasLegacy"`
		Trigger   schema.TriggerIR `json:"trigger"`
		Nodes     []schema.Node    `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &doc))
	assert.True(t, doc.WasLegacy)
	assert.Equal(t, schema.TriggerSchedule, doc.Trigger.Type)
	assert.Equal(t, "0 9 * * *", doc.Trigger.Config["cron"])
	assert.Len(t, doc.Nodes, 3)
}

func TestToGraph_File(t *testing.T) {
	path := writeFile(t, "wf.yaml", irDoc)
	r := invoke(t, "", "to-graph", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, `"wasLegacy": false`)
}

func TestToGraph_TypedError(t *testing.T) {
	r := invoke(t, `{"nodes": []}`, "to-graph")
	require.Error(t, r.err)
	assert.True(t, errors.Is(r.err, schema.ErrFormat))
}

func TestToGraphThenFromGraph(t *testing.T) {
	loaded := invoke(t, legacyDoc, "to-graph")
	require.NoError(t, loaded.err)

	saved := invoke(t, loaded.stdout, "from-graph", "--format", "yaml")
	require.NoError(t, saved.err)
	assert.True(t, strings.HasPrefix(saved.stdout, "version:"), saved.stdout)
	assert.Contains(t, saved.stdout, "branches:")
	assert.Contains(t, saved.stdout, "seconds: 5")

	asJSON := invoke(t, loaded.stdout, "from-graph")
	require.NoError(t, asJSON.err)
	assert.True(t, strings.HasPrefix(asJSON.stdout, "{"))
}

func TestFromGraph_ParseError(t *testing.T) {
	r := invoke(t, "nodes: []", "from-graph")
	assert.True(t, errors.Is(r.err, schema.ErrParse))
}

func TestValidate(t *testing.T) {
	r := invoke(t, irDoc, "validate")
	require.NoError(t, r.err)
	assert.Equal(t, "ok\n", r.stdout)

	bad := invoke(t, `{"trigger": {"type": "cron"}, "steps": []}`, "validate")
	require.Error(t, bad.err)
	assert.True(t, errors.Is(bad.err, ErrInvalid))
	assert.Contains(t, bad.stdout, "/trigger/type")
}

func TestValidate_Cycle(t *testing.T) {
	doc := `{"trigger": {"type": "webhook"}, "steps": [
	  {"id": "a", "type": "log", "depends_on": ["b"]},
	  {"id": "b", "type": "log", "depends_on": ["a"]}
	]}`
	r := invoke(t, doc, "validate")
	assert.True(t, errors.Is(r.err, schema.ErrCycle))
}

func TestSort(t *testing.T) {
	r := invoke(t, irDoc, "sort")
	require.NoError(t, r.err)
	assert.Equal(t, "a\nb\nc\n", r.stdout)
}

func TestRoundTrip(t *testing.T) {
	loaded := invoke(t, legacyDoc, "to-graph")
	require.NoError(t, loaded.err)

	r := invoke(t, loaded.stdout, "roundtrip")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, `"ok": true`)
}

func TestDebugLogsCarryCorrelation(t *testing.T) {
	r := invoke(t, irDoc, "--log-level", "debug", "--log-format", "json", "sort")
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, `"source":"cli"`)
	assert.Contains(t, r.stderr, `"conversion_id":`)
}

func TestBadLogFlag(t *testing.T) {
	assert.Error(t, invoke(t, irDoc, "--log-format", "xml", "sort").err)
}
