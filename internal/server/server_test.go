package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runLines feeds newline-separated requests through a server and decodes
// every response.
func runLines(t *testing.T, lines ...string) []MCPResponse {
	t.Helper()

	var out bytes.Buffer
	s := NewWithIO(strings.NewReader(strings.Join(lines, "\n")), &out, "test")
	require.NoError(t, s.Run())

	var resps []MCPResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r MCPResponse
		require.NoError(t, dec.Decode(&r))
		resps = append(resps, r)
	}
	return resps
}

func TestNew(t *testing.T) {
	s := New("1.2.3")
	require.NotNil(t, s)
	assert.NotNil(t, s.cache)
	assert.Equal(t, "1.2.3", s.version)
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{"string id", `{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`, "test-1", "tools/list"},
		{"number id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42), "ping"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"initialize"}`, nil, "initialize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			require.NoError(t, json.Unmarshal([]byte(tt.json), &req))
			assert.Equal(t, tt.wantID, req.ID)
			assert.Equal(t, tt.wantMethod, req.Method)
			assert.Equal(t, "2.0", req.JSONRPC)
		})
	}
}

func TestRun_Session(t *testing.T) {
	resps := runLines(t,
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":4,"method":"resources/list"}`,
	)
	require.Len(t, resps, 4, "notifications get no response")

	info := resps[0].Result.(map[string]interface{})["serverInfo"].(map[string]interface{})
	assert.Equal(t, "occupancy-tools", info["name"])
	assert.Equal(t, "test", info["version"])

	assert.Equal(t, float64(2), resps[1].ID)
	assert.Nil(t, resps[1].Error)

	tools := resps[2].Result.(map[string]interface{})["tools"].([]interface{})
	assert.Len(t, tools, len(GetToolDefinitions()))

	require.NotNil(t, resps[3].Error)
	assert.Equal(t, -32601, resps[3].Error.Code)
	assert.Contains(t, resps[3].Error.Message, "resources/list")
}

func TestRun_ParseError(t *testing.T) {
	resps := runLines(t, `{not json`, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.Len(t, resps, 2)
	require.NotNil(t, resps[0].Error)
	assert.Equal(t, -32700, resps[0].Error.Code)
	assert.Nil(t, resps[0].ID)
	assert.Nil(t, resps[1].Error)
}

func TestErrorResponse_OmitsEmptyData(t *testing.T) {
	s := New("dev")
	b, err := json.Marshal(s.errorResponse(1, -32601, "Method not found: x", ""))
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"data"`)
}
