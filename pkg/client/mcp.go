package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
)

// MCP sends commands as tool calls to the MCP front end. Each command kind
// is a tool of the same name.
type MCP struct {
	session *mcp.ClientSession
	opts    options
}

var _ Client = (*MCP)(nil)

// DialMCP connects to the streamable HTTP endpoint of an MCP front end,
// for example "http://localhost:8000/mcp".
func DialMCP(ctx context.Context, endpoint string, opts ...Option) (*MCP, error) {
	o := buildOptions(opts)
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
	}
	if auth := o.credentials.Authorization(); auth != "" {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc = &http.Client{
			Transport: &headerTransport{base: base, headers: map[string]string{"Authorization": auth}},
			Timeout:   hc.Timeout,
			Jar:       hc.Jar,
		}
	}
	return ConnectMCP(ctx, &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: hc}, opts...)
}

// ConnectMCP performs the MCP handshake over t. Credentials only reach the
// server over HTTP transports; see DialMCP.
func ConnectMCP(ctx context.Context, t mcp.Transport, opts ...Option) (*MCP, error) {
	c := mcp.NewClient(&mcp.Implementation{Name: "modelserve-client", Version: "v1"}, nil)
	session, err := c.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}
	return &MCP{session: session, opts: buildOptions(opts)}, nil
}

// Do calls the tool named after cmd's kind.
func (c *MCP) Do(ctx context.Context, cmd api.Command) (api.Response, error) {
	if _, ok := ctx.Deadline(); !ok && c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      string(cmd.Kind()),
		Arguments: api.CommandAsMap(cmd),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("calling %s: %w", cmd.Kind(), err)
	}

	text := resultText(res)
	debug.Log("client", "mcp call", "kind", cmd.Kind(), "is_error", res.IsError)

	if res.IsError {
		return nil, api.NewErrorResponse(resultErrorType(res), text)
	}
	var body responseBody
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", cmd.Kind(), err)
	}
	return body.response(cmd.Kind())
}

// Close ends the MCP session.
func (c *MCP) Close() error {
	return c.session.Close()
}

func resultText(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func resultErrorType(res *mcp.CallToolResult) api.ErrorType {
	if m, ok := res.StructuredContent.(map[string]any); ok {
		if t, ok := m["type"].(string); ok && t != "" {
			return api.ErrorType(t)
		}
	}
	return api.ErrorTypeServerError
}

// headerTransport is an http.RoundTripper that adds fixed headers to every
// request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
