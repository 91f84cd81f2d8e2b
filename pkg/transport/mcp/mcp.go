// Package mcp exposes every command as an MCP tool.
//
// Tool arguments use the same JSON shape as the REST bodies, so a tool
// call and a REST request for the same command are indistinguishable to
// the dispatcher apart from their Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/transport"
)

// remoteAddrHeader carries the peer address from the HTTP layer into the
// tool handler. Client supplied values are overwritten.
const remoteAddrHeader = "Modelserve-Remote-Addr"

var descriptions = map[api.Kind]string{
	api.KindPredictSample:  "Predict the target of a single sample",
	api.KindPredictSamples: "Predict the targets of a batch of samples",
	api.KindProbaSample:    "Class probabilities of a single sample",
	api.KindProbaSamples:   "Class probabilities of a batch of samples",
	api.KindRankSample:     "Ranking score of a single sample",
	api.KindScore:          "Ranking scores of a batch of samples",
	api.KindQueryModel:     "Describe the served model",
	api.KindServerStatus:   "Report server process information",
}

// Server registers one tool per command kind on an MCP server.
type Server struct {
	dispatcher transport.Dispatcher
	server     *mcp.Server
}

// NewServer creates an MCP server whose tools dispatch to d.
func NewServer(d transport.Dispatcher, version string) *Server {
	s := &Server{
		dispatcher: d,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "modelserve", Version: version},
			nil,
		),
	}
	for _, kind := range api.CommandKinds() {
		s.server.AddTool(&mcp.Tool{
			Name:        string(kind),
			Description: descriptions[kind],
			InputSchema: inputSchema(kind),
		}, s.call(kind))
	}
	return s
}

// MCPServer returns the underlying SDK server, for use with other
// transports.
func (s *Server) MCPServer() *mcp.Server { return s.server }

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set(remoteAddrHeader, r.RemoteAddr)
		h.ServeHTTP(w, r)
	})
}

func (s *Server) call(kind api.Kind) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args []byte
		if req.Params != nil {
			args = req.Params.Arguments
		}
		cmd, err := api.CommandFromJSON(kind, args)
		if err != nil {
			debug.Log("transport", "tool call rejected", "tool", kind, "error", err)
			return errorResult(err), nil
		}

		treq := &transport.Request{
			Command:    cmd,
			RemoteAddr: "mcp",
			Protocol:   transport.ProtocolMCP,
		}
		if req.Extra != nil && req.Extra.Header != nil {
			if addr := req.Extra.Header.Get(remoteAddrHeader); addr != "" {
				treq.RemoteAddr = addr
			}
			treq.Credentials = transport.ParseAuthorization(req.Extra.Header.Get("Authorization"))
			treq.Header = map[string]string{"User-Agent": req.Extra.Header.Get("User-Agent")}
		}

		resp, err := s.dispatcher.Dispatch(ctx, treq)
		if err != nil {
			return errorResult(err), nil
		}
		if e, ok := resp.(*api.ErrorResponse); ok {
			return errorResult(e), nil
		}
		body, err := json.Marshal(resp.AsMap())
		if err != nil {
			return errorResult(api.NewServerError("response could not be encoded")), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, nil
	}
}

// errorResult reports err as a failed tool call. The structured content
// carries the error type so clients can rebuild the error.
func errorResult(err error) *mcp.CallToolResult {
	e := api.AsErrorResponse(err)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: e.Message()}},
		StructuredContent: map[string]any{"type": e.Type(), "message": e.Message()},
		IsError:           true,
	}
}

func inputSchema(kind api.Kind) map[string]any {
	sample := map[string]any{
		"type":        "array",
		"description": "Feature values: numbers, strings, or nested lists",
		"items":       map[string]any{},
	}
	switch kind {
	case api.KindPredictSample, api.KindProbaSample, api.KindRankSample:
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{"sample": sample},
			"required":   []string{"sample"},
		}
	case api.KindPredictSamples, api.KindProbaSamples, api.KindScore:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{"samples": map[string]any{
				"type":  "array",
				"items": sample,
			}},
			"required": []string{"samples"},
		}
	default:
		return map[string]any{"type": "object"}
	}
}
