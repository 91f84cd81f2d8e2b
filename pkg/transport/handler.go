package transport

import (
	"context"
	"strings"

	"github.com/rhuss/modelserve/pkg/api"
)

// Protocol names the front end a request arrived on.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolBinary Protocol = "binary"
	ProtocolMCP    Protocol = "mcp"
)

// Request is a decoded command together with the connection metadata
// middleware needs.
type Request struct {
	Command     api.Command
	RemoteAddr  string
	Credentials Credentials
	Protocol    Protocol

	// Header carries protocol metadata such as the user agent. Keys are
	// canonical HTTP header names.
	Header map[string]string
}

// Dispatcher handles a request and returns its response. Errors are
// rendered by the front end.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (api.Response, error)
}

// DispatcherFunc is an adapter that allows using an ordinary function as a
// Dispatcher.
type DispatcherFunc func(ctx context.Context, req *Request) (api.Response, error)

// Dispatch calls f(ctx, req).
func (f DispatcherFunc) Dispatch(ctx context.Context, req *Request) (api.Response, error) {
	return f(ctx, req)
}

// CommandBus is the subset of *bus.Bus the pipeline needs.
type CommandBus interface {
	Dispatch(ctx context.Context, cmd api.Command) (api.Response, error)
}

// Terminal returns the innermost Dispatcher, which hands the command to b.
func Terminal(b CommandBus) Dispatcher {
	return DispatcherFunc(func(ctx context.Context, req *Request) (api.Response, error) {
		return b.Dispatch(ctx, req.Command)
	})
}

// Credentials are the caller's credentials as presented on the wire.
type Credentials struct {
	// Scheme is "basic", "bearer", or empty when no credentials were sent.
	Scheme   string
	Username string
	Password string
	Token    string
}

// Empty reports whether no credentials were presented.
func (c Credentials) Empty() bool { return c.Scheme == "" }

// ParseAuthorization parses an HTTP Authorization header value. Unknown
// schemes are kept with the raw value as Token so authenticators can
// reject them.
func ParseAuthorization(header string) Credentials {
	header = strings.TrimSpace(header)
	if header == "" {
		return Credentials{}
	}
	scheme, value, _ := strings.Cut(header, " ")
	value = strings.TrimSpace(value)

	switch strings.ToLower(scheme) {
	case "basic":
		user, pass, ok := decodeBasic(value)
		if !ok {
			return Credentials{Scheme: "basic"}
		}
		return Credentials{Scheme: "basic", Username: user, Password: pass}
	case "bearer":
		return Credentials{Scheme: "bearer", Token: value}
	default:
		return Credentials{Scheme: strings.ToLower(scheme), Token: value}
	}
}

// Authorization renders c as an HTTP Authorization header value.
func (c Credentials) Authorization() string {
	switch c.Scheme {
	case "":
		return ""
	case "basic":
		return "Basic " + encodeBasic(c.Username, c.Password)
	case "bearer":
		return "Bearer " + c.Token
	default:
		return c.Scheme + " " + c.Token
	}
}
