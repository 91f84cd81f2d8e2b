// Package api defines the value objects exchanged with the model server.
//
// Requests arrive as a [Command], a closed set of variants discriminated by
// [Kind]. Every variant validates its payload in its constructor, so a
// Command that exists is well formed. Handlers answer with a [Response],
// which renders itself as a single-key map for the JSON front end.
//
// Sample features are [Value]s: a tagged union of int64, float64, string,
// and nested lists. Payloads are copied on construction and on access, so
// Commands and Responses can be shared between goroutines and cached.
//
// The package also carries the error taxonomy used across the server:
// [ValidationError], [HandlerNotFoundError], [CapabilityMismatchError],
// [AuthenticationError], [UntrustedClientError], [RateLimitError],
// [ConfigurationError], and the generic [APIError]. [StatusCode] maps any
// of them to an HTTP status.
//
// The package has no external dependencies and performs no I/O.
package api
