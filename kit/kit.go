// Package kit holds the small transport-agnostic endpoint abstraction used
// to expose the same query operations over HTTP and MCP.
package kit

import "context"

// Endpoint is a transport-agnostic operation: decode happens at the edge,
// the endpoint only sees its typed request.
type Endpoint func(ctx context.Context, req any) (any, error)
