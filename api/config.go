// Package api provides the HTTP API server for starting idea searches and
// streaming their progress.
package api

import (
	"time"

	"github.com/Goer17/InnoTree/pkg/embeddings"
	"github.com/Goer17/InnoTree/pkg/vector"
)

// DefaultKeepAlive is the interval of comment lines on an idle stream.
const DefaultKeepAlive = 15 * time.Second

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// KeepAlive is how often an idle /stream response gets a comment line so
	// proxies keep the connection open. Zero uses DefaultKeepAlive.
	KeepAlive time.Duration

	// VectorDriver and Embedder back literature search on /papers and the
	// search_papers MCP tool. Both are optional.
	VectorDriver vector.Driver
	Embedder     embeddings.Embedder

	// NoMCP serves an MCP endpoint without tools.
	NoMCP bool
}
