package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
)

// ErrVertexNotFound is returned when a referenced vertex does not exist or the
// reference is malformed for the backend.
var ErrVertexNotFound = errors.New("vertex not found")

// GraphStore defines the operations the sync engine needs from a graph
// database. Handles passed in are expected to be normalized already.
//
// Implementations are not required to enforce uniqueness of handles or edges;
// the engine performs lookup-before-create under its own guards.
type GraphStore interface {
	// FindVertexByHandle returns the vertex with the exact handle. The boolean
	// is false when no such vertex exists.
	FindVertexByHandle(ctx context.Context, handle string) (common.Vertex, bool, error)
	// CreateVertex stores v and returns it with its assigned ID.
	CreateVertex(ctx context.Context, v common.Vertex) (common.Vertex, error)
	// EdgeExists reports whether source has an outgoing edge to a vertex with
	// targetHandle.
	EdgeExists(ctx context.Context, source common.VertexRef, targetHandle string) (bool, error)
	CreateEdge(ctx context.Context, kind string, source, target common.VertexRef) error
	// Neighbors returns all one-hop outgoing neighbors of ref.
	Neighbors(ctx context.Context, ref common.VertexRef) ([]common.Vertex, error)
	Close(ctx context.Context) error
}
