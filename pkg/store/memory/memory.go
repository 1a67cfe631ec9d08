package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/store"
)

type edgeKey struct {
	kind   string
	source common.VertexRef
	target common.VertexRef
}

// MemoryStorage is a process-local GraphStore. Like the database backends it
// does not reject duplicate handles or edges, which makes it suitable for
// exercising the engine's own dedup guarantees.
type MemoryStorage struct {
	mu       sync.RWMutex
	nextID   int64
	vertices map[common.VertexRef]common.Vertex
	byHandle map[string][]common.VertexRef
	out      map[common.VertexRef][]edgeKey
	edges    []edgeKey
}

func New() *MemoryStorage {
	return &MemoryStorage{
		vertices: make(map[common.VertexRef]common.Vertex),
		byHandle: make(map[string][]common.VertexRef),
		out:      make(map[common.VertexRef][]edgeKey),
	}
}

func (m *MemoryStorage) FindVertexByHandle(ctx context.Context, handle string) (common.Vertex, bool, error) {
	if err := ctx.Err(); err != nil {
		return common.Vertex{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := m.byHandle[handle]
	if len(refs) == 0 {
		return common.Vertex{}, false, nil
	}
	return m.vertices[refs[0]], true, nil
}

func (m *MemoryStorage) CreateVertex(ctx context.Context, v common.Vertex) (common.Vertex, error) {
	if err := ctx.Err(); err != nil {
		return common.Vertex{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	v.ID = common.VertexRef(strconv.FormatInt(m.nextID, 10))
	m.vertices[v.ID] = v
	m.byHandle[v.Handle] = append(m.byHandle[v.Handle], v.ID)
	return v, nil
}

func (m *MemoryStorage) EdgeExists(ctx context.Context, source common.VertexRef, targetHandle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.out[source] {
		if m.vertices[e.target].Handle == targetHandle {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStorage) CreateEdge(ctx context.Context, kind string, source, target common.VertexRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vertices[source]; !ok {
		return store.ErrVertexNotFound
	}
	if _, ok := m.vertices[target]; !ok {
		return store.ErrVertexNotFound
	}
	e := edgeKey{kind: kind, source: source, target: target}
	m.out[source] = append(m.out[source], e)
	m.edges = append(m.edges, e)
	return nil
}

func (m *MemoryStorage) Neighbors(ctx context.Context, ref common.VertexRef) ([]common.Vertex, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.vertices[ref]; !ok {
		return nil, store.ErrVertexNotFound
	}
	res := make([]common.Vertex, 0, len(m.out[ref]))
	for _, e := range m.out[ref] {
		res = append(res, m.vertices[e.target])
	}
	store.SortVertices(res)
	return res, nil
}

func (m *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

// VertexCount returns the number of stored vertices, duplicates included.
func (m *MemoryStorage) VertexCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vertices)
}

// VerticesWithHandle returns how many vertices share handle.
func (m *MemoryStorage) VerticesWithHandle(handle string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byHandle[handle])
}

// EdgeCount returns the number of stored edges, duplicates included.
func (m *MemoryStorage) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.edges)
}
