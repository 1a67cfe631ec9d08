package pgx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStorage implements store.GraphStore on PostgreSQL. Vertices and edges
// live in two plain tables (see internal/db/migrations); handle uniqueness is
// left to the caller.
type GraphDBStorage struct {
	conn    pgxIConn
	closeFn func()
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithCloser registers fn to run on Close, typically pool.Close.
func WithCloser(fn func()) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.closeFn = fn
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an existing
// database connection or pool.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn: conn,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) FindVertexByHandle(ctx context.Context, handle string) (common.Vertex, bool, error) {
	var (
		id int64
		v  common.Vertex
	)
	err := s.conn.QueryRow(ctx, findVertexByHandleSQL, handle).Scan(&id, &v.Handle, &v.DisplayName, &v.ExternalID)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return common.Vertex{}, false, nil
		}
		return common.Vertex{}, false, fmt.Errorf("find vertex %q: %w", handle, err)
	}
	v.ID = formatRef(id)
	return v, true, nil
}

func (s *GraphDBStorage) CreateVertex(ctx context.Context, v common.Vertex) (common.Vertex, error) {
	var id int64
	err := s.conn.QueryRow(ctx, createVertexSQL, v.Handle, v.DisplayName, v.ExternalID).Scan(&id)
	if err != nil {
		return common.Vertex{}, fmt.Errorf("create vertex %q: %w", v.Handle, err)
	}
	v.ID = formatRef(id)
	return v, nil
}

func (s *GraphDBStorage) EdgeExists(ctx context.Context, source common.VertexRef, targetHandle string) (bool, error) {
	sourceID, err := parseRef(source)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := s.conn.QueryRow(ctx, edgeExistsSQL, sourceID, targetHandle).Scan(&exists); err != nil {
		return false, fmt.Errorf("check edge %s->%q: %w", source, targetHandle, err)
	}
	return exists, nil
}

func (s *GraphDBStorage) CreateEdge(ctx context.Context, kind string, source, target common.VertexRef) error {
	sourceID, err := parseRef(source)
	if err != nil {
		return err
	}
	targetID, err := parseRef(target)
	if err != nil {
		return err
	}

	var id int64
	err = s.conn.QueryRow(ctx, createEdgeSQL, kind, sourceID, targetID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return store.ErrVertexNotFound
		}
		return fmt.Errorf("create edge %s->%s: %w", source, target, err)
	}
	return nil
}

func (s *GraphDBStorage) Neighbors(ctx context.Context, ref common.VertexRef) ([]common.Vertex, error) {
	id, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, neighborsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("list neighbors of %s: %w", ref, err)
	}
	defer rows.Close()

	res := make([]common.Vertex, 0)
	for rows.Next() {
		var (
			nid int64
			v   common.Vertex
		)
		if err := rows.Scan(&nid, &v.Handle, &v.DisplayName, &v.ExternalID); err != nil {
			return nil, err
		}
		v.ID = formatRef(nid)
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *GraphDBStorage) Close(ctx context.Context) error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func formatRef(id int64) common.VertexRef {
	return common.VertexRef(strconv.FormatInt(id, 10))
}

func parseRef(ref common.VertexRef) (int64, error) {
	id, err := strconv.ParseInt(string(ref), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid vertex ref %q", store.ErrVertexNotFound, ref)
	}
	return id, nil
}

const findVertexByHandleSQL = `
SELECT id, handle, display_name, external_id
FROM vertices
WHERE handle = $1
ORDER BY id
LIMIT 1;
`

const createVertexSQL = `
INSERT INTO vertices (handle, display_name, external_id)
VALUES ($1, $2, $3)
RETURNING id;
`

const edgeExistsSQL = `
SELECT EXISTS (
    SELECT 1
    FROM edges e
    JOIN vertices t ON t.id = e.target_id
    WHERE e.source_id = $1 AND t.handle = $2
);
`

const createEdgeSQL = `
INSERT INTO edges (kind, source_id, target_id)
SELECT $1, s.id, t.id
FROM vertices s, vertices t
WHERE s.id = $2 AND t.id = $3
RETURNING id;
`

const neighborsSQL = `
SELECT t.id, t.handle, t.display_name, t.external_id
FROM edges e
JOIN vertices t ON t.id = e.target_id
WHERE e.source_id = $1
ORDER BY t.handle, t.id;
`
