package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const vertexLabel = "Handle"

// Neo4jStorage implements store.GraphStore on a Neo4j database. Vertices are
// (:Handle {handle, name, idStr}) nodes and edges are typed relationships.
type Neo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStorageParams configures a Neo4jStorage. Database may be empty to
// use the server default.
type NewNeo4jStorageParams struct {
	URI      string
	User     string
	Password string
	Database string
}

// NewNeo4jStorage connects to Neo4j and verifies connectivity.
func NewNeo4jStorage(ctx context.Context, params NewNeo4jStorageParams) (*Neo4jStorage, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.User, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return NewNeo4jStorageWithDriver(driver, params.Database), nil
}

func NewNeo4jStorageWithDriver(driver neo4j.DriverWithContext, database string) *Neo4jStorage {
	return &Neo4jStorage{driver: driver, database: database}
}

func (s *Neo4jStorage) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStorage) FindVertexByHandle(ctx context.Context, handle string) (common.Vertex, bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (h:` + vertexLabel + ` {handle: $handle})
		RETURN elementId(h) AS id, h.handle AS handle, h.name AS name, h.idStr AS idStr
		ORDER BY id
		LIMIT 1
	`
	result, err := session.Run(ctx, query, map[string]any{"handle": handle})
	if err != nil {
		return common.Vertex{}, false, fmt.Errorf("failed to find handle %q: %w", handle, err)
	}
	if result.Next(ctx) {
		return vertexFromRecord(result.Record()), true, nil
	}
	if err := result.Err(); err != nil {
		return common.Vertex{}, false, fmt.Errorf("failed to find handle %q: %w", handle, err)
	}
	return common.Vertex{}, false, nil
}

func (s *Neo4jStorage) CreateVertex(ctx context.Context, v common.Vertex) (common.Vertex, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		CREATE (h:` + vertexLabel + ` {handle: $handle, name: $name, idStr: $idStr})
		RETURN elementId(h) AS id
	`
	result, err := session.Run(ctx, query, map[string]any{
		"handle": v.Handle,
		"name":   v.DisplayName,
		"idStr":  v.ExternalID,
	})
	if err != nil {
		return common.Vertex{}, fmt.Errorf("failed to create handle %q: %w", v.Handle, err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return common.Vertex{}, fmt.Errorf("failed to create handle %q: %w", v.Handle, err)
	}
	v.ID = common.VertexRef(getString(record, "id"))
	return v, nil
}

func (s *Neo4jStorage) EdgeExists(ctx context.Context, source common.VertexRef, targetHandle string) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (s:` + vertexLabel + `)-->(t:` + vertexLabel + ` {handle: $target})
		WHERE elementId(s) = $source
		RETURN count(t) > 0 AS exists
	`
	result, err := session.Run(ctx, query, map[string]any{
		"source": string(source),
		"target": targetHandle,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check edge: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check edge: %w", err)
	}
	exists, _ := record.Get("exists")
	b, _ := exists.(bool)
	return b, nil
}

func (s *Neo4jStorage) CreateEdge(ctx context.Context, kind string, source, target common.VertexRef) error {
	relType, err := relationshipType(kind)
	if err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MATCH (s:` + vertexLabel + `), (t:` + vertexLabel + `)
		WHERE elementId(s) = $source AND elementId(t) = $target
		CREATE (s)-[r:` + relType + `]->(t)
		RETURN count(r) AS created
	`
	result, err := session.Run(ctx, query, map[string]any{
		"source": string(source),
		"target": string(target),
	})
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	created, _ := record.Get("created")
	if n, _ := created.(int64); n == 0 {
		return store.ErrVertexNotFound
	}
	return nil
}

func (s *Neo4jStorage) Neighbors(ctx context.Context, ref common.VertexRef) ([]common.Vertex, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := `
		MATCH (s:` + vertexLabel + `)-->(t:` + vertexLabel + `)
		WHERE elementId(s) = $source
		RETURN elementId(t) AS id, t.handle AS handle, t.name AS name, t.idStr AS idStr
		ORDER BY handle, id
	`
	result, err := session.Run(ctx, query, map[string]any{"source": string(ref)})
	if err != nil {
		return nil, fmt.Errorf("failed to list neighbors: %w", err)
	}

	res := make([]common.Vertex, 0)
	for result.Next(ctx) {
		res = append(res, vertexFromRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to list neighbors: %w", err)
	}
	return res, nil
}

func (s *Neo4jStorage) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// relationshipType maps an edge kind to a Cypher relationship type. Types
// cannot be query parameters, so only identifier characters are accepted.
func relationshipType(kind string) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("empty edge kind")
	}
	for _, r := range kind {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return "", fmt.Errorf("invalid edge kind %q", kind)
		}
	}
	return strings.ToUpper(kind), nil
}

func vertexFromRecord(record *neo4j.Record) common.Vertex {
	return common.Vertex{
		ID:          common.VertexRef(getString(record, "id")),
		Handle:      getString(record, "handle"),
		DisplayName: getString(record, "name"),
		ExternalID:  getString(record, "idStr"),
	}
}

func getString(record *neo4j.Record, key string) string {
	if record == nil {
		return ""
	}
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return fmt.Sprint(val)
}
