package graph

import (
	"context"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/store"

	"golang.org/x/sync/singleflight"
)

// VertexResolver maps handles to vertices, creating a vertex the first time a
// handle is seen. Concurrent calls for the same handle share one store round
// trip, so a resolver never creates two vertices for one handle.
type VertexResolver struct {
	store    store.GraphStore
	inflight singleflight.Group
}

func NewVertexResolver(s store.GraphStore) *VertexResolver {
	return &VertexResolver{store: s}
}

// Resolve returns the vertex for handle. An existing vertex is returned
// unchanged; displayName and externalID only apply when the vertex is created.
func (r *VertexResolver) Resolve(ctx context.Context, handle, displayName, externalID string) (common.Vertex, error) {
	h := common.NormalizeHandle(handle)
	if h == "" {
		return common.Vertex{}, ErrInvalidHandle
	}

	// The shared call is detached so one caller giving up does not fail the others.
	ch := r.inflight.DoChan(h, func() (any, error) {
		return r.resolve(context.WithoutCancel(ctx), h, displayName, externalID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return common.Vertex{}, res.Err
		}
		return res.Val.(common.Vertex), nil
	case <-ctx.Done():
		return common.Vertex{}, ctx.Err()
	}
}

func (r *VertexResolver) resolve(ctx context.Context, handle, displayName, externalID string) (common.Vertex, error) {
	v, found, err := r.store.FindVertexByHandle(ctx, handle)
	if err != nil {
		return common.Vertex{}, storeErr("find vertex "+handle, err)
	}
	if found {
		return v, nil
	}

	v, err = r.store.CreateVertex(ctx, common.Vertex{
		Handle:      handle,
		DisplayName: displayName,
		ExternalID:  externalID,
	})
	if err != nil {
		return common.Vertex{}, storeErr("create vertex "+handle, err)
	}
	verticesCreated.Inc()
	return v, nil
}
