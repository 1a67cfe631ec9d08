package graph

import (
	"context"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/keylock"
	"github.com/OFFIS-RIT/followgraph/pkg/store"
)

type EdgeResult struct {
	Created bool
}

// EdgeSynchronizer creates follows edges at most once per ordered pair within
// one process. Engines sharing a store across processes can still race.
type EdgeSynchronizer struct {
	store    store.GraphStore
	resolver *VertexResolver
	locks    *keylock.Locker
}

func NewEdgeSynchronizer(s store.GraphStore, resolver *VertexResolver) *EdgeSynchronizer {
	return &EdgeSynchronizer{
		store:    s,
		resolver: resolver,
		locks:    keylock.New(),
	}
}

// EnsureEdge makes sure source follows target. Endpoints that do not exist
// yet are created without a display name or external id.
func (e *EdgeSynchronizer) EnsureEdge(ctx context.Context, sourceHandle, targetHandle string) (EdgeResult, error) {
	src := common.NormalizeHandle(sourceHandle)
	tgt := common.NormalizeHandle(targetHandle)
	if src == "" || tgt == "" {
		return EdgeResult{}, ErrInvalidHandle
	}
	if src == tgt {
		return EdgeResult{Created: false}, nil
	}

	var res EdgeResult
	err := e.locks.WithLock(ctx, src+"->"+tgt, func(ctx context.Context) error {
		source, err := e.resolver.Resolve(ctx, src, "", "")
		if err != nil {
			return err
		}

		exists, err := e.store.EdgeExists(ctx, source.ID, tgt)
		if err != nil {
			return storeErr("check edge "+src+"->"+tgt, err)
		}
		if exists {
			return nil
		}

		target, err := e.resolver.Resolve(ctx, tgt, "", "")
		if err != nil {
			return err
		}
		if err := e.store.CreateEdge(ctx, common.EdgeKindFollows, source.ID, target.ID); err != nil {
			return storeErr("create edge "+src+"->"+tgt, err)
		}
		edgesCreated.Inc()
		res.Created = true
		return nil
	})
	if err != nil {
		return EdgeResult{}, err
	}
	return res, nil
}
