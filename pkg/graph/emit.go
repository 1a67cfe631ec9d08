package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
	"github.com/OFFIS-RIT/followgraph/pkg/publish"
	"github.com/OFFIS-RIT/followgraph/pkg/store"
)

const (
	DefaultChannel = "presentation"
	DefaultEvent   = "twitterConnection"
)

type EmitResult struct {
	EdgesPublished int
	EdgesFailed    int
}

// Emitter publishes one EdgeNotification per outgoing edge of a root vertex.
type Emitter struct {
	store     store.GraphStore
	publisher publish.Publisher
	channel   string
	event     string
}

func NewEmitter(s store.GraphStore, p publish.Publisher, channel, event string) *Emitter {
	if channel == "" {
		channel = DefaultChannel
	}
	if event == "" {
		event = DefaultEvent
	}
	return &Emitter{store: s, publisher: p, channel: channel, event: event}
}

// Emit publishes the root's one-hop neighborhood. Failed publishes are logged
// and counted; the remaining neighbors are still published.
func (e *Emitter) Emit(ctx context.Context, rootHandle string) (EmitResult, error) {
	root := common.NormalizeHandle(rootHandle)
	if root == "" {
		return EmitResult{}, ErrInvalidHandle
	}

	rootVertex, found, err := e.store.FindVertexByHandle(ctx, root)
	if err != nil {
		return EmitResult{}, storeErr("find root "+root, err)
	}
	if !found {
		return EmitResult{}, fmt.Errorf("%s: %w", root, ErrRootNotFound)
	}

	neighbors, err := e.store.Neighbors(ctx, rootVertex.ID)
	if err != nil {
		return EmitResult{}, storeErr("neighbors of "+root, err)
	}

	var res EmitResult
	for _, n := range neighbors {
		notification := common.NewEdgeNotification(rootVertex, n)
		if err := e.publisher.Publish(ctx, e.channel, e.event, notification); err != nil {
			logger.Warn("[Emit] Failed to publish edge", "root", root, "follower", n.Handle, "err", err)
			notificationsTotal.WithLabelValues("failed").Inc()
			res.EdgesFailed++
			continue
		}
		notificationsTotal.WithLabelValues("published").Inc()
		res.EdgesPublished++
	}

	logger.Debug("[Emit] Published neighborhood", "root", root, "published", res.EdgesPublished, "failed", res.EdgesFailed)
	return res, nil
}
