package graph

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/publish"
	"github.com/OFFIS-RIT/followgraph/pkg/source"
	"github.com/OFFIS-RIT/followgraph/pkg/store"
)

// Engine wires the resolver, synchronizer, crawler and emitter around one
// store, source and publisher. Its dedup state lives and dies with the
// instance, so independent engines can share a process.
//
// An Engine should be created using NewEngine.
type Engine struct {
	store     store.GraphStore
	publisher publish.Publisher

	resolver *VertexResolver
	edges    *EdgeSynchronizer
	emitter  *Emitter
	crawler  *Crawler
}

// NewEngineParams defines the collaborators and crawl policy of an Engine.
//
// Store, Source and Publisher are required. Channel and Event default to
// "presentation" and "twitterConnection".
type NewEngineParams struct {
	Store     store.GraphStore
	Source    source.ConnectionSource
	Publisher publish.Publisher

	MaxPages    int
	Parallelism int
	PageDelay   time.Duration

	Channel string
	Event   string
}

// NewEngine creates an Engine.
//
// Example:
//
//	engine, err := graph.NewEngine(graph.NewEngineParams{
//		Store:     memory.New(),
//		Source:    twitterClient,
//		Publisher: publisher,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	res, err := engine.Crawl(ctx, "root")
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, errors.New("graph engine requires a store")
	}
	if params.Source == nil {
		return nil, errors.New("graph engine requires a connection source")
	}
	if params.Publisher == nil {
		return nil, errors.New("graph engine requires a publisher")
	}

	resolver := NewVertexResolver(params.Store)
	edges := NewEdgeSynchronizer(params.Store, resolver)
	emitter := NewEmitter(params.Store, params.Publisher, params.Channel, params.Event)
	crawler := NewCrawler(NewCrawlerParams{
		Source:      params.Source,
		Resolver:    resolver,
		Edges:       edges,
		Emitter:     emitter,
		MaxPages:    params.MaxPages,
		Parallelism: params.Parallelism,
		PageDelay:   params.PageDelay,
	})

	return &Engine{
		store:     params.Store,
		publisher: params.Publisher,
		resolver:  resolver,
		edges:     edges,
		emitter:   emitter,
		crawler:   crawler,
	}, nil
}

// Crawl runs one bounded crawl for rootHandle. It returns an error wrapping
// ErrRootResolutionFailed only when the root cannot be resolved.
func (e *Engine) Crawl(ctx context.Context, rootHandle string) (CrawlResult, error) {
	return e.crawler.Crawl(ctx, rootHandle)
}

// Close releases the store and publisher.
func (e *Engine) Close(ctx context.Context) error {
	return errors.Join(e.publisher.Close(), e.store.Close(ctx))
}
