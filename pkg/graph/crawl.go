package graph

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
	"github.com/OFFIS-RIT/followgraph/pkg/source"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxPages = 5
	DefaultPageSize = 200
)

// CrawlState is the position of a crawl in its page loop.
type CrawlState string

const (
	StateIdle       CrawlState = "idle"
	StateFetching   CrawlState = "fetching"
	StateProcessing CrawlState = "processing"
	StateCompleted  CrawlState = "completed"
)

type CrawlResult struct {
	Handle               string `json:"handle"`
	PagesProcessed       int    `json:"pages_processed"`
	ConnectionsProcessed int    `json:"connections_processed"`
	ConnectionsFailed    int    `json:"connections_failed"`
	EdgesCreated         int    `json:"edges_created"`
	EdgesPublished       int    `json:"edges_published"`
	// Truncated is set when the page bound stopped pagination.
	Truncated bool `json:"truncated"`
}

// Crawler fetches pages for a root handle one after another, links every
// connection to the root and emits the root's neighborhood once at the end.
type Crawler struct {
	source      source.ConnectionSource
	resolver    *VertexResolver
	edges       *EdgeSynchronizer
	emitter     *Emitter
	maxPages    int
	parallelism int
	pageDelay   time.Duration
}

// NewCrawlerParams configures a Crawler.
//
// MaxPages bounds the pages processed per crawl (default 5). Parallelism
// bounds concurrent connection work within a page (default 200). PageDelay
// is waited between page fetches.
type NewCrawlerParams struct {
	Source      source.ConnectionSource
	Resolver    *VertexResolver
	Edges       *EdgeSynchronizer
	Emitter     *Emitter
	MaxPages    int
	Parallelism int
	PageDelay   time.Duration
}

func NewCrawler(params NewCrawlerParams) *Crawler {
	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	parallelism := params.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultPageSize
	}
	return &Crawler{
		source:      params.Source,
		resolver:    params.Resolver,
		edges:       params.Edges,
		emitter:     params.Emitter,
		maxPages:    maxPages,
		parallelism: parallelism,
		pageDelay:   params.PageDelay,
	}
}

// Crawl builds the root's follow edges and publishes them. It only fails when
// the root itself cannot be resolved; page and connection failures shorten
// the crawl but the gathered edges are still emitted.
func (c *Crawler) Crawl(ctx context.Context, rootHandle string) (CrawlResult, error) {
	start := time.Now()
	defer func() { crawlDuration.Observe(time.Since(start).Seconds()) }()

	root := common.NormalizeHandle(rootHandle)
	res := CrawlResult{Handle: root}
	state := StateIdle

	if root == "" {
		crawlsTotal.WithLabelValues("root_failed").Inc()
		return res, fmt.Errorf("%w: %w", ErrRootResolutionFailed, ErrInvalidHandle)
	}

	user, err := c.source.LookupUser(ctx, root)
	if err != nil {
		crawlsTotal.WithLabelValues("root_failed").Inc()
		if errors.Is(err, source.ErrUnknownHandle) {
			return res, fmt.Errorf("%w: %s: %w", ErrRootResolutionFailed, root, err)
		}
		return res, fmt.Errorf("%w: %w", ErrRootResolutionFailed, sourceErr("lookup "+root, err))
	}
	if _, err := c.resolver.Resolve(ctx, root, user.DisplayName, user.ExternalID); err != nil {
		crawlsTotal.WithLabelValues("root_failed").Inc()
		return res, fmt.Errorf("%w: %w", ErrRootResolutionFailed, err)
	}

	partial := false
	cursor := ""
	for {
		if res.PagesProcessed > 0 && c.pageDelay > 0 {
			if err := util.Sleep(ctx, c.pageDelay); err != nil {
				logger.Warn("[Crawl] Stopped while waiting for next page", "handle", root, "err", err)
				partial = true
				break
			}
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("[Crawl] Stopped before next page", "handle", root, "err", err)
			partial = true
			break
		}

		state = c.transition(root, state, StateFetching)
		page, err := c.source.FetchPage(ctx, root, cursor)
		if err != nil {
			pagesFetched.WithLabelValues("failed").Inc()
			logger.Warn("[Crawl] Page fetch failed, emitting partial graph",
				"handle", root, "page", res.PagesProcessed+1, "err", sourceErr("fetch page", err))
			partial = true
			break
		}
		pagesFetched.WithLabelValues("ok").Inc()

		state = c.transition(root, state, StateProcessing)
		c.processPage(ctx, root, page, &res)
		res.PagesProcessed++
		logger.Debug("[Crawl] Page processed", "handle", root, "page", res.PagesProcessed, "connections", len(page.Connections))

		if !page.HasMore() {
			break
		}
		if res.PagesProcessed >= c.maxPages {
			res.Truncated = true
			break
		}
		cursor = page.NextCursor
	}
	c.transition(root, state, StateCompleted)

	emitCtx := ctx
	if ctx.Err() != nil {
		emitCtx = context.WithoutCancel(ctx)
	}
	emitted, err := c.emitter.Emit(emitCtx, root)
	if err != nil {
		logger.Error("[Crawl] Emission failed", "handle", root, "err", err)
	}
	res.EdgesPublished = emitted.EdgesPublished

	switch {
	case partial:
		crawlsTotal.WithLabelValues("partial").Inc()
	case res.Truncated:
		crawlsTotal.WithLabelValues("truncated").Inc()
	default:
		crawlsTotal.WithLabelValues("completed").Inc()
	}

	logger.Info("[Crawl] Finished",
		"handle", root,
		"pages", res.PagesProcessed,
		"connections", res.ConnectionsProcessed,
		"failed", res.ConnectionsFailed,
		"edges_created", res.EdgesCreated,
		"published", res.EdgesPublished,
		"truncated", res.Truncated,
	)
	return res, nil
}

func (c *Crawler) processPage(ctx context.Context, root string, page common.Page, res *CrawlResult) {
	var processed, failed, created int64

	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for _, conn := range page.Connections {
		g.Go(func() error {
			ok, err := c.processConnection(ctx, root, conn)
			if err != nil {
				logger.Warn("[Crawl] Connection skipped", "handle", root, "connection", conn.Handle, "err", err)
				connectionsTotal.WithLabelValues("failed").Inc()
				atomic.AddInt64(&failed, 1)
				return nil
			}
			connectionsTotal.WithLabelValues("ok").Inc()
			atomic.AddInt64(&processed, 1)
			if ok {
				atomic.AddInt64(&created, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.ConnectionsProcessed += int(processed)
	res.ConnectionsFailed += int(failed)
	res.EdgesCreated += int(created)
}

func (c *Crawler) processConnection(ctx context.Context, root string, conn common.Connection) (bool, error) {
	if _, err := c.resolver.Resolve(ctx, conn.Handle, conn.DisplayName, conn.ExternalID); err != nil {
		return false, err
	}
	edge, err := c.edges.EnsureEdge(ctx, root, conn.Handle)
	if err != nil {
		return false, err
	}
	return edge.Created, nil
}

func (c *Crawler) transition(root string, from, to CrawlState) CrawlState {
	logger.Debug("[Crawl] State change", "handle", root, "from", from, "to", to)
	return to
}
