package queue

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/graph"
	"github.com/OFFIS-RIT/followgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
)

// Leaser is satisfied by *leaselock.Client.
type Leaser interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// LeasedCrawler serializes crawls of the same root across workers sharing
// one database.
type LeasedCrawler struct {
	Crawler Crawler
	Leases  Leaser
	TTL     time.Duration
}

func (l *LeasedCrawler) Crawl(ctx context.Context, rootHandle string) (graph.CrawlResult, error) {
	key := "crawl:" + common.NormalizeHandle(rootHandle)

	var (
		res      graph.CrawlResult
		crawlErr error
	)
	err := l.Leases.WithLease(ctx, key, leaselock.Options{TTL: l.TTL, Wait: true, WaitInterval: time.Second, WaitJitter: 500 * time.Millisecond}, func(ctx context.Context) error {
		logger.Debug("[Queue] Lease acquired", "key", key)
		res, crawlErr = l.Crawler.Crawl(ctx, rootHandle)
		return nil
	})
	if err != nil {
		return graph.CrawlResult{Handle: common.NormalizeHandle(rootHandle)}, err
	}
	return res, crawlErr
}
