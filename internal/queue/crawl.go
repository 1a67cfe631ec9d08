package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/graph"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const CrawlQueue = "crawl_queue"

// ErrMalformedMessage marks messages that can never succeed and go straight
// to the dead-letter queue.
var ErrMalformedMessage = errors.New("malformed crawl message")

type CrawlMsg struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	RequestedAt time.Time `json:"requested_at"`
}

// Crawler runs one crawl. *graph.Engine satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, rootHandle string) (graph.CrawlResult, error)
}

// NewCrawlMsg builds a job for handle with a fresh id.
func NewCrawlMsg(handle string) (CrawlMsg, error) {
	if !common.ValidHandle(handle) {
		return CrawlMsg{}, fmt.Errorf("%w: invalid handle %q", ErrMalformedMessage, handle)
	}
	id, err := gonanoid.New()
	if err != nil {
		return CrawlMsg{}, fmt.Errorf("generate job id: %w", err)
	}
	return CrawlMsg{
		ID:          id,
		Handle:      common.NormalizeHandle(handle),
		RequestedAt: time.Now().UTC(),
	}, nil
}

// EnqueueCrawl publishes a crawl job for handle on CrawlQueue.
func EnqueueCrawl(ctx context.Context, ch Channel, handle string) (CrawlMsg, error) {
	msg, err := NewCrawlMsg(handle)
	if err != nil {
		return CrawlMsg{}, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return CrawlMsg{}, fmt.Errorf("encode crawl message: %w", err)
	}
	if err := PublishFIFO(ctx, ch, CrawlQueue, body); err != nil {
		return CrawlMsg{}, fmt.Errorf("publish crawl message: %w", err)
	}
	logger.Info("[Queue] Crawl enqueued", "id", msg.ID, "handle", msg.Handle)
	return msg, nil
}

func decodeCrawlMsg(body []byte) (CrawlMsg, error) {
	var msg CrawlMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return CrawlMsg{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if !common.ValidHandle(msg.Handle) {
		return CrawlMsg{}, fmt.Errorf("%w: invalid handle %q", ErrMalformedMessage, msg.Handle)
	}
	return msg, nil
}

// ProcessCrawlMessage decodes a crawl job and runs it.
func ProcessCrawlMessage(ctx context.Context, crawler Crawler, body []byte) (graph.CrawlResult, error) {
	msg, err := decodeCrawlMsg(body)
	if err != nil {
		return graph.CrawlResult{}, err
	}

	logger.Info("[Queue] Processing crawl", "id", msg.ID, "handle", msg.Handle, "queued_for", time.Since(msg.RequestedAt).Round(time.Millisecond))
	res, err := crawler.Crawl(ctx, msg.Handle)
	if err != nil {
		return res, fmt.Errorf("crawl %s (%s): %w", msg.Handle, msg.ID, err)
	}

	logger.Info("[Queue] Crawl finished",
		"id", msg.ID,
		"handle", res.Handle,
		"pages", res.PagesProcessed,
		"connections", res.ConnectionsProcessed,
		"edges_created", res.EdgesCreated,
		"published", res.EdgesPublished,
		"truncated", res.Truncated,
	)
	return res, nil
}
