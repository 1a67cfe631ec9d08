package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/followgraph/pkg/graph"
)

type fakeCrawler struct {
	handles []string
	err     error
}

func (f *fakeCrawler) Crawl(ctx context.Context, rootHandle string) (graph.CrawlResult, error) {
	f.handles = append(f.handles, rootHandle)
	if f.err != nil {
		return graph.CrawlResult{Handle: rootHandle}, f.err
	}
	return graph.CrawlResult{Handle: rootHandle, PagesProcessed: 1, ConnectionsProcessed: 3}, nil
}

func TestEnqueueCrawl(t *testing.T) {
	ch := &fakeChannel{}
	msg, err := EnqueueCrawl(context.Background(), ch, "@Root")
	if err != nil {
		t.Fatalf("EnqueueCrawl: %v", err)
	}
	if msg.Handle != "root" || len(msg.ID) != 21 || msg.RequestedAt.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(ch.sent) != 1 || ch.sent[0].key != CrawlQueue {
		t.Fatalf("expected one message on %s, got %+v", CrawlQueue, ch.sent)
	}

	var decoded CrawlMsg
	if err := json.Unmarshal(ch.sent[0].msg.Body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != msg.ID || decoded.Handle != "root" {
		t.Fatalf("unexpected body %s", ch.sent[0].msg.Body)
	}
}

func TestEnqueueCrawl_InvalidHandle(t *testing.T) {
	ch := &fakeChannel{}
	if _, err := EnqueueCrawl(context.Background(), ch, "not a handle"); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
	if len(ch.sent) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestProcessCrawlMessage(t *testing.T) {
	crawler := &fakeCrawler{}
	body := []byte(`{"id":"abc","handle":"root","requested_at":"2026-01-02T03:04:05Z"}`)

	res, err := ProcessCrawlMessage(context.Background(), crawler, body)
	if err != nil {
		t.Fatalf("ProcessCrawlMessage: %v", err)
	}
	if len(crawler.handles) != 1 || crawler.handles[0] != "root" || res.ConnectionsProcessed != 3 {
		t.Fatalf("unexpected crawl %v %+v", crawler.handles, res)
	}
}

func TestProcessCrawlMessage_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", `nope`},
		{"MissingHandle", `{"id":"abc"}`},
		{"BadHandle", `{"id":"abc","handle":"drop table"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			crawler := &fakeCrawler{}
			_, err := ProcessCrawlMessage(context.Background(), crawler, []byte(tc.body))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("expected ErrMalformedMessage, got %v", err)
			}
			if len(crawler.handles) != 0 {
				t.Fatalf("crawler must not run for malformed messages")
			}
		})
	}
}

func TestProcessCrawlMessage_CrawlError(t *testing.T) {
	crawler := &fakeCrawler{err: graph.ErrRootResolutionFailed}
	_, err := ProcessCrawlMessage(context.Background(), crawler, []byte(`{"id":"x","handle":"ghost"}`))
	if !errors.Is(err, graph.ErrRootResolutionFailed) {
		t.Fatalf("expected wrapped root failure, got %v", err)
	}
	if errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("crawl failures must be retryable")
	}
}
