package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/store/memory"

	"github.com/alicebob/miniredis/v2"
)

func TestCrawlConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"CRAWL_MAX_PAGES", "CRAWL_PAGE_SIZE", "CRAWL_PARALLEL", "CRAWL_PAGE_DELAY"} {
		t.Setenv(k, "")
	}

	cfg := CrawlConfigFromEnv()
	if cfg.MaxPages != 5 || cfg.PageSize != 200 || cfg.Parallelism != 200 || cfg.PageDelay != 0 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestCrawlConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("CRAWL_MAX_PAGES", "2")
	t.Setenv("CRAWL_PAGE_SIZE", "50")
	t.Setenv("CRAWL_PARALLEL", "")
	t.Setenv("CRAWL_PAGE_DELAY", "1500ms")

	cfg := CrawlConfigFromEnv()
	if cfg.MaxPages != 2 || cfg.PageSize != 50 || cfg.Parallelism != 50 || cfg.PageDelay != 1500*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestNewStore_Adapters(t *testing.T) {
	t.Setenv("STORE_ADAPTER", "memory")
	s, err := NewStore(context.Background())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := s.(*memory.MemoryStorage); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}

	t.Setenv("STORE_ADAPTER", "cassandra")
	if _, err := NewStore(context.Background()); err == nil {
		t.Fatalf("expected error for unknown adapter")
	}

	t.Setenv("STORE_ADAPTER", "pgx")
	t.Setenv("DATABASE_URL", "")
	if _, err := NewStore(context.Background()); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestNewPublisher_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("PUBLISH_ADAPTER", "redis")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	p, err := NewPublisher(context.Background())
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()

	if err := p.Publish(context.Background(), "presentation", "twitterConnection", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNewEngine_MemoryAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("STORE_ADAPTER", "memory")
	t.Setenv("PUBLISH_ADAPTER", "redis")
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("TWITTER_BEARER_TOKEN", "token")

	engine, err := NewEngine(context.Background(), CrawlConfigFromEnv())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := engine.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewEngine_MissingCredentials(t *testing.T) {
	t.Setenv("TWITTER_BEARER_TOKEN", "")
	t.Setenv("TWITTER_CONSUMER_KEY", "")
	t.Setenv("TWITTER_CONSUMER_SECRET", "")

	if _, err := NewEngine(context.Background(), CrawlConfigFromEnv()); err == nil {
		t.Fatalf("expected error without twitter credentials")
	}
}

func TestNewLeaseClient_Disabled(t *testing.T) {
	tests := []struct {
		name    string
		adapter string
		lease   string
	}{
		{"MemoryStore", "memory", "true"},
		{"Neo4jStore", "neo4j", "true"},
		{"Disabled", "pgx", "false"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE_ADAPTER", tc.adapter)
			t.Setenv("CRAWL_LEASE", tc.lease)

			client, closeFn, err := NewLeaseClient(context.Background())
			if err != nil {
				t.Fatalf("NewLeaseClient: %v", err)
			}
			defer closeFn()
			if client != nil {
				t.Fatalf("expected no lease client")
			}
		})
	}
}
