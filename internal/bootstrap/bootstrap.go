package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/db"
	"github.com/OFFIS-RIT/followgraph/internal/queue"
	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/graph"
	"github.com/OFFIS-RIT/followgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
	"github.com/OFFIS-RIT/followgraph/pkg/logger/console"
	"github.com/OFFIS-RIT/followgraph/pkg/publish"
	pubamqp "github.com/OFFIS-RIT/followgraph/pkg/publish/amqp"
	pubredis "github.com/OFFIS-RIT/followgraph/pkg/publish/redis"
	"github.com/OFFIS-RIT/followgraph/pkg/source/twitter"
	"github.com/OFFIS-RIT/followgraph/pkg/store"
	"github.com/OFFIS-RIT/followgraph/pkg/store/memory"
	neo4jstore "github.com/OFFIS-RIT/followgraph/pkg/store/neo4j"
	pgxstore "github.com/OFFIS-RIT/followgraph/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitLogger installs the console logger, honouring DEBUG and LOG_JSON.
func InitLogger() {
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		JSON:  util.GetEnvBool("LOG_JSON", false),
	})
	logger.Init(consoleLogger)
}

// CrawlConfig is the crawl policy read from CRAWL_*.
type CrawlConfig struct {
	MaxPages    int
	PageSize    int
	Parallelism int
	PageDelay   time.Duration
}

func CrawlConfigFromEnv() CrawlConfig {
	pageSize := int(util.GetEnvNumeric("CRAWL_PAGE_SIZE", graph.DefaultPageSize))
	return CrawlConfig{
		MaxPages:    int(util.GetEnvNumeric("CRAWL_MAX_PAGES", graph.DefaultMaxPages)),
		PageSize:    pageSize,
		Parallelism: int(util.GetEnvNumeric("CRAWL_PARALLEL", pageSize)),
		PageDelay:   util.GetEnvDuration("CRAWL_PAGE_DELAY", 0),
	}
}

// NewStore opens the graph store selected by STORE_ADAPTER.
func NewStore(ctx context.Context) (store.GraphStore, error) {
	adapter := util.GetEnvString("STORE_ADAPTER", "pgx")

	switch adapter {
	case "memory":
		logger.Warn("[Bootstrap] Using in-memory graph store; data is lost on exit")
		return memory.New(), nil
	case "neo4j":
		s, err := neo4jstore.NewNeo4jStorage(ctx, neo4jstore.NewNeo4jStorageParams{
			URI:      util.GetEnvString("NEO4J_URI", "neo4j://localhost:7687"),
			User:     util.GetEnvString("NEO4J_USER", "neo4j"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnv("NEO4J_DATABASE"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "pgx":
		url := util.GetEnv("DATABASE_URL")
		if url == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the pgx store")
		}
		if util.GetEnvBool("DATABASE_MIGRATE", false) {
			if err := db.Migrate(url); err != nil {
				return nil, err
			}
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return pgxstore.NewGraphDBStorageWithConnection(pool, pgxstore.WithCloser(pool.Close)), nil
	default:
		return nil, fmt.Errorf("unknown STORE_ADAPTER %q", adapter)
	}
}

// NewSource builds the Twitter client from TWITTER_*.
func NewSource(cfg CrawlConfig) (*twitter.Client, error) {
	return twitter.NewClient(twitter.NewClientParams{
		BaseURL:        util.GetEnvString("TWITTER_API_URL", twitter.DefaultBaseURL),
		BearerToken:    util.GetEnv("TWITTER_BEARER_TOKEN"),
		ConsumerKey:    util.GetEnv("TWITTER_CONSUMER_KEY"),
		ConsumerSecret: util.GetEnv("TWITTER_CONSUMER_SECRET"),
		RatePerMinute:  int(util.GetEnvNumeric("TWITTER_RATE_PER_MINUTE", 15)),
		MaxRetries:     int(util.GetEnvNumeric("TWITTER_MAX_RETRIES", 3)),
		Timeout:        util.GetEnvDuration("TWITTER_TIMEOUT", 30*time.Second),
		PageSize:       cfg.PageSize,
	})
}

// NewPublisher opens the publisher selected by PUBLISH_ADAPTER. The amqp
// adapter dials its own connection, which is closed with the publisher.
func NewPublisher(ctx context.Context) (publish.Publisher, error) {
	adapter := util.GetEnvString("PUBLISH_ADAPTER", "amqp")

	switch adapter {
	case "redis":
		p, err := pubredis.NewPubSubPublisher(ctx, util.GetEnvString("REDIS_URL", "redis://localhost:6379/0"))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "amqp":
		conn, err := queue.Dial()
		if err != nil {
			return nil, err
		}
		p, err := pubamqp.NewTopicPublisher(conn, util.GetEnv("PUBLISH_EXCHANGE"))
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return &connPublisher{Publisher: p, closeConn: conn.Close}, nil
	default:
		return nil, fmt.Errorf("unknown PUBLISH_ADAPTER %q", adapter)
	}
}

type connPublisher struct {
	publish.Publisher
	closeConn func() error
}

func (c *connPublisher) Close() error {
	err := c.Publisher.Close()
	if cerr := c.closeConn(); err == nil {
		err = cerr
	}
	return err
}

// NewEngine wires a graph engine from the environment.
func NewEngine(ctx context.Context, cfg CrawlConfig) (*graph.Engine, error) {
	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewStore(ctx)
	if err != nil {
		return nil, err
	}

	p, err := NewPublisher(ctx)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	engine, err := graph.NewEngine(graph.NewEngineParams{
		Store:       s,
		Source:      src,
		Publisher:   p,
		MaxPages:    cfg.MaxPages,
		Parallelism: cfg.Parallelism,
		PageDelay:   cfg.PageDelay,
		Channel:     util.GetEnvString("PUBLISH_CHANNEL", graph.DefaultChannel),
		Event:       util.GetEnvString("PUBLISH_EVENT", graph.DefaultEvent),
	})
	if err != nil {
		_ = p.Close()
		_ = s.Close(ctx)
		return nil, err
	}
	return engine, nil
}

// NewLeaseClient opens a small pool for crawl leases. It returns a nil client
// when leases are disabled with CRAWL_LEASE=false or the store is not pgx.
func NewLeaseClient(ctx context.Context) (*leaselock.Client, func(), error) {
	if util.GetEnvString("STORE_ADAPTER", "pgx") != "pgx" || !util.GetEnvBool("CRAWL_LEASE", true) {
		return nil, func() {}, nil
	}

	cfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		return nil, nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return leaselock.New(pool), pool.Close, nil
}
