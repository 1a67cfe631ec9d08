package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// crawlsTotal counts finished crawls.
	// Labels: "completed", "truncated", "partial", "root_failed"
	crawlsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followgraph_crawls_total",
		Help: "Total crawls by outcome",
	}, []string{"outcome"})

	crawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "followgraph_crawl_duration_seconds",
		Help:    "Crawl duration including emission",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followgraph_pages_fetched_total",
		Help: "Connection pages fetched by result",
	}, []string{"result"})

	connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followgraph_connections_total",
		Help: "Connections processed by result",
	}, []string{"result"})

	verticesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "followgraph_vertices_created_total",
		Help: "Vertices created by the resolver",
	})

	edgesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "followgraph_edges_created_total",
		Help: "Follows edges created by the synchronizer",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "followgraph_notifications_total",
		Help: "Edge notifications by publish result",
	}, []string{"result"})
)
