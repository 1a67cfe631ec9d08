package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/followgraph/internal/queue"
	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/graph"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
)

func main() {
	util.LoadEnv()
	bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.NewEngine(ctx, bootstrap.CrawlConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to create graph engine", "err", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			logger.Error("Failed to close graph engine", "err", err)
		}
	}()

	var crawler queue.Crawler = engine
	leases, closeLeases, err := bootstrap.NewLeaseClient(ctx)
	if err != nil {
		logger.Fatal("Failed to set up crawl leases", "err", err)
	}
	defer closeLeases()
	if leases != nil {
		crawler = &queue.LeasedCrawler{
			Crawler: engine,
			Leases:  leases,
			TTL:     util.GetEnvDuration("CRAWL_LEASE_TTL", 5*time.Minute),
		}
	}

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.CrawlQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// One crawl at a time per worker
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := ch.Consume(
		queue.CrawlQueue,
		queue.CrawlQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.CrawlQueue, "err", err)
	}

	maxRetries := int(util.GetEnvNumeric("CRAWL_MAX_RETRIES", 3))
	logger.Info("Listening for messages", "queue", queue.CrawlQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.CrawlQueue)
				return
			}

			startTime := time.Now()
			_, processingErr := queue.ProcessCrawlMessage(ctx, crawler, msg.Body)

			if processingErr != nil {
				if errors.Is(processingErr, graph.ErrRootResolutionFailed) {
					logger.Warn("Root could not be resolved", "err", processingErr)
				} else {
					logger.Error("Error processing message", "queue", queue.CrawlQueue, "err", processingErr)
				}
				queue.HandleProcessingError(context.WithoutCancel(ctx), ch, msg, queue.CrawlQueue, maxRetries, processingErr)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.CrawlQueue)
			}

			logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
		}
	}
}
