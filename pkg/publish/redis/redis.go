package redis

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/followgraph/pkg/publish"

	goredis "github.com/redis/go-redis/v9"
)

// PubSubPublisher publishes envelopes with Redis PUBLISH on the channel name.
type PubSubPublisher struct {
	client *goredis.Client
	owned  bool
}

// NewPubSubPublisher connects using a redis:// URL and pings the server.
func NewPubSubPublisher(ctx context.Context, redisURL string) (*PubSubPublisher, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &PubSubPublisher{client: client, owned: true}, nil
}

// NewPubSubPublisherWithClient wraps an existing client. Close leaves it open.
func NewPubSubPublisherWithClient(client *goredis.Client) *PubSubPublisher {
	return &PubSubPublisher{client: client}
}

func (p *PubSubPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	body, err := publish.Encode(event, payload)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event, channel, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.client.Close()
}
