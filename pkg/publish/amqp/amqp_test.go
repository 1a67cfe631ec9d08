package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/followgraph/pkg/publish"

	"github.com/rabbitmq/amqp091-go"
)

var _ publish.Publisher = (*TopicPublisher)(nil)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestTopicPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newTopicPublisher(ch, "")
	if err != nil {
		t.Fatalf("newTopicPublisher: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != DefaultExchange+":topic" {
		t.Fatalf("unexpected declarations %v", ch.declared)
	}

	payload := map[string]string{"handle": "root"}
	if err := p.Publish(context.Background(), "presentation", "twitterConnection", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.published))
	}

	got := ch.published[0]
	if got.exchange != DefaultExchange || got.key != "presentation.twitterConnection" {
		t.Fatalf("unexpected routing %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.Type != "twitterConnection" {
		t.Fatalf("unexpected publishing %+v", got.msg)
	}

	var env struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	if err := json.Unmarshal(got.msg.Body, &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Event != "twitterConnection" || env.Data["handle"] != "root" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("expected channel closed, err=%v", err)
	}
}

func TestTopicPublisher_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p, err := newTopicPublisher(&fakeChannel{publishErr: boom}, "events")
	if err != nil {
		t.Fatalf("newTopicPublisher: %v", err)
	}
	if err := p.Publish(context.Background(), "presentation", "twitterConnection", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
