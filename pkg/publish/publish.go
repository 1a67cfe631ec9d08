package publish

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher fans an event out to subscribers of a channel. Delivery is
// at-least-once at best; callers must tolerate duplicates.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
	Close() error
}

// Envelope is the wire shape shared by all adapters.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode marshals payload into an Envelope.
func Encode(event string, payload any) ([]byte, error) {
	if event == "" {
		return nil, fmt.Errorf("event name is empty")
	}
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return data, nil
}
