package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/store/memory"
)

var errBoom = errors.New("boom")

// instrumentedStore wraps the memory store with call counters and failure
// injection.
type instrumentedStore struct {
	*memory.MemoryStorage

	findDelay     time.Duration
	findEntered   chan struct{}
	findRelease   chan struct{}
	findErr       error
	createErrFor  map[string]error
	edgeExistsErr error

	finds     atomic.Int32
	creates   atomic.Int32
	neighbors atomic.Int32
	closed    atomic.Bool
}

func newInstrumentedStore() *instrumentedStore {
	return &instrumentedStore{MemoryStorage: memory.New()}
}

func (s *instrumentedStore) FindVertexByHandle(ctx context.Context, handle string) (common.Vertex, bool, error) {
	s.finds.Add(1)
	if s.findEntered != nil {
		select {
		case s.findEntered <- struct{}{}:
		default:
		}
	}
	if s.findRelease != nil {
		<-s.findRelease
	}
	if s.findDelay > 0 {
		time.Sleep(s.findDelay)
	}
	if s.findErr != nil {
		return common.Vertex{}, false, s.findErr
	}
	return s.MemoryStorage.FindVertexByHandle(ctx, handle)
}

func (s *instrumentedStore) CreateVertex(ctx context.Context, v common.Vertex) (common.Vertex, error) {
	s.creates.Add(1)
	if err := s.createErrFor[v.Handle]; err != nil {
		return common.Vertex{}, err
	}
	return s.MemoryStorage.CreateVertex(ctx, v)
}

func (s *instrumentedStore) EdgeExists(ctx context.Context, source common.VertexRef, targetHandle string) (bool, error) {
	if s.edgeExistsErr != nil {
		return false, s.edgeExistsErr
	}
	return s.MemoryStorage.EdgeExists(ctx, source, targetHandle)
}

func (s *instrumentedStore) Neighbors(ctx context.Context, ref common.VertexRef) ([]common.Vertex, error) {
	s.neighbors.Add(1)
	return s.MemoryStorage.Neighbors(ctx, ref)
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	s.closed.Store(true)
	return nil
}

// fakeSource serves a fixed list of pages, or an endless stream when
// infinite is set.
type fakeSource struct {
	mu         sync.Mutex
	lookupErr  error
	pages      []common.Page
	infinite   bool
	failAtPage int
	fetches    int
	cursors    []string
}

func (f *fakeSource) LookupUser(ctx context.Context, handle string) (common.Connection, error) {
	if f.lookupErr != nil {
		return common.Connection{}, f.lookupErr
	}
	return common.Connection{ExternalID: "1", DisplayName: "Root User", Handle: handle}, nil
}

func (f *fakeSource) FetchPage(ctx context.Context, handle string, cursor string) (common.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.cursors = append(f.cursors, cursor)
	n := f.fetches

	if n == f.failAtPage {
		return common.Page{}, errBoom
	}
	if f.infinite {
		return common.Page{
			Connections: []common.Connection{conn(fmt.Sprintf("user%d", n))},
			NextCursor:  fmt.Sprintf("c%d", n),
		}, nil
	}
	if n > len(f.pages) {
		return common.Page{}, fmt.Errorf("unexpected fetch %d", n)
	}
	return f.pages[n-1], nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func conn(handle string) common.Connection {
	return common.Connection{ExternalID: "id-" + handle, DisplayName: "Name " + handle, Handle: handle}
}

type publishedEvent struct {
	channel string
	event   string
	payload common.EdgeNotification
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []publishedEvent
	failFor map[string]bool
	closed  bool
}

func (p *fakePublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	n, ok := payload.(common.EdgeNotification)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	if p.failFor[n.Follower.Handle] {
		return errBoom
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{channel: channel, event: event, payload: n})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) followers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]string, 0, len(p.events))
	for _, e := range p.events {
		res = append(res, e.payload.Follower.Handle)
	}
	return res
}
