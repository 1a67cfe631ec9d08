package twitter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/followgraph/pkg/source"
)

var _ source.ConnectionSource = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(NewClientParams{
		BaseURL:      srv.URL,
		BearerToken:  "test-token",
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		HTTPClient:   srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLookupUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1.1/users/lookup.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.URL.Query().Get("screen_name"); got != "root" {
			t.Errorf("unexpected screen_name %q", got)
		}
		_, _ = w.Write([]byte(`[{"id_str":"1","name":"Root","screen_name":"Root"}]`))
	})

	conn, err := c.LookupUser(context.Background(), "root")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if conn.ExternalID != "1" || conn.DisplayName != "Root" || conn.Handle != "Root" {
		t.Fatalf("unexpected connection %+v", conn)
	}
}

func TestLookupUser_Unknown(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "NotFound",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[{"code":17,"message":"No user matches for specified terms."}]}`))
			},
		},
		{
			name: "EmptyArray",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`[]`))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, tc.handler)
			_, err := c.LookupUser(context.Background(), "ghost")
			if !errors.Is(err, source.ErrUnknownHandle) {
				t.Fatalf("expected ErrUnknownHandle, got %v", err)
			}
		})
	}
}

func TestFetchPage_Cursors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("skip_status") != "true" || q.Get("count") != "200" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch q.Get("cursor") {
		case "-1":
			_, _ = w.Write([]byte(`{"users":[{"id_str":"2","name":"A","screen_name":"a"},{"id_str":"3","name":"B","screen_name":"b"}],"next_cursor_str":"1234"}`))
		case "1234":
			_, _ = w.Write([]byte(`{"users":[{"id_str":"4","name":"C","screen_name":"c"}],"next_cursor_str":"0"}`))
		default:
			t.Errorf("unexpected cursor %q", q.Get("cursor"))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	first, err := c.FetchPage(context.Background(), "root", "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Connections) != 2 || first.NextCursor != "1234" || !first.HasMore() {
		t.Fatalf("unexpected first page %+v", first)
	}

	second, err := c.FetchPage(context.Background(), "root", first.NextCursor)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Connections) != 1 || second.Connections[0].Handle != "c" {
		t.Fatalf("unexpected second page %+v", second)
	}
	if second.HasMore() {
		t.Fatalf("expected last page, got cursor %q", second.NextCursor)
	}
}

func TestFetchPage_RetriesTransientStatus(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"users":[],"next_cursor_str":"0"}`))
	})

	if _, err := c.FetchPage(context.Background(), "root", ""); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestFetchPage_PermanentStatusNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchPage(context.Background(), "root", "")
	var serr *statusError
	if !errors.As(err, &serr) || serr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestFetchPage_ExhaustsRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := c.FetchPage(context.Background(), "root", ""); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestClientCredentials(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"bearer","access_token":"app-token"}`))
	})
	mux.HandleFunc("/1.1/users/lookup.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer app-token" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = w.Write([]byte(`[{"id_str":"9","name":"Nine","screen_name":"nine"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(NewClientParams{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		HTTPClient:     srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.LookupUser(context.Background(), "nine"); err != nil {
			t.Fatalf("LookupUser: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected token to be fetched once, got %d", tokenCalls)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	if _, err := NewClient(NewClientParams{}); err == nil {
		t.Fatalf("expected error without credentials")
	}
}
