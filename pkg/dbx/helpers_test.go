package dbx_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeDialer returns real, never-used clients: mongo.Connect performs no network I/O until
// an operation runs, so the connection lifecycle can be exercised without a server.
type fakeDialer struct {
	calls   atomic.Int32
	release chan struct{}
	fail    atomic.Bool
}

func newFakeDialer() *fakeDialer {
	d := &fakeDialer{release: make(chan struct{})}
	close(d.release)

	return d
}

func newBlockingDialer() *fakeDialer {
	return &fakeDialer{release: make(chan struct{})}
}

func (d *fakeDialer) dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	d.calls.Add(1)
	<-d.release

	if d.fail.Load() {
		return nil, errors.New("server selection error: connection refused")
	}

	return mongo.Connect(ctx, opts)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []dbx.Event
	notify chan dbx.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan dbx.Event, 64)}
}

func (r *eventRecorder) hook(evt dbx.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	r.notify <- evt
}

func (r *eventRecorder) kinds() []dbx.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]dbx.EventKind, 0, len(r.events))
	for _, evt := range r.events {
		kinds = append(kinds, evt.Kind)
	}

	return kinds
}

func testConfig() dbx.ConnectionConfig {
	return dbx.ConnectionConfig{
		URL:      "mongodb://localhost:27017",
		Database: "blog",
		ClientOptions: map[string]any{
			"appName":                  "blog",
			"serverSelectionTimeoutMS": 500,
		},
	}
}
