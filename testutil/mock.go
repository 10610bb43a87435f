// Package testutil provides in-memory fakes for the broker, blob store and
// HTTP API so packages can be tested without external services.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/c360/exchange/errors"
)

// Fetch is one scripted result for MockReader.FetchMessage.
type Fetch struct {
	Msg  kafka.Message
	Err  error
	Idle bool
}

// MockReader replays scripted fetch results. Once the script is exhausted,
// FetchMessage blocks until the poll context ends, like an idle topic.
type MockReader struct {
	mu sync.Mutex

	script    []Fetch
	Committed []kafka.Message
	Fetches   int
	Closed    bool

	// CommitFunc, when set, decides the result of CommitMessages.
	CommitFunc func(msgs ...kafka.Message) error
}

// NewMockReader returns a reader that yields payloads in order.
func NewMockReader(topic string, payloads ...string) *MockReader {
	r := &MockReader{}
	for i, p := range payloads {
		r.Push(kafka.Message{Topic: topic, Offset: int64(i), Value: []byte(p)})
	}
	return r
}

// Push appends a message to the script.
func (r *MockReader) Push(msg kafka.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, Fetch{Msg: msg})
}

// PushError appends a fetch error to the script.
func (r *MockReader) PushError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, Fetch{Err: err})
}

// PushIdle appends a poll that times out with no message.
func (r *MockReader) PushIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, Fetch{Idle: true})
}

// FetchMessage returns the next scripted result.
func (r *MockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	r.Fetches++
	if len(r.script) > 0 {
		next := r.script[0]
		r.script = r.script[1:]
		r.mu.Unlock()
		if next.Idle {
			<-ctx.Done()
			return kafka.Message{}, ctx.Err()
		}
		return next.Msg, next.Err
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

// CommitMessages records the committed messages.
func (r *MockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitFunc != nil {
		if err := r.CommitFunc(msgs...); err != nil {
			return err
		}
	}
	r.Committed = append(r.Committed, msgs...)
	return nil
}

// Close marks the reader closed.
func (r *MockReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Closed = true
	return nil
}

// CommittedCount returns how many messages were committed.
func (r *MockReader) CommittedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Committed)
}

// MockWriter records written messages.
type MockWriter struct {
	mu sync.Mutex

	Messages []kafka.Message
	Calls    int
	Closed   bool

	// WriteFunc, when set, is called before recording; a non-nil error is
	// returned and nothing is recorded.
	WriteFunc func(call int, msgs ...kafka.Message) error
}

// WriteMessages records msgs.
func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls++
	if w.WriteFunc != nil {
		if err := w.WriteFunc(w.Calls, msgs...); err != nil {
			return err
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

// Close marks the writer closed.
func (w *MockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Closed = true
	return nil
}

// Written returns a copy of the recorded messages.
func (w *MockWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.Messages...)
}

// StoredBlob is one object held by MockStore.
type StoredBlob struct {
	Data        []byte
	ContentType string
}

// MockStore is an in-memory blob store with container semantics.
type MockStore struct {
	mu         sync.Mutex
	containers map[string]map[string]StoredBlob

	// Err, when set, is returned by every call.
	Err   error
	Calls []string
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{containers: make(map[string]map[string]StoredBlob)}
}

func (s *MockStore) record(call string) error {
	s.Calls = append(s.Calls, call)
	return s.Err
}

// CreateContainer creates container if missing.
func (s *MockStore) CreateContainer(_ context.Context, container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("create_container"); err != nil {
		return err
	}
	if _, ok := s.containers[container]; !ok {
		s.containers[container] = make(map[string]StoredBlob)
	}
	return nil
}

// DeleteContainer removes container and its blobs.
func (s *MockStore) DeleteContainer(_ context.Context, container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("delete_container"); err != nil {
		return err
	}
	if _, ok := s.containers[container]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container)
	}
	delete(s.containers, container)
	return nil
}

// ContainerExists reports whether container was created.
func (s *MockStore) ContainerExists(_ context.Context, container string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("container_exists"); err != nil {
		return false, err
	}
	_, ok := s.containers[container]
	return ok, nil
}

// Put stores a copy of data.
func (s *MockStore) Put(_ context.Context, container, name string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("put"); err != nil {
		return err
	}
	blobs, ok := s.containers[container]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container)
	}
	blobs[name] = StoredBlob{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

// Get returns a copy of the stored data.
func (s *MockStore) Get(_ context.Context, container, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get"); err != nil {
		return nil, err
	}
	blobs, ok := s.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container)
	}
	blob, ok := blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", errors.ErrBlobNotFound, container, name)
	}
	return append([]byte(nil), blob.Data...), nil
}

// Delete removes a blob.
func (s *MockStore) Delete(_ context.Context, container, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("delete"); err != nil {
		return err
	}
	blobs, ok := s.containers[container]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container)
	}
	if _, ok := blobs[name]; !ok {
		return fmt.Errorf("%w: %s/%s", errors.ErrBlobNotFound, container, name)
	}
	delete(blobs, name)
	return nil
}

// List returns blob names with prefix in sorted order.
func (s *MockStore) List(_ context.Context, container, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list"); err != nil {
		return nil, err
	}
	blobs, ok := s.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container)
	}
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListContainers returns container names with prefix in sorted order.
func (s *MockStore) ListContainers(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("list_containers"); err != nil {
		return nil, err
	}
	names := []string{}
	for name := range s.containers {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Blob returns a stored blob for assertions.
func (s *MockStore) Blob(container, name string) (StoredBlob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.containers[container][name]
	return blob, ok
}

// CallCount returns how many times op was called.
func (s *MockStore) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == op {
			n++
		}
	}
	return n
}
