package objectstore

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/storage"
)

const backend = "nats"

// BucketManager opens and manages ObjectStore buckets. *natsclient.Client
// implements it.
type BucketManager interface {
	CreateObjectStore(ctx context.Context, cfg jetstream.ObjectStoreConfig) (jetstream.ObjectStore, error)
	ObjectStore(ctx context.Context, name string) (jetstream.ObjectStore, error)
	DeleteObjectStore(ctx context.Context, name string) error
	ObjectStoreNames(ctx context.Context) ([]string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry enables metrics. The core blob counters and the ObjectStore
// series are recorded into registry.
func WithRegistry(registry *metric.Registry) Option {
	return func(s *Store) {
		s.registry = registry
	}
}

// WithReplicas sets the replica count for buckets created by the store.
func WithReplicas(n int) Option {
	return func(s *Store) {
		s.replicas = n
	}
}

// Store implements storage.Store on NATS JetStream ObjectStore. Each
// container is a bucket and each blob an object.
type Store struct {
	client   BucketManager
	replicas int
	logger   *slog.Logger
	registry *metric.Registry
	core     *metric.Metrics
	metrics  *storeMetrics
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a store over client.
func NewStore(client BucketManager, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nats client is nil", errors.ErrInvalidConfig), "Store", "NewStore", "validate client")
	}

	s := &Store{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := newStoreMetrics(s.registry)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "NewStore", "register metrics")
	}
	s.metrics = m
	s.core = s.registry.CoreMetrics()
	s.logger = s.logger.With("backend", backend)

	return s, nil
}

func (s *Store) record(bucket, operation string, start time.Time, err error) {
	s.metrics.observe(bucket, operation, start, err)
	s.core.RecordBlobOperation(backend, operation, err)
}

// CreateContainer creates the bucket if it does not exist.
func (s *Store) CreateContainer(ctx context.Context, container string) (err error) {
	start := time.Now()
	defer func() { s.record(container, "create_container", start, err) }()

	if err = storage.ValidateContainerName(container); err != nil {
		return err
	}

	_, err = s.client.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      container,
		Description: "exchange container " + container,
		Replicas:    s.replicas,
	})
	if err != nil {
		return classify(err, "CreateContainer", "create bucket "+container)
	}
	s.logger.Debug("Container ready", "container", container)
	return nil
}

// DeleteContainer deletes the bucket and its objects.
func (s *Store) DeleteContainer(ctx context.Context, container string) (err error) {
	start := time.Now()
	defer func() { s.record(container, "delete_container", start, err) }()

	err = s.client.DeleteObjectStore(ctx, container)
	if err != nil {
		if isBucketNotFound(err) {
			return containerNotFound(container, "DeleteContainer")
		}
		return classify(err, "DeleteContainer", "delete bucket "+container)
	}
	s.logger.Debug("Container deleted", "container", container)
	return nil
}

// ContainerExists reports whether the bucket exists.
func (s *Store) ContainerExists(ctx context.Context, container string) (_ bool, err error) {
	start := time.Now()
	defer func() { s.record(container, "container_exists", start, err) }()

	_, err = s.client.ObjectStore(ctx, container)
	if err != nil {
		if isBucketNotFound(err) {
			return false, nil
		}
		return false, classify(err, "ContainerExists", "open bucket "+container)
	}
	return true, nil
}

// ListContainers returns the bucket names starting with prefix.
func (s *Store) ListContainers(ctx context.Context, prefix string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.record("", "list_containers", start, err) }()

	all, err := s.client.ObjectStoreNames(ctx)
	if err != nil {
		return nil, classify(err, "ListContainers", "list buckets")
	}

	names := []string{}
	for _, name := range all {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Put stores data as an object, replacing any previous version. The content
// type is kept in the Content-Type header.
func (s *Store) Put(ctx context.Context, container, name string, data []byte, contentType string) (err error) {
	start := time.Now()
	defer func() { s.record(container, "put", start, err) }()

	bucket, err := s.bucket(ctx, container, "Put")
	if err != nil {
		return err
	}

	meta := jetstream.ObjectMeta{Name: name}
	if contentType != "" {
		meta.Headers = nats.Header{"Content-Type": []string{contentType}}
	}

	if _, err = bucket.Put(ctx, meta, bytes.NewReader(data)); err != nil {
		return classify(err, "Put", fmt.Sprintf("put %s/%s", container, name))
	}

	s.core.RecordBlobBytes(backend, metric.DirectionUpload, len(data))
	s.logger.Debug("Object stored", "container", container, "name", name, "bytes", len(data))
	return nil
}

// Get returns the object content.
func (s *Store) Get(ctx context.Context, container, name string) (_ []byte, err error) {
	start := time.Now()
	defer func() { s.record(container, "get", start, err) }()

	bucket, err := s.bucket(ctx, container, "Get")
	if err != nil {
		return nil, err
	}

	data, err := bucket.GetBytes(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, blobNotFound(container, name, "Get")
		}
		return nil, classify(err, "Get", fmt.Sprintf("get %s/%s", container, name))
	}

	s.core.RecordBlobBytes(backend, metric.DirectionDownload, len(data))
	return data, nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, container, name string) (err error) {
	start := time.Now()
	defer func() { s.record(container, "delete", start, err) }()

	bucket, err := s.bucket(ctx, container, "Delete")
	if err != nil {
		return err
	}

	if err = bucket.Delete(ctx, name); err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return blobNotFound(container, name, "Delete")
		}
		return classify(err, "Delete", fmt.Sprintf("delete %s/%s", container, name))
	}
	return nil
}

// List returns live object names starting with prefix. The ObjectStore has
// no server side prefix filter, so the whole bucket is listed.
func (s *Store) List(ctx context.Context, container, prefix string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.record(container, "list", start, err) }()

	bucket, err := s.bucket(ctx, container, "List")
	if err != nil {
		return nil, err
	}

	infos, err := bucket.List(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			s.metrics.setObjectCount(container, 0)
			return []string{}, nil
		}
		return nil, classify(err, "List", "list "+container)
	}

	live := 0
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Deleted {
			continue
		}
		live++
		if strings.HasPrefix(info.Name, prefix) {
			names = append(names, info.Name)
		}
	}
	s.metrics.setObjectCount(container, live)
	sort.Strings(names)
	return names, nil
}

func (s *Store) bucket(ctx context.Context, container, method string) (jetstream.ObjectStore, error) {
	bucket, err := s.client.ObjectStore(ctx, container)
	if err != nil {
		if isBucketNotFound(err) {
			return nil, containerNotFound(container, method)
		}
		return nil, classify(err, method, "open bucket "+container)
	}
	return bucket, nil
}

func isBucketNotFound(err error) bool {
	return stderrors.Is(err, jetstream.ErrBucketNotFound) || stderrors.Is(err, jetstream.ErrStreamNotFound)
}

func containerNotFound(container, method string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container), "Store", method, "open bucket "+container)
}

func blobNotFound(container, name, method string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s/%s", errors.ErrBlobNotFound, container, name), "Store", method, "find object")
}

// classify wraps a backend error, keeping an existing classification.
func classify(err error, method, action string) error {
	var ce *errors.ClassifiedError
	if stderrors.As(err, &ce) {
		return errors.Wrap(err, "Store", method, action)
	}
	if errors.IsTransient(err) {
		return errors.WrapTransient(err, "Store", method, action)
	}
	return errors.Wrap(err, "Store", method, action)
}
