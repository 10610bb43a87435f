// Package azureblob implements storage.Store on Azure Blob Storage with
// shared-key credentials from azure_config.json.
package azureblob

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/storage"
)

const backend = "azure"

// Option configures a Store.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *metric.Metrics
	maxRetries int32
	tryTimeout time.Duration
}

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records blob operations into m.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRetry sets the SDK retry policy: retries per call and the timeout of
// a single try.
func WithRetry(maxRetries int32, tryTimeout time.Duration) Option {
	return func(o *options) {
		o.maxRetries = maxRetries
		o.tryTimeout = tryTimeout
	}
}

// Store is an Azure Blob Storage account.
type Store struct {
	client  *azblob.Client
	account string
	logger  *slog.Logger
	metrics *metric.Metrics
}

var _ storage.Store = (*Store)(nil)

// New creates a store for the account in cfg. No request is made until the
// first call.
func New(cfg config.AzureConfig, opts ...Option) (*Store, error) {
	o := options{
		logger:     slog.Default(),
		maxRetries: 3,
		tryTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Store", "New", "validate azure config")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.StorageAccountName, cfg.StorageAccountKey)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: storage_account_key: %v", errors.ErrInvalidConfig, err), "Store", "New", "build credential")
	}

	client, err := azblob.NewClientWithSharedKeyCredential(cfg.ServiceURL(), cred, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: o.maxRetries,
				TryTimeout: o.tryTimeout,
			},
		},
	})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Store", "New", "create client for "+cfg.ServiceURL())
	}

	return &Store{
		client:  client,
		account: cfg.StorageAccountName,
		logger:  o.logger.With("backend", backend, "account", cfg.StorageAccountName),
		metrics: o.metrics,
	}, nil
}

// Account returns the storage account name.
func (s *Store) Account() string {
	return s.account
}

// CreateContainer creates a private container. An existing container is
// left as is.
func (s *Store) CreateContainer(ctx context.Context, container string) (err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "create_container", err) }()

	if err = storage.ValidateContainerName(container); err != nil {
		return err
	}

	_, err = s.client.CreateContainer(ctx, container, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return classify(err, "CreateContainer", "create container "+container)
	}
	s.logger.Info("Container created", "container", container)
	return nil
}

// DeleteContainer deletes the container and its blobs.
func (s *Store) DeleteContainer(ctx context.Context, container string) (err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "delete_container", err) }()

	_, err = s.client.DeleteContainer(ctx, container, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return containerNotFound(container, "DeleteContainer")
		}
		return classify(err, "DeleteContainer", "delete container "+container)
	}
	s.logger.Info("Container deleted", "container", container)
	return nil
}

// ContainerExists reports whether the container exists.
func (s *Store) ContainerExists(ctx context.Context, container string) (_ bool, err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "container_exists", err) }()

	_, err = s.client.ServiceClient().NewContainerClient(container).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, classify(err, "ContainerExists", "get container properties "+container)
	}
	return true, nil
}

// ListContainers pages through the account and returns container names
// with prefix.
func (s *Store) ListContainers(ctx context.Context, prefix string) (_ []string, err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "list_containers", err) }()

	listOpts := &azblob.ListContainersOptions{}
	if prefix != "" {
		listOpts.Prefix = &prefix
	}

	names := []string{}
	pager := s.client.NewListContainersPager(listOpts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, classify(err, "ListContainers", "list containers of "+s.account)
		}
		for _, item := range page.ContainerItems {
			if item != nil && item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// Put uploads data as a block blob, replacing any existing blob.
func (s *Store) Put(ctx context.Context, container, name string, data []byte, contentType string) (err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "put", err) }()

	var uploadOpts *azblob.UploadBufferOptions
	if contentType != "" {
		uploadOpts = &azblob.UploadBufferOptions{
			HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		}
	}

	_, err = s.client.UploadBuffer(ctx, container, name, data, uploadOpts)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return containerNotFound(container, "Put")
		}
		return classify(err, "Put", fmt.Sprintf("upload %s/%s", container, name))
	}

	s.metrics.RecordBlobBytes(backend, metric.DirectionUpload, len(data))
	s.logger.Debug("Blob uploaded", "container", container, "blob", name, "bytes", len(data))
	return nil
}

// Get downloads the blob.
func (s *Store) Get(ctx context.Context, container, name string) (_ []byte, err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "get", err) }()

	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, s.notFoundOr(err, container, name, "Get", "download")
	}

	body := resp.NewRetryReader(ctx, &azblob.RetryReaderOptions{MaxRetries: 3})
	defer body.Close()

	data, err := readAll(body, resp.ContentLength)
	if err != nil {
		return nil, classify(err, "Get", fmt.Sprintf("read %s/%s", container, name))
	}

	s.metrics.RecordBlobBytes(backend, metric.DirectionDownload, len(data))
	s.logger.Debug("Blob downloaded", "container", container, "blob", name, "bytes", len(data))
	return data, nil
}

// Delete removes the blob and its snapshots.
func (s *Store) Delete(ctx context.Context, container, name string) (err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "delete", err) }()

	include := azblob.DeleteSnapshotsOptionTypeInclude
	_, err = s.client.DeleteBlob(ctx, container, name, &azblob.DeleteBlobOptions{DeleteSnapshots: &include})
	if err != nil {
		return s.notFoundOr(err, container, name, "Delete", "delete")
	}
	s.logger.Info("Blob deleted", "container", container, "blob", name)
	return nil
}

// List pages through the container and returns blob names with prefix.
func (s *Store) List(ctx context.Context, container, prefix string) (_ []string, err error) {
	defer func() { s.metrics.RecordBlobOperation(backend, "list", err) }()

	listOpts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		listOpts.Prefix = &prefix
	}

	names := []string{}
	pager := s.client.NewListBlobsFlatPager(container, listOpts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, containerNotFound(container, "List")
			}
			return nil, classify(err, "List", "list "+container)
		}
		for _, item := range page.Segment.BlobItems {
			if item != nil && item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	sort.Strings(names)
	return names, nil
}

// readAll reads r, sizing the buffer from the response length when known.
func readAll(r io.Reader, size *int64) ([]byte, error) {
	var buf bytes.Buffer
	if size != nil && *size > 0 {
		buf.Grow(int(*size))
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) notFoundOr(err error, container, name, method, action string) error {
	switch {
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return containerNotFound(container, method)
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s/%s", errors.ErrBlobNotFound, container, name), "Store", method, "find blob")
	default:
		return classify(err, method, fmt.Sprintf("%s %s/%s", action, container, name))
	}
}

func containerNotFound(container, method string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrContainerNotFound, container), "Store", method, "find container")
}

// classify maps an SDK error to an error class by HTTP status.
func classify(err error, method, action string) error {
	var respErr *azcore.ResponseError
	if stderrors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusTooManyRequests:
			return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrRateLimited, err), "Store", method, action)
		case respErr.StatusCode >= 500:
			return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err), "Store", method, action)
		case respErr.StatusCode == http.StatusUnauthorized || respErr.StatusCode == http.StatusForbidden:
			return errors.WrapFatal(err, "Store", method, action)
		default:
			return errors.WrapInvalid(err, "Store", method, action)
		}
	}
	if errors.IsTransient(err) {
		return errors.WrapTransient(err, "Store", method, action)
	}
	return errors.Wrap(err, "Store", method, action)
}
