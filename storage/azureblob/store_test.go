package azureblob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/exchange/config"
	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/metric"
	"github.com/c360/exchange/storage"
	"github.com/c360/exchange/testutil"
)

// fakeBlobService answers the subset of the Blob REST API the Store uses.
type fakeBlobService struct {
	mu          sync.Mutex
	containers  map[string]map[string][]byte
	contentType map[string]string
	failStatus  int
}

func newFakeBlobService() *fakeBlobService {
	return &fakeBlobService{
		containers:  make(map[string]map[string][]byte),
		contentType: make(map[string]string),
	}
}

func azureError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.WriteHeader(status)
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStatus != 0 {
		azureError(w, f.failStatus, "ServerBusy")
		return
	}

	query := r.URL.Query()
	listing := r.Method == http.MethodGet && query.Get("comp") == "list"
	if listing && query.Get("restype") != "container" {
		f.listContainers(w, query.Get("prefix"))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/"+testutil.AzuriteAccount+"/")
	container, name, _ := strings.Cut(path, "/")

	if query.Get("restype") == "container" {
		blobs, exists := f.containers[container]
		if listing {
			if !exists {
				azureError(w, http.StatusNotFound, "ContainerNotFound")
				return
			}
			f.listBlobs(w, blobs, query.Get("prefix"))
			return
		}
		switch r.Method {
		case http.MethodPut:
			if exists {
				azureError(w, http.StatusConflict, "ContainerAlreadyExists")
				return
			}
			f.containers[container] = make(map[string][]byte)
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			if !exists {
				azureError(w, http.StatusNotFound, "ContainerNotFound")
				return
			}
			delete(f.containers, container)
			w.WriteHeader(http.StatusAccepted)
		default:
			if !exists {
				azureError(w, http.StatusNotFound, "ContainerNotFound")
				return
			}
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	blobs, exists := f.containers[container]
	if !exists {
		azureError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		blobs[name] = data
		f.contentType[container+"/"+name] = r.Header.Get("x-ms-blob-content-type")
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		data, ok := blobs[name]
		if !ok {
			azureError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodDelete:
		if _, ok := blobs[name]; !ok {
			azureError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		delete(blobs, name)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeBlobService) listContainers(w http.ResponseWriter, prefix string) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Containers>`)
	for name := range f.containers {
		if strings.HasPrefix(name, prefix) {
			b.WriteString("<Container><Name>" + name + "</Name><Properties></Properties></Container>")
		}
	}
	b.WriteString("</Containers></EnumerationResults>")
	writeXML(w, b.String())
}

func (f *fakeBlobService) listBlobs(w http.ResponseWriter, blobs map[string][]byte, prefix string) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs>`)
	for name := range blobs {
		if strings.HasPrefix(name, prefix) {
			b.WriteString("<Blob><Name>" + name + "</Name><Properties></Properties></Blob>")
		}
	}
	b.WriteString("</Blobs></EnumerationResults>")
	writeXML(w, b.String())
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeBlobService) {
	t.Helper()
	fake := newFakeBlobService()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := config.AzureConfig{
		StorageAccountName: testutil.AzuriteAccount,
		StorageAccountKey:  testutil.AzuriteKey,
		Endpoint:           server.URL + "/" + testutil.AzuriteAccount,
	}
	opts = append([]Option{WithRetry(-1, 5*time.Second)}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s, fake
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.AzureConfig{StorageAccountName: "acct"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = New(config.AzureConfig{StorageAccountName: "acct", StorageAccountKey: "not base64!"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	s, err := New(config.AzureConfig{StorageAccountName: testutil.AzuriteAccount, StorageAccountKey: testutil.AzuriteKey})
	require.NoError(t, err)
	assert.Equal(t, testutil.AzuriteAccount, s.Account())
}

func TestStore_ContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	exists, err := s.ContainerExists(ctx, "exports")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.CreateContainer(ctx, "exports"))
	require.NoError(t, s.CreateContainer(ctx, "exports"), "existing container is not an error")

	exists, err = s.ContainerExists(ctx, "exports")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteContainer(ctx, "exports"))
	err = s.DeleteContainer(ctx, "exports")
	assert.ErrorIs(t, err, errors.ErrContainerNotFound)
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	registry := metric.NewRegistry()
	s, fake := newTestStore(t, WithMetrics(registry.CoreMetrics()))
	require.NoError(t, s.CreateContainer(ctx, "exports"))

	payload := []byte(`{"1":"a","2":"b"}`)
	require.NoError(t, s.Put(ctx, "exports", "daily.json", payload, storage.ContentTypeJSON))
	assert.Equal(t, storage.ContentTypeJSON, fake.contentType["exports/daily.json"])

	data, err := s.Get(ctx, "exports", "daily.json")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, s.Delete(ctx, "exports", "daily.json"))

	_, err = s.Get(ctx, "exports", "daily.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBlobNotFound)
	assert.True(t, errors.IsInvalid(err))

	core := registry.CoreMetrics()
	assert.Equal(t, float64(len(payload)), promtest.ToFloat64(core.BlobBytes.WithLabelValues("azure", metric.DirectionUpload)))
	assert.Equal(t, float64(len(payload)), promtest.ToFloat64(core.BlobBytes.WithLabelValues("azure", metric.DirectionDownload)))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.BlobOperations.WithLabelValues("azure", "get", "error")))
}

func TestStore_MissingContainer(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	err := s.Put(ctx, "missing", "a.json", []byte("x"), "")
	assert.ErrorIs(t, err, errors.ErrContainerNotFound)

	_, err = s.Get(ctx, "missing", "a.json")
	assert.ErrorIs(t, err, errors.ErrContainerNotFound)
}

func TestStore_PutEnsuringContainer(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	err := storage.PutEnsuringContainer(ctx, s, nil, "fresh", "out.json", []byte("{}"), storage.ContentTypeJSON)
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), fake.containers["fresh"]["out.json"])
}

func TestStore_ListAndListContainers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for _, c := range []string{"exports-b", "exports-a", "archive"} {
		require.NoError(t, s.CreateContainer(ctx, c))
	}
	for _, name := range []string{"2024/02.json", "2024/01.json", "latest.json"} {
		require.NoError(t, s.Put(ctx, "exports-a", name, []byte("{}"), storage.ContentTypeJSON))
	}

	containers, err := s.ListContainers(ctx, "exports")
	require.NoError(t, err)
	assert.Equal(t, []string{"exports-a", "exports-b"}, containers)

	names, err := s.List(ctx, "exports-a", "2024/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024/01.json", "2024/02.json"}, names)

	empty, err := s.List(ctx, "exports-b", "")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.List(ctx, "missing", "")
	assert.ErrorIs(t, err, errors.ErrContainerNotFound)
}

func TestStore_ServerErrorIsTransient(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)
	fake.failStatus = http.StatusServiceUnavailable

	_, err := s.ContainerExists(ctx, "exports")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"throttled", http.StatusTooManyRequests, errors.IsTransient},
		{"server error", http.StatusInternalServerError, errors.IsTransient},
		{"auth failure", http.StatusForbidden, errors.IsFatal},
		{"bad request", http.StatusBadRequest, errors.IsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(&azcore.ResponseError{StatusCode: tt.status}, "Put", "upload")
			assert.True(t, tt.check(err))
		})
	}

	err := classify(errors.ErrConnectionLost, "Get", "download")
	assert.True(t, errors.IsTransient(err))
}
