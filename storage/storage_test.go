package storage_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/storage"
	"github.com/c360/exchange/testutil"
)

var _ storage.Store = (*testutil.MockStore)(nil)

func TestPutEnsuringContainer_CreatesMissingContainer(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()

	err := storage.PutEnsuringContainer(ctx, store, nil, "exports", "daily.json", []byte(`{"1":"a"}`), storage.ContentTypeJSON)
	require.NoError(t, err)

	assert.Equal(t, 1, store.CallCount("create_container"))
	blob, ok := store.Blob("exports", "daily.json")
	require.True(t, ok)
	assert.Equal(t, `{"1":"a"}`, string(blob.Data))
	assert.Equal(t, storage.ContentTypeJSON, blob.ContentType)
}

func TestPutEnsuringContainer_ExistingContainer(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()
	require.NoError(t, store.CreateContainer(ctx, "exports"))
	require.NoError(t, store.Put(ctx, "exports", "daily.json", []byte("old"), "text/plain"))

	err := storage.PutEnsuringContainer(ctx, store, nil, "exports", "daily.json", []byte("new"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, 1, store.CallCount("create_container"))
	blob, _ := store.Blob("exports", "daily.json")
	assert.Equal(t, "new", string(blob.Data))
}

func TestPutEnsuringContainer_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid container", func(t *testing.T) {
		store := testutil.NewMockStore()
		err := storage.PutEnsuringContainer(ctx, store, nil, "Bad_Name", "x", []byte("x"), "")
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
		assert.Empty(t, store.Calls)
	})

	t.Run("empty blob name", func(t *testing.T) {
		store := testutil.NewMockStore()
		err := storage.PutEnsuringContainer(ctx, store, nil, "exports", "", []byte("x"), "")
		assert.ErrorIs(t, err, errors.ErrInvalidData)
	})

	t.Run("backend failure", func(t *testing.T) {
		store := testutil.NewMockStore()
		store.Err = errors.ErrStorageUnavailable
		err := storage.PutEnsuringContainer(ctx, store, nil, "exports", "x", []byte("x"), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
		assert.Contains(t, err.Error(), "check container exports")
	})
}

func TestGetNonEmpty(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()
	require.NoError(t, store.CreateContainer(ctx, "exports"))
	require.NoError(t, store.Put(ctx, "exports", "full.json", []byte(`{}`), storage.ContentTypeJSON))
	require.NoError(t, store.Put(ctx, "exports", "empty.json", nil, storage.ContentTypeJSON))

	data, err := storage.GetNonEmpty(ctx, store, "exports", "full.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = storage.GetNonEmpty(ctx, store, "exports", "empty.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrEmptyBlob)
	assert.True(t, errors.IsInvalid(err))

	_, err = storage.GetNonEmpty(ctx, store, "exports", "missing.json")
	assert.True(t, stderrors.Is(err, errors.ErrBlobNotFound))

	_, err = storage.GetNonEmpty(ctx, store, "nowhere", "full.json")
	assert.ErrorIs(t, err, errors.ErrContainerNotFound)
}

func TestValidateContainerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "exports", false},
		{"digits and hyphens", "daily-2024-01", false},
		{"minimum length", "abc", false},
		{"maximum length", "a23456789012345678901234567890123456789012345678901234567890123", false},
		{"too short", "ab", true},
		{"too long", "a234567890123456789012345678901234567890123456789012345678901234", true},
		{"uppercase", "Exports", true},
		{"underscore", "daily_exports", true},
		{"leading hyphen", "-exports", true},
		{"trailing hyphen", "exports-", true},
		{"double hyphen", "daily--exports", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.ValidateContainerName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidData)
				return
			}
			assert.NoError(t, err)
		})
	}
}
