package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/exchange/errors"
)

// ContentTypeJSON is the content type used for pipeline output.
const ContentTypeJSON = "application/json"

// Store is a blob store organised in containers.
//
// Blob names may contain "/" to mimic directories; List filters on a plain
// string prefix. Implementations must be safe for concurrent use.
//
// Missing containers are reported with errors.ErrContainerNotFound and
// missing blobs with errors.ErrBlobNotFound.
type Store interface {
	// CreateContainer creates container. Creating an existing container
	// is not an error.
	CreateContainer(ctx context.Context, container string) error

	// DeleteContainer removes container and every blob in it.
	DeleteContainer(ctx context.Context, container string) error

	// ContainerExists reports whether container exists.
	ContainerExists(ctx context.Context, container string) (bool, error)

	// ListContainers returns the names of containers starting with prefix,
	// sorted.
	ListContainers(ctx context.Context, prefix string) ([]string, error)

	// Put uploads data as name, replacing any existing blob.
	Put(ctx context.Context, container, name string, data []byte, contentType string) error

	// Get downloads the blob.
	Get(ctx context.Context, container, name string) ([]byte, error)

	// Delete removes the blob.
	Delete(ctx context.Context, container, name string) error

	// List returns the names of blobs starting with prefix, sorted.
	List(ctx context.Context, container, prefix string) ([]string, error)
}

// PutEnsuringContainer uploads data, creating container first when it does
// not exist yet.
func PutEnsuringContainer(ctx context.Context, s Store, logger *slog.Logger,
	container, name string, data []byte, contentType string) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidateContainerName(container); err != nil {
		return err
	}
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: blob name is empty", errors.ErrInvalidData), "storage", "PutEnsuringContainer", "validate blob name")
	}

	exists, err := s.ContainerExists(ctx, container)
	if err != nil {
		return errors.Wrap(err, "storage", "PutEnsuringContainer", "check container "+container)
	}
	if !exists {
		logger.Warn("Container does not exist, creating it", "container", container)
		if err := s.CreateContainer(ctx, container); err != nil {
			return errors.Wrap(err, "storage", "PutEnsuringContainer", "create container "+container)
		}
	}

	if err := s.Put(ctx, container, name, data, contentType); err != nil {
		return errors.Wrap(err, "storage", "PutEnsuringContainer", fmt.Sprintf("upload %s/%s", container, name))
	}
	return nil
}

// GetNonEmpty downloads a blob and rejects empty content with
// errors.ErrEmptyBlob.
func GetNonEmpty(ctx context.Context, s Store, container, name string) ([]byte, error) {
	data, err := s.Get(ctx, container, name)
	if err != nil {
		return nil, errors.Wrap(err, "storage", "GetNonEmpty", fmt.Sprintf("download %s/%s", container, name))
	}
	if len(data) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s/%s", errors.ErrEmptyBlob, container, name), "storage", "GetNonEmpty", "check content")
	}
	return data, nil
}

// ValidateContainerName applies the Azure container naming rules: 3 to 63
// characters of lowercase letters, digits and hyphens, starting and ending
// with a letter or digit, with no consecutive hyphens.
func ValidateContainerName(name string) error {
	invalid := func(reason string) error {
		return errors.WrapInvalid(
			fmt.Errorf("%w: container name %q %s", errors.ErrInvalidData, name, reason),
			"storage", "ValidateContainerName", "validate container name")
	}

	if len(name) < 3 || len(name) > 63 {
		return invalid("must be 3 to 63 characters")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-':
			if i == 0 || i == len(name)-1 {
				return invalid("must start and end with a letter or digit")
			}
			if name[i-1] == '-' {
				return invalid("must not contain consecutive hyphens")
			}
		default:
			return invalid("may only contain lowercase letters, digits and hyphens")
		}
	}
	return nil
}
