package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/c360/exchange/errors"
	"github.com/c360/exchange/storage"
)

// blobOutput is the printed result of a blob command.
type blobOutput struct {
	Container string `json:"container"`
	Blob      string `json:"blob,omitempty"`
	Path      string `json:"path,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	Action    string `json:"action"`
}

// blobTarget fills container and blob from azure_config.json when the
// flags were left empty.
func (a *app) blobTarget(container, blob string, needBlob bool) (string, string, error) {
	if container == "" || (needBlob && blob == "") {
		defContainer, defBlob := a.azureDefaults()
		if container == "" {
			container = defContainer
		}
		if blob == "" {
			blob = defBlob
		}
	}
	if container == "" {
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: container name is required (-c or storage_container)", errors.ErrMissingConfig), "cli", "blobTarget", "resolve container")
	}
	if needBlob && blob == "" {
		return "", "", errors.WrapInvalid(
			fmt.Errorf("%w: blob name is required (-f or storage_blob_name)", errors.ErrMissingConfig), "cli", "blobTarget", "resolve blob")
	}
	return container, blob, nil
}

func newReadCmd(a *app) *cobra.Command {
	var container, blob, output string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Download a blob to a local file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, blob, err := a.blobTarget(container, blob, true)
			if err != nil {
				return err
			}
			path := output
			if path == "" {
				path = filepath.Base(blob)
			}

			return a.withStore(cmd.Context(), func(s storage.Store) error {
				data, err := storage.GetNonEmpty(cmd.Context(), s, container, blob)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return errors.WrapFatal(err, "cli", "read", "write "+path)
				}
				a.logger.Info("Data pulled from blob storage", "container", container, "blob", blob, "path", path)
				return a.printJSON(blobOutput{Container: container, Blob: blob, Path: path, Bytes: len(data), Action: "read"})
			})
		},
	}

	cmd.Flags().StringVarP(&container, "container-name", "c", "", "Container name (default storage_container)")
	cmd.Flags().StringVarP(&blob, "file", "f", "", "Blob name (default storage_blob_name)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Local file to write (default base name of the blob)")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	var container, file, blob, contentType string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Upload a local file as a blob",
		Long: `Upload the content of a local file. The container is created when it does
not exist; an existing blob with the same name is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, _, err := a.blobTarget(container, "", false)
			if err != nil {
				return err
			}
			if blob == "" {
				blob = filepath.Base(file)
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return errors.WrapInvalid(err, "cli", "write", "read "+file)
			}

			return a.withStore(cmd.Context(), func(s storage.Store) error {
				if err := storage.PutEnsuringContainer(cmd.Context(), s, a.logger, container, blob, data, contentType); err != nil {
					return err
				}
				a.logger.Info("Data pushed to blob storage", "container", container, "blob", blob, "bytes", len(data))
				return a.printJSON(blobOutput{Container: container, Blob: blob, Path: file, Bytes: len(data), Action: "write"})
			})
		},
	}

	cmd.Flags().StringVarP(&container, "container-name", "c", "", "Container name (default storage_container)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Local file to upload")
	cmd.Flags().StringVarP(&blob, "blob", "b", "", "Blob name (default base name of the file)")
	cmd.Flags().StringVar(&contentType, "content-type", storage.ContentTypeJSON, "Content type stored with the blob")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var container, blob string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, blob, err := a.blobTarget(container, blob, true)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s storage.Store) error {
				if err := s.Delete(cmd.Context(), container, blob); err != nil {
					return err
				}
				return a.printJSON(blobOutput{Container: container, Blob: blob, Action: "delete"})
			})
		},
	}

	cmd.Flags().StringVarP(&container, "container-name", "c", "", "Container name (default storage_container)")
	cmd.Flags().StringVarP(&blob, "file", "f", "", "Blob name (default storage_blob_name)")
	return cmd
}

func newContainerCmd(a *app) *cobra.Command {
	var container string

	cmd := &cobra.Command{
		Use:   "container",
		Short: "Create, delete or list blob containers",
	}
	cmd.PersistentFlags().StringVarP(&container, "container-name", "c", "", "Container name (default storage_container)")

	run := func(action string, fn func(cmd *cobra.Command, s storage.Store, name string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			name, _, err := a.blobTarget(container, "", false)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s storage.Store) error {
				if err := fn(cmd, s, name); err != nil {
					return err
				}
				return a.printJSON(blobOutput{Container: name, Action: action})
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create a container if it does not exist",
			Args:  cobra.NoArgs,
			RunE: run("create_container", func(cmd *cobra.Command, s storage.Store, name string) error {
				return s.CreateContainer(cmd.Context(), name)
			}),
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete a container and every blob in it",
			Args:  cobra.NoArgs,
			RunE: run("delete_container", func(cmd *cobra.Command, s storage.Store, name string) error {
				return s.DeleteContainer(cmd.Context(), name)
			}),
		},
		newContainerListCmd(a),
	)
	return cmd
}

// containerListOutput is the printed result of container list.
type containerListOutput struct {
	Prefix     string   `json:"prefix,omitempty"`
	Containers []string `json:"containers"`
}

func newContainerListCmd(a *app) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List containers in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s storage.Store) error {
				names, err := s.ListContainers(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				return a.printJSON(containerListOutput{Prefix: prefix, Containers: names})
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list containers starting with prefix")
	return cmd
}

// listOutput is the printed result of list.
type listOutput struct {
	Container string   `json:"container"`
	Prefix    string   `json:"prefix,omitempty"`
	Blobs     []string `json:"blobs"`
}

func newListCmd(a *app) *cobra.Command {
	var container, prefix string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blob names in a container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			container, _, err := a.blobTarget(container, "", false)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s storage.Store) error {
				names, err := s.List(cmd.Context(), container, prefix)
				if err != nil {
					return err
				}
				return a.printJSON(listOutput{Container: container, Prefix: prefix, Blobs: names})
			})
		},
	}

	cmd.Flags().StringVarP(&container, "container-name", "c", "", "Container name (default storage_container)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list blobs whose name starts with this prefix")
	return cmd
}
