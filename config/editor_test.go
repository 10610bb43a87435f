package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/exchange/errors"
)

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")
	assert.Equal(t, []string{"nano"}, EditorCommand())

	t.Setenv("EDITOR", "vim -n")
	assert.Equal(t, []string{"vim", "-n"}, EditorCommand())

	t.Setenv("VISUAL", "code --wait")
	assert.Equal(t, []string{"code", "--wait"}, EditorCommand())
}

func TestEditor_Edit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kafka_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "true")

	var stdout, stderr bytes.Buffer
	err := Editor{Stdout: &stdout, Stderr: &stderr}.Edit(context.Background(), path)
	assert.NoError(t, err)
}

func TestEditor_Edit_MissingBinary(t *testing.T) {
	t.Setenv("VISUAL", "exchange-no-such-editor")

	err := Editor{}.Edit(context.Background(), "/tmp/x.json")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "exchange-no-such-editor")
}

func TestEditor_Edit_NonZeroExit(t *testing.T) {
	t.Setenv("VISUAL", "false")

	err := Editor{}.Edit(context.Background(), "/tmp/x.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Editor.Edit: run false failed")
}
