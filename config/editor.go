package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/c360/exchange/errors"
)

// DefaultEditor is used when neither VISUAL nor EDITOR is set.
const DefaultEditor = "nano"

// EditorCommand returns the editor argv: $VISUAL, then $EDITOR, then nano.
func EditorCommand() []string {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(env)); len(fields) > 0 {
			return fields
		}
	}
	return []string{DefaultEditor}
}

// Editor runs an interactive editor on a file.
type Editor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Edit opens path in the user's editor with the terminal attached.
func Edit(ctx context.Context, path string) error {
	return Editor{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}.Edit(ctx, path)
}

// Edit opens path in the editor and waits for it to exit.
func (e Editor) Edit(ctx context.Context, path string) error {
	argv := EditorCommand()
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return errors.WrapFatal(err, "Editor", "Edit", fmt.Sprintf("find editor %q", argv[0]))
	}

	args := append(argv[1:len(argv):len(argv)], path)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "Editor", "Edit", "run "+argv[0])
	}
	return nil
}
