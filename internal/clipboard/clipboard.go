// Package clipboard copies text via the platform clipboard tool when one is
// installed. Absence is reported, never fatal.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("no clipboard command available")

type commandSpec struct {
	name string
	args []string
}

// CopyText pipes value into the first available clipboard command: pbcopy on
// macOS, wl-copy or xclip on Linux, clip on Windows.
func CopyText(ctx context.Context, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := detectCommand()
	if err != nil {
		return err
	}

	copyCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	cmd := exec.CommandContext(copyCtx, spec.name, spec.args...)
	cmd.Stdin = strings.NewReader(value)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if runErr := cmd.Run(); runErr != nil {
		if errors.Is(copyCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("copy to clipboard timed out: %w", copyCtx.Err())
		}
		return fmt.Errorf("copy to clipboard: %w", runErr)
	}

	return nil
}

func detectCommand() (commandSpec, error) {
	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("pbcopy"); err == nil {
			return commandSpec{name: "pbcopy"}, nil
		}
	case "windows":
		if _, err := exec.LookPath("clip"); err == nil {
			return commandSpec{name: "clip"}, nil
		}
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return commandSpec{name: "wl-copy"}, nil
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return commandSpec{name: "xclip", args: []string{"-selection", "clipboard", "-in"}}, nil
		}
	}

	return commandSpec{}, ErrUnavailable
}
