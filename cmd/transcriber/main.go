package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/RCR0101/transcriber/internal/cli"
	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if hint := recoveryHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, "hint: "+hint)
		}
		if shouldPrintUsageHint(err) {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", helpHintTarget(cmd, os.Args[1:]))
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps each failure kind to a distinct non-zero code so scripted
// callers can branch without parsing messages.
func exitCode(err error) int {
	switch transcribe.ClassifyKind(err) {
	case transcribe.KindInvalidInput:
		return 2
	case transcribe.KindDecodeFailure:
		return 3
	case transcribe.KindModelFailure:
		return 4
	case transcribe.KindWriteFailure:
		return 5
	default:
		return 1
	}
}

func recoveryHint(err error) string {
	var te *transcribe.Error
	if errors.As(err, &te) && te.Hint != "" {
		return te.Hint
	}
	return ""
}

func shouldPrintUsageHint(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"accepts ",
		"requires at least",
		"requires at most",
		"requires between",
		"required flag",
		"missing required",
	}

	for _, pattern := range patterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}

	return false
}

func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "transcriber"
	}

	target := root.CommandPath()
	if len(args) == 0 {
		return target
	}

	if strings.HasPrefix(args[0], "-") {
		return target
	}

	found, _, err := root.Find(args)
	if err == nil && found != nil {
		return found.CommandPath()
	}

	return target
}
