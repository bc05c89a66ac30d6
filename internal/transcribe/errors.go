package transcribe

import (
	"errors"
	"fmt"
)

// Kind classifies a transcription failure. Every error leaving this package
// carries exactly one kind; callers decide presentation and whether to
// resubmit, the pipeline never retries on its own.
type Kind int

const (
	// KindInvalidInput marks a missing source file or an unsupported extension.
	KindInvalidInput Kind = iota + 1
	// KindDecodeFailure marks a missing or failed audio decoder.
	KindDecodeFailure
	// KindModelFailure marks a recognition engine that failed to load or run.
	KindModelFailure
	// KindWriteFailure marks an unwritable destination path.
	KindWriteFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindDecodeFailure:
		return "decode failure"
	case KindModelFailure:
		return "model failure"
	case KindWriteFailure:
		return "write failure"
	default:
		return "unknown"
	}
}

// Error is the classified failure produced instead of a Result.
type Error struct {
	Kind Kind
	// Path is the offending path: the source for input errors, the resolved
	// destination for write errors.
	Path string
	// Hint is an optional recovery suggestion shown to the user, e.g. fall
	// back to a smaller model tier.
	Hint string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match on the kind alone: errors.Is(err, &Error{Kind: KindInvalidInput}).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func invalidInput(path string, err error) error {
	return &Error{Kind: KindInvalidInput, Path: path, Err: err}
}

func decodeFailure(path string, err error) error {
	return &Error{Kind: KindDecodeFailure, Path: path, Err: err}
}

func modelFailure(err error) error {
	return &Error{
		Kind: KindModelFailure,
		Hint: "try a smaller model tier or disable GPU acceleration with --no-gpu",
		Err:  err,
	}
}

func writeFailure(path string, err error) error {
	return &Error{Kind: KindWriteFailure, Path: path, Err: err}
}

// ClassifyKind extracts the kind from any error in the chain, or 0 when the
// error did not originate from the transcription pipeline.
func ClassifyKind(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
