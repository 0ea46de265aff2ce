// Package errs defines the error taxonomy shared across the pipeline.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrEmptyMusicList  = errors.New("music list is empty")
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
	ErrMixInProgress   = errors.New("task is already mixing or finished")
	ErrUpstreamTimeout = errors.New("upstream call timed out")
)

// TranscodeError carries the diagnostic output of a failed ffmpeg/ffprobe run.
type TranscodeError struct {
	Op     string
	Output string
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// StorageError wraps a failed object-store operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AnalysisError wraps a failed content-analysis call.
type AnalysisError struct {
	Msg string
	Err error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis: %s: %v", e.Msg, e.Err)
	}
	return "analysis: " + e.Msg
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Timeout reports whether err represents a network or deadline timeout.
func Timeout(err error) bool {
	if errors.Is(err, ErrUpstreamTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
