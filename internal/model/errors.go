package model

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a recording is requested while another is active.
	ErrBusy = errors.New("recorder busy")
	// ErrSourceExhausted signals the end of the video source.
	ErrSourceExhausted = errors.New("video source exhausted")
)

// TransientIOError wraps a failed write or delivery that should not stop the pipeline.
type TransientIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransientIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid startup configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
