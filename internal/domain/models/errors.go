package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable means there is no usable price history for the symbol or range.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInsufficientHistory means the series is shorter than an indicator's lookback.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrRateLimited means the upstream provider throttled the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout means a per-symbol budget was exceeded.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidParameters is returned before any computation starts.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrCancelled marks scan units that were never dispatched.
	ErrCancelled = errors.New("cancelled")
)

// Failure reasons reported in scan entries.
const (
	ReasonDataUnavailable     = "DataUnavailable"
	ReasonInsufficientHistory = "InsufficientHistory"
	ReasonRateLimited         = "RateLimited"
	ReasonTimeout             = "Timeout"
	ReasonInvalidParameters   = "InvalidParameters"
	ReasonCancelled           = "Cancelled"
	ReasonInternal            = "Internal"
)

// RateLimitError carries the upstream's retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ParamError describes one rejected parameter.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Reason)
}

func (e *ParamError) Is(target error) bool { return target == ErrInvalidParameters }

// Reason classifies err into one of the scan failure reasons.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameters):
		return ReasonInvalidParameters
	case errors.Is(err, ErrDataUnavailable):
		return ReasonDataUnavailable
	case errors.Is(err, ErrInsufficientHistory):
		return ReasonInsufficientHistory
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ReasonCancelled
	default:
		return ReasonInternal
	}
}
