package service

import "errors"

// ErrInvalidConfig indicates a configuration update failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrNoRate indicates no rate has been resolved yet.
var ErrNoRate = errors.New("no rate available")

// ErrInternal indicates an internal server error.
var ErrInternal = errors.New("internal error")

// ErrInternalQueue indicates the refresh task could not be enqueued.
var ErrInternalQueue = errors.New("internal queue error")

// ErrAsyncDisabled indicates asynchronous refresh is not configured.
var ErrAsyncDisabled = errors.New("async refresh is not configured")
