package domain

import (
	"errors"
	"fmt"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageSearch     Stage = "search"
	StageLyrics     Stage = "lyrics"
	StageProfile    Stage = "profile"
	StageVibeText   Stage = "vibe_text"
	StageEmbed      Stage = "embed"
	StageIndexBuild Stage = "index_build"
	StageKNN        Stage = "knn"
)

// ErrorKind classifies a failure so callers can branch on it without
// parsing log text.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTransientAPI      ErrorKind = "transient_api"
	KindFatal             ErrorKind = "fatal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTransientAPI      = errors.New("transient api error")
	ErrFatal             = errors.New("fatal pipeline error")
)

// Sentinel returns the package error that matches the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindFatal:
		return ErrFatal
	default:
		return ErrTransientAPI
	}
}

// StageError is a classified failure raised inside one stage.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func (e *StageError) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// NewStageError wraps err with its stage and classified kind.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindOf(err), Err: err}
}

// KindOf classifies an arbitrary error. Anything unrecognised is treated as
// a transient API failure.
func KindOf(err error) ErrorKind {
	var se *StageError
	switch {
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrFatal):
		return KindFatal
	default:
		return KindTransientAPI
	}
}

// Issue is a per-track failure record kept on the Track.
type Issue struct {
	Stage   Stage     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
